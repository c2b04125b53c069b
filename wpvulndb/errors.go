package wpvulndb

import (
	"fmt"

	"golang.org/x/xerrors"
)

var ErrInvalidArgument = xerrors.New("invalid argument")

// FetchError means the database could not be reached for one component. It
// is never cached.
type FetchError struct {
	Endpoint string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %s", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError means a response body was not well-formed JSON.
type ParseError struct {
	Root string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse response for %s: %s", e.Root, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
