package cache

import (
	"encoding/json"
	"time"

	"golang.org/x/xerrors"
)

var ErrNotFound = xerrors.New("cache entry not found")

// Cache is a key/value store with per-key expiry. Implementations only need to
// guarantee single-key atomicity.
type Cache interface {
	Contains(key string) (bool, error)
	Fetch(key string) ([]byte, error)
	Save(key string, value []byte, ttl time.Duration) error
}

// Entry is a cached HTTP response. It is stored as the JSON tuple
// [status, body]. Older entries also carried the response headers as
// [status, headers, body]; those are accepted on read and never rewritten.
type Entry struct {
	StatusCode int
	Body       string
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.StatusCode, e.Body})
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(b, &tuple); err != nil {
		return xerrors.Errorf("cached response is not a tuple: %w", err)
	}

	tuple, err := normalize(tuple)
	if err != nil {
		return err
	}

	var status int
	if err = json.Unmarshal(tuple[0], &status); err != nil {
		return xerrors.Errorf("invalid cached status code: %w", err)
	}
	var body string
	if err = json.Unmarshal(tuple[1], &body); err != nil {
		return xerrors.Errorf("invalid cached body: %w", err)
	}

	e.StatusCode = status
	e.Body = body
	return nil
}

// normalize drops the headers element of a legacy three element tuple.
func normalize(tuple []json.RawMessage) ([]json.RawMessage, error) {
	switch len(tuple) {
	case 2:
		return tuple, nil
	case 3:
		return []json.RawMessage{tuple[0], tuple[2]}, nil
	}
	return nil, xerrors.Errorf("unexpected cached tuple length: %d", len(tuple))
}
