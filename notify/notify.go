package notify

import (
	"errors"

	"golang.org/x/xerrors"

	"github.com/soter-security/soter/scan"
)

// Multi fans a result out to several notifiers. Every notifier is called even
// when an earlier one fails.
type Multi []scan.Notifier

func (m Multi) Notify(result scan.Result) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(result); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return xerrors.Errorf("notification error: %w", err)
	}
	return nil
}
