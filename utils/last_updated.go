package utils

import (
	"os"
	"time"

	"golang.org/x/xerrors"
)

const LastUpdatedFile = "last_updated.json"

type LastUpdated map[string]time.Time

// GetLastUpdatedDate returns when target last ran, or the Unix epoch when it
// never did.
func (fs Fs) GetLastUpdatedDate(filePath, target string) (time.Time, error) {
	lastUpdated, err := fs.lastUpdated(filePath)
	if err != nil {
		return time.Time{}, err
	}

	t, ok := lastUpdated[target]
	if !ok {
		return time.Unix(0, 0), nil
	}
	return t, nil
}

func (fs Fs) SetLastUpdatedDate(filePath, target string, lastUpdatedDate time.Time) error {
	lastUpdated, err := fs.lastUpdated(filePath)
	if err != nil {
		return xerrors.Errorf("failed to get last updated date: %w", err)
	}
	lastUpdated[target] = lastUpdatedDate

	if err = fs.WriteJSON(filePath, lastUpdated); err != nil {
		return xerrors.Errorf("failed to write last updated date: %w", err)
	}
	return nil
}

func (fs Fs) lastUpdated(filePath string) (LastUpdated, error) {
	lastUpdated := LastUpdated{}
	if _, err := fs.AppFs.Stat(filePath); os.IsNotExist(err) {
		return lastUpdated, nil
	}

	if err := fs.ReadJSON(filePath, &lastUpdated); err != nil {
		return nil, err
	}
	return lastUpdated, nil
}
