package utils

import (
	"encoding/json"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

type Fs struct {
	AppFs afero.Fs
}

func NewFs(appFs afero.Fs) Fs {
	return Fs{AppFs: appFs}
}

func (fs Fs) WriteJSON(filePath string, data interface{}) error {
	if err := fs.AppFs.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return xerrors.Errorf("unable to create a directory: %w", err)
	}

	f, err := fs.AppFs.Create(filePath)
	if err != nil {
		return xerrors.Errorf("unable to open a file: %w", err)
	}
	defer f.Close()

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return xerrors.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err = f.Write(b); err != nil {
		return xerrors.Errorf("failed to save a file: %w", err)
	}
	return nil
}

func (fs Fs) ReadJSON(filePath string, v interface{}) error {
	b, err := afero.ReadFile(fs.AppFs, filePath)
	if err != nil {
		return xerrors.Errorf("unable to read a file: %w", err)
	}
	if err = json.Unmarshal(b, v); err != nil {
		return xerrors.Errorf("failed to unmarshal JSON: %w", err)
	}
	return nil
}
