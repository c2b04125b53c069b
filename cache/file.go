package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

const fileExt = ".json.zst"

type fileItem struct {
	ExpiresAt time.Time `json:"expires_at"`
	Value     []byte    `json:"value"`
}

type fileOption func(*File)

func WithAppFs(fs afero.Fs) fileOption {
	return func(f *File) { f.appFs = fs }
}

// File stores each key as a zstd compressed JSON document under dir, e.g.
// <dir>/plugins/akismet.json.zst.
type File struct {
	dir   string
	appFs afero.Fs
	enc   *zstd.Encoder
	dec   *zstd.Decoder
	now   func() time.Time
}

func NewFile(dir string, opts ...fileOption) (*File, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to create zstd writer: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to create zstd reader: %w", err)
	}

	f := &File{
		dir:   dir,
		appFs: afero.NewOsFs(),
		enc:   enc,
		dec:   dec,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *File) Contains(key string) (bool, error) {
	_, err := f.Fetch(key)
	if xerrors.Is(err, ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

func (f *File) Fetch(key string) ([]byte, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}

	compressed, err := afero.ReadFile(f.appFs, path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, xerrors.Errorf("unable to read %s: %w", path, err)
	}

	b, err := f.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to decompress %s: %w", path, err)
	}

	var item fileItem
	if err = json.Unmarshal(b, &item); err != nil {
		return nil, xerrors.Errorf("failed to decode %s: %w", path, err)
	}

	if !f.now().Before(item.ExpiresAt) {
		if err = f.appFs.Remove(path); err != nil {
			return nil, xerrors.Errorf("failed to remove expired %s: %w", path, err)
		}
		return nil, ErrNotFound
	}
	return item.Value, nil
}

func (f *File) Save(key string, value []byte, ttl time.Duration) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	b, err := json.Marshal(fileItem{
		ExpiresAt: f.now().Add(ttl),
		Value:     value,
	})
	if err != nil {
		return xerrors.Errorf("failed to marshal JSON: %w", err)
	}

	if err = f.appFs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return xerrors.Errorf("mkdir error: %w", err)
	}
	if err = afero.WriteFile(f.appFs, path, f.enc.EncodeAll(b, nil), 0600); err != nil {
		return xerrors.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func (f *File) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", xerrors.Errorf("invalid cache key: %q", key)
	}
	return filepath.Join(f.dir, clean+fileExt), nil
}
