package inventory

import (
	"context"
	"log"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"

	"github.com/soter-security/soter/utils"
)

type manifestOption func(*Manifest)

func WithManifestFs(fs afero.Fs) manifestOption {
	return func(m *Manifest) { m.appFs = fs }
}

func withDownloader(download func(context.Context, string) (string, error)) manifestOption {
	return func(m *Manifest) { m.download = download }
}

// Manifest reads the inventory from a YAML file:
//
//	wordpress: 5.2.1
//	plugins:
//	  - slug: akismet
//	    version: 4.1.2
//	themes:
//	  - slug: twentynineteen
//	    version: "1.4"
//
// The source is either a local path or any URL go-getter understands.
type Manifest struct {
	source   string
	appFs    afero.Fs
	download func(context.Context, string) (string, error)
}

func NewManifest(source string, opts ...manifestOption) Manifest {
	m := Manifest{
		source:   source,
		appFs:    afero.NewOsFs(),
		download: utils.DownloadToTempFile,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Manifest) Load() (Inventory, error) {
	path := m.source
	if strings.Contains(m.source, "://") || strings.Contains(m.source, "::") {
		log.Printf("Fetching the inventory manifest from %s", m.source)
		tmp, err := m.download(context.Background(), m.source)
		if err != nil {
			return Inventory{}, xerrors.Errorf("failed to download the manifest: %w", err)
		}
		defer m.appFs.Remove(tmp)
		path = tmp
	}

	f, err := m.appFs.Open(path)
	if err != nil {
		return Inventory{}, xerrors.Errorf("file open error (%s): %w", path, err)
	}
	defer f.Close()

	var inv Inventory
	if err = yaml.NewDecoder(f).Decode(&inv); err != nil {
		return Inventory{}, xerrors.Errorf("unable to decode YAML (%s): %w", path, err)
	}
	return inv, nil
}
