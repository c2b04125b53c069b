package inventory

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/exp/slices"
	"golang.org/x/xerrors"
)

// WordPress only reads the first 8 KiB of a file when looking for headers.
const headerSize = 8 * 1024

var (
	wpVersionRe     = regexp.MustCompile(`\$wp_version\s*=\s*['"]([^'"]+)['"]`)
	headerCommentRe = regexp.MustCompile(`\s*(?:\*/|\?>).*`)
)

type wordPressOption func(*WordPress)

func WithWordPressFs(fs afero.Fs) wordPressOption {
	return func(w *WordPress) { w.appFs = fs }
}

// WithActiveThemes limits the inventory to the given theme slugs. Installed
// themes that are not active are still exploitable, so the default is all.
func WithActiveThemes(slugs ...string) wordPressOption {
	return func(w *WordPress) { w.activeThemes = slugs }
}

// WordPress builds the inventory from an installation directory.
type WordPress struct {
	root         string
	appFs        afero.Fs
	activeThemes []string
}

func NewWordPress(root string, opts ...wordPressOption) WordPress {
	w := WordPress{
		root:  root,
		appFs: afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(&w)
	}
	return w
}

func (w WordPress) Load() (Inventory, error) {
	core, err := w.coreVersion()
	if err != nil {
		return Inventory{}, xerrors.Errorf("failed to detect the WordPress version: %w", err)
	}

	plugins, err := w.plugins()
	if err != nil {
		return Inventory{}, xerrors.Errorf("failed to list plugins: %w", err)
	}

	themes, err := w.themes()
	if err != nil {
		return Inventory{}, xerrors.Errorf("failed to list themes: %w", err)
	}

	return Inventory{
		Core:    core,
		Plugins: plugins,
		Themes:  themes,
	}, nil
}

func (w WordPress) coreVersion() (string, error) {
	path := filepath.Join(w.root, "wp-includes", "version.php")
	b, err := afero.ReadFile(w.appFs, path)
	if err != nil {
		return "", xerrors.Errorf("unable to read %s: %w", path, err)
	}

	m := wpVersionRe.FindSubmatch(b)
	if m == nil {
		return "", xerrors.Errorf("$wp_version not found in %s", path)
	}
	return string(m[1]), nil
}

// plugins lists both plugin directories and single-file plugins living
// directly in wp-content/plugins. The slug is the directory or file name.
func (w WordPress) plugins() ([]Package, error) {
	dir := filepath.Join(w.root, "wp-content", "plugins")
	entries, err := w.readDir(dir)
	if err != nil {
		return nil, err
	}

	var pkgs []Package
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if !entry.IsDir() {
			if filepath.Ext(entry.Name()) != ".php" {
				continue
			}
			if ver, ok := w.pluginHeader(path); ok {
				pkgs = append(pkgs, Package{Slug: strings.TrimSuffix(entry.Name(), ".php"), Version: ver})
			}
			continue
		}

		files, err := afero.ReadDir(w.appFs, path)
		if err != nil {
			return nil, xerrors.Errorf("unable to read %s: %w", path, err)
		}
		found := false
		for _, f := range files {
			if f.IsDir() || filepath.Ext(f.Name()) != ".php" {
				continue
			}
			if ver, ok := w.pluginHeader(filepath.Join(path, f.Name())); ok {
				pkgs = append(pkgs, Package{Slug: entry.Name(), Version: ver})
				found = true
				break
			}
		}
		if !found {
			log.Printf("No plugin header in %s", path)
		}
	}
	return pkgs, nil
}

func (w WordPress) themes() ([]Package, error) {
	dir := filepath.Join(w.root, "wp-content", "themes")
	entries, err := w.readDir(dir)
	if err != nil {
		return nil, err
	}

	var pkgs []Package
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if len(w.activeThemes) > 0 && !slices.Contains(w.activeThemes, entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name(), "style.css")
		headers, err := w.headers(path, "Theme Name", "Version")
		if err != nil {
			log.Printf("Skip theme %s: %s", entry.Name(), err)
			continue
		}
		if headers["Theme Name"] == "" {
			log.Printf("No theme header in %s", path)
			continue
		}
		pkgs = append(pkgs, Package{Slug: entry.Name(), Version: headers["Version"]})
	}
	return pkgs, nil
}

func (w WordPress) pluginHeader(path string) (string, bool) {
	headers, err := w.headers(path, "Plugin Name", "Version")
	if err != nil {
		log.Printf("Skip %s: %s", path, err)
		return "", false
	}
	if headers["Plugin Name"] == "" {
		return "", false
	}
	return headers["Version"], true
}

// readDir returns nothing for a missing directory; a site without themes is
// unusual but still scannable.
func (w WordPress) readDir(dir string) ([]os.FileInfo, error) {
	entries, err := afero.ReadDir(w.appFs, dir)
	if os.IsNotExist(err) {
		log.Printf("%s does not exist", dir)
		return nil, nil
	} else if err != nil {
		return nil, xerrors.Errorf("unable to read %s: %w", dir, err)
	}
	return entries, nil
}

// headers reads the "Name: value" pairs WordPress puts in the leading
// comment of plugin files and theme stylesheets.
func (w WordPress) headers(path string, names ...string) (map[string]string, error) {
	f, err := w.appFs.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("file open error: %w", err)
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, headerSize))
	if err != nil {
		return nil, xerrors.Errorf("file read error: %w", err)
	}
	content := strings.ReplaceAll(string(b), "\r", "\n")

	headers := map[string]string{}
	for _, name := range names {
		re := regexp.MustCompile(`(?mi)^[ \t/*#@]*` + regexp.QuoteMeta(name) + `:(.*)$`)
		m := re.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		headers[name] = strings.TrimSpace(headerCommentRe.ReplaceAllString(m[1], ""))
	}
	return headers, nil
}
