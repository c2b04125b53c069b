package wpvulndb

import (
	"strings"
	"time"

	"github.com/soter-security/soter/version"
)

type Kind string

const (
	KindPlugin Kind = "plugin"
	KindTheme  Kind = "theme"
	KindCore   Kind = "core"
)

// collection is the API path segment for the kind.
func (k Kind) collection() string {
	switch k {
	case KindPlugin:
		return "plugins"
	case KindTheme:
		return "themes"
	case KindCore:
		return "wordpresses"
	}
	return ""
}

// Vulnerability is a single disclosed issue against a plugin, theme or core
// release.
type Vulnerability struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	PublishedDate *time.Time          `json:"published_date,omitempty"`
	References    map[string][]string `json:"references,omitempty"`
	FixedIn       *string             `json:"fixed_in,omitempty"`
}

// Affects reports whether installed still contains the issue: it is not fixed
// yet, or installed predates the fix.
func (v Vulnerability) Affects(installed string) bool {
	if v.FixedIn == nil {
		return true
	}
	return version.LessThan(installed, *v.FixedIn)
}

// Query identifies a single lookup. Slug is the URL key, Root the key the
// response body is indexed by. They only differ for core releases, where the
// URL uses the version without dots ("4.9.1" => "491").
type Query struct {
	Kind     Kind
	Slug     string
	Root     string
	CacheKey string
}

func NewQuery(kind Kind, id string) Query {
	if kind == KindCore {
		v := strings.TrimSpace(id)
		return Query{
			Kind:     kind,
			Slug:     strings.ReplaceAll(v, ".", ""),
			Root:     v,
			CacheKey: kind.collection() + "/" + v,
		}
	}

	slug := normalizeSlug(id)
	return Query{
		Kind:     kind,
		Slug:     slug,
		Root:     slug,
		CacheKey: kind.collection() + "/" + slug,
	}
}

func (q Query) Endpoint() string {
	return q.Kind.collection() + "/" + q.Slug
}

func normalizeSlug(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `/\`)
	return strings.ToLower(s)
}

type Response struct {
	Query           Query
	StatusCode      int
	Vulnerabilities []Vulnerability
}

// Applicable returns the vulnerabilities that still affect installed.
func (r Response) Applicable(installed string) []Vulnerability {
	return Filter(r.Vulnerabilities, installed)
}
