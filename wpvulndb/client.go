package wpvulndb

import (
	"time"

	"golang.org/x/xerrors"

	"github.com/soter-security/soter/cache"
)

const cacheTTL = time.Hour

// HTTPClient performs a GET against the database API. It must return an
// error instead of a status when the transport fails.
type HTTPClient interface {
	Get(endpoint string) (int, []byte, error)
}

type option func(*Client)

func WithTTL(ttl time.Duration) option {
	return func(c *Client) { c.ttl = ttl }
}

// Client looks up plugins, themes and core releases in WPVulnDB, serving
// repeated lookups from the cache.
type Client struct {
	http  HTTPClient
	cache *cache.Policy
	ttl   time.Duration
}

func NewClient(httpClient HTTPClient, c cache.Cache, opts ...option) *Client {
	client := &Client{
		http:  httpClient,
		cache: cache.NewPolicy(c),
		ttl:   cacheTTL,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) Plugins(slug string) (Response, error) {
	return c.get(NewQuery(KindPlugin, slug))
}

func (c *Client) Themes(slug string) (Response, error) {
	return c.get(NewQuery(KindTheme, slug))
}

// Core looks up a core release. version is the dotted release, e.g. "4.9.1".
func (c *Client) Core(version string) (Response, error) {
	return c.get(NewQuery(KindCore, version))
}

// Lookup dispatches to Plugins, Themes or Core.
func (c *Client) Lookup(kind Kind, id string) (Response, error) {
	switch kind {
	case KindPlugin:
		return c.Plugins(id)
	case KindTheme:
		return c.Themes(id)
	case KindCore:
		return c.Core(id)
	}
	return Response{}, xerrors.Errorf("unknown component kind %q: %w", kind, ErrInvalidArgument)
}

func (c *Client) get(q Query) (Response, error) {
	if q.Slug == "" || q.Root == "" || q.Kind.collection() == "" {
		return Response{}, xerrors.Errorf("empty %s identifier: %w", q.Kind, ErrInvalidArgument)
	}

	endpoint := q.Endpoint()
	entry, err := c.cache.GetOrFetch(q.CacheKey, c.ttl, func() (cache.Entry, error) {
		status, body, err := c.http.Get(endpoint)
		if err != nil {
			return cache.Entry{}, &FetchError{Endpoint: endpoint, Err: err}
		}
		// keep malformed bodies out of the cache so the next cycle refetches
		if _, err := Parse(status, body, q.Root); err != nil {
			return cache.Entry{}, err
		}
		return cache.Entry{StatusCode: status, Body: string(body)}, nil
	})
	if err != nil {
		return Response{}, xerrors.Errorf("%s lookup error: %w", endpoint, err)
	}

	vulns, err := Parse(entry.StatusCode, []byte(entry.Body), q.Root)
	if err != nil {
		return Response{}, xerrors.Errorf("%s lookup error: %w", endpoint, err)
	}

	return Response{
		Query:           q,
		StatusCode:      entry.StatusCode,
		Vulnerabilities: vulns,
	}, nil
}
