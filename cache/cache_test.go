package cache

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntry_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Entry
		wantErr string
	}{
		{
			name:  "status and body",
			input: `[200, "{\"akismet\":{}}"]`,
			want:  Entry{StatusCode: 200, Body: `{"akismet":{}}`},
		},
		{
			name:  "legacy tuple with headers",
			input: `[404, {"content-type": "application/json"}, "not found"]`,
			want:  Entry{StatusCode: 404, Body: "not found"},
		},
		{
			name:    "single element",
			input:   `[200]`,
			wantErr: "unexpected cached tuple length: 1",
		},
		{
			name:    "not a tuple",
			input:   `{"status": 200}`,
			wantErr: "cached response is not a tuple",
		},
		{
			name:    "status is not a number",
			input:   `["ok", "body"]`,
			wantErr: "invalid cached status code",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Entry
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntry_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Entry{StatusCode: 200, Body: "{}"})
	require.NoError(t, err)
	assert.JSONEq(t, `[200, "{}"]`, string(b))
}

type fakeCache struct {
	values      map[string][]byte
	containsErr error
	fetchErr    error
	saveErr     error
	saved       []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string][]byte{}}
}

func (c *fakeCache) Contains(key string) (bool, error) {
	if c.containsErr != nil {
		return false, c.containsErr
	}
	_, ok := c.values[key]
	return ok, nil
}

func (c *fakeCache) Fetch(key string) ([]byte, error) {
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	v, ok := c.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (c *fakeCache) Save(key string, value []byte, _ time.Duration) error {
	c.saved = append(c.saved, key)
	if c.saveErr != nil {
		return c.saveErr
	}
	c.values[key] = value
	return nil
}

func TestPolicy_GetOrFetch(t *testing.T) {
	fetched := Entry{StatusCode: 200, Body: `{"foo":{}}`}

	tests := []struct {
		name       string
		cache      func() *fakeCache
		fetchErr   error
		want       Entry
		wantFetch  bool
		wantStored bool
		wantErr    string
	}{
		{
			name:       "miss fills the cache",
			cache:      newFakeCache,
			want:       fetched,
			wantFetch:  true,
			wantStored: true,
		},
		{
			name: "hit",
			cache: func() *fakeCache {
				c := newFakeCache()
				c.values["plugins/foo"] = []byte(`[200, "cached"]`)
				return c
			},
			want: Entry{StatusCode: 200, Body: "cached"},
		},
		{
			name: "legacy hit is normalized",
			cache: func() *fakeCache {
				c := newFakeCache()
				c.values["plugins/foo"] = []byte(`[200, {"x-powered-by": "wpvulndb"}, "legacy"]`)
				return c
			},
			want: Entry{StatusCode: 200, Body: "legacy"},
		},
		{
			name: "unreadable entry is a miss",
			cache: func() *fakeCache {
				c := newFakeCache()
				c.values["plugins/foo"] = []byte(`[200]`)
				return c
			},
			want:       fetched,
			wantFetch:  true,
			wantStored: true,
		},
		{
			name: "backend contains error is a miss",
			cache: func() *fakeCache {
				c := newFakeCache()
				c.containsErr = errors.New("connection refused")
				return c
			},
			want:       fetched,
			wantFetch:  true,
			wantStored: true,
		},
		{
			name: "backend fetch error is a miss",
			cache: func() *fakeCache {
				c := newFakeCache()
				c.values["plugins/foo"] = []byte(`[200, "cached"]`)
				c.fetchErr = errors.New("disk error")
				return c
			},
			want:       fetched,
			wantFetch:  true,
			wantStored: true,
		},
		{
			name: "save error still returns the response",
			cache: func() *fakeCache {
				c := newFakeCache()
				c.saveErr = errors.New("read-only")
				return c
			},
			want:      fetched,
			wantFetch: true,
		},
		{
			name:      "fetch error is not cached",
			cache:     newFakeCache,
			fetchErr:  errors.New("connection reset"),
			wantFetch: true,
			wantErr:   "connection reset",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := tt.cache()
			p := NewPolicy(backend)

			var called bool
			got, err := p.GetOrFetch("plugins/foo", time.Hour, func() (Entry, error) {
				called = true
				if tt.fetchErr != nil {
					return Entry{}, tt.fetchErr
				}
				return fetched, nil
			})
			assert.Equal(t, tt.wantFetch, called)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Empty(t, backend.saved)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			if tt.wantStored {
				assert.JSONEq(t, `[200, "{\"foo\":{}}"]`, string(backend.values["plugins/foo"]))
			}
		})
	}
}

func TestPolicy_RoundTrip(t *testing.T) {
	backend := NewMemory()
	require.NoError(t, backend.Save("themes/twentyten", []byte(`[200, ["h"], "body"]`), time.Hour))

	ok, err := backend.Contains("themes/twentyten")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := NewPolicy(backend).GetOrFetch("themes/twentyten", time.Hour, func() (Entry, error) {
		t.Fatal("unexpected fetch")
		return Entry{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, Entry{StatusCode: 200, Body: "body"}, got)

	// the legacy shape is left in place
	raw, err := backend.Fetch("themes/twentyten")
	require.NoError(t, err)
	assert.JSONEq(t, `[200, ["h"], "body"]`, string(raw))
}
