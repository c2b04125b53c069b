package wpvulndb_test

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"

	"github.com/soter-security/soter/wpvulndb"
)

func TestFilter(t *testing.T) {
	vulns := []wpvulndb.Vulnerability{
		{ID: "1", Title: "fixed in 5.2.1", FixedIn: lo.ToPtr("5.2.1")},
		{ID: "2", Title: "not fixed"},
		{ID: "3", Title: "fixed in 5.2", FixedIn: lo.ToPtr("5.2")},
		{ID: "4", Title: "fixed in 5.10", FixedIn: lo.ToPtr("5.10")},
	}

	tests := []struct {
		name      string
		installed string
		want      []string
	}{
		{
			name:      "older release",
			installed: "5.1.1",
			want:      []string{"1", "2", "3", "4"},
		},
		{
			name:      "exactly the fix version",
			installed: "5.2",
			want:      []string{"1", "2", "4"},
		},
		{
			name:      "past the point release",
			installed: "5.3",
			want:      []string{"2", "4"},
		},
		{
			name:      "numeric ordering of minor versions",
			installed: "5.10.0",
			want:      []string{"2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wpvulndb.Filter(vulns, tt.installed)
			ids := lo.Map(got, func(v wpvulndb.Vulnerability, _ int) string { return v.ID })
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestFilter_Empty(t *testing.T) {
	assert.Empty(t, wpvulndb.Filter(nil, "1.0"))
}

func TestVulnerability_Affects(t *testing.T) {
	tests := []struct {
		name      string
		fixedIn   *string
		installed string
		want      bool
	}{
		{name: "older", fixedIn: lo.ToPtr("1.1"), installed: "1.0", want: true},
		{name: "newer", fixedIn: lo.ToPtr("1.1"), installed: "1.2", want: false},
		{name: "equal", fixedIn: lo.ToPtr("1.1"), installed: "1.1", want: false},
		{name: "no fix", installed: "99", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := wpvulndb.Vulnerability{ID: "1", Title: "t", FixedIn: tt.fixedIn}
			assert.Equal(t, tt.want, v.Affects(tt.installed))
		})
	}
}

func TestResponse_Applicable(t *testing.T) {
	r := wpvulndb.Response{
		StatusCode: 200,
		Vulnerabilities: []wpvulndb.Vulnerability{
			{ID: "1", Title: "a", FixedIn: lo.ToPtr("1.1")},
			{ID: "2", Title: "b", FixedIn: lo.ToPtr("0.9")},
		},
	}
	got := r.Applicable("1.0")
	assert.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}

func TestNewQuery(t *testing.T) {
	tests := []struct {
		name string
		kind wpvulndb.Kind
		id   string
		want wpvulndb.Query
	}{
		{
			name: "plugin",
			kind: wpvulndb.KindPlugin,
			id:   "Contact-Form-7",
			want: wpvulndb.Query{Kind: wpvulndb.KindPlugin, Slug: "contact-form-7", Root: "contact-form-7", CacheKey: "plugins/contact-form-7"},
		},
		{
			name: "core",
			kind: wpvulndb.KindCore,
			id:   " 4.9.1 ",
			want: wpvulndb.Query{Kind: wpvulndb.KindCore, Slug: "491", Root: "4.9.1", CacheKey: "wordpresses/4.9.1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wpvulndb.NewQuery(tt.kind, tt.id)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, map[wpvulndb.Kind]string{
				wpvulndb.KindPlugin: "plugins/contact-form-7",
				wpvulndb.KindCore:   "wordpresses/491",
			}[tt.kind], got.Endpoint())
		})
	}
}
