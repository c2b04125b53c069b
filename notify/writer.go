package notify

import (
	"io"
	"strings"
	"text/template"

	"github.com/samber/lo"
	"golang.org/x/xerrors"

	"github.com/soter-security/soter/scan"
	"github.com/soter-security/soter/wpvulndb"
)

var digestTemplate = template.Must(template.New("digest").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`Vulnerabilities were detected on {{.Site}}. We've included some details to help you fix the problem.

[{{.Site}}] Security Digest

******************
{{.Count}} Vulnerabilities Detected!
******************

A recent scan by Soter flagged {{.Count}} vulnerabilities on your WordPress site.

Please ensure your WordPress install as well as all plugins and themes are up-to-date{{if .DashboardURL}} from your dashboard:

Go To Dashboard ( {{.DashboardURL}} ){{else}}.{{end}}

For reference, here are the details of the flagged vulnerabilities:
{{range .Summaries}}
{{.TextTitle}}

{{range .Links}}{{.URL}}
{{end}}{{join .Meta " | "}}

{{end}}`))

type digest struct {
	Site         string
	DashboardURL string
	Count        int
	Summaries    []Summary
}

// Writer prints a plain text digest of the findings. Clean results are not
// reported.
type Writer struct {
	w            io.Writer
	site         string
	dashboardURL string
}

// NewWriter returns a Writer for the site. homeURL may be empty; when set the
// digest links to the site's update page.
func NewWriter(w io.Writer, site, homeURL string) Writer {
	return Writer{
		w:            w,
		site:         site,
		dashboardURL: dashboardURL(homeURL),
	}
}

func (n Writer) Notify(result scan.Result) error {
	if !result.Vulnerable() {
		return nil
	}

	if _, err := io.WriteString(n.w, Subject(n.site, len(result.Findings))+"\n\n"); err != nil {
		return xerrors.Errorf("failed to write the digest: %w", err)
	}

	d := digest{
		Site:         n.site,
		DashboardURL: n.dashboardURL,
		Count:        len(result.Findings),
		Summaries:    lo.Map(result.Vulnerabilities(), func(v wpvulndb.Vulnerability, _ int) Summary { return Summarize(v) }),
	}
	if err := digestTemplate.Execute(n.w, d); err != nil {
		return xerrors.Errorf("failed to write the digest: %w", err)
	}
	return nil
}

func dashboardURL(homeURL string) string {
	if homeURL == "" {
		return ""
	}
	return strings.TrimRight(homeURL, "/") + "/wp-admin/update-core.php"
}
