package notify_test

import (
	"time"

	"github.com/samber/lo"

	"github.com/soter-security/soter/inventory"
	"github.com/soter-security/soter/scan"
	"github.com/soter-security/soter/wpvulndb"
)

var (
	akismet = inventory.Component{Kind: wpvulndb.KindPlugin, Slug: "akismet", Version: "3.1.4"}

	akismetXSS = wpvulndb.Vulnerability{
		ID:            "7935",
		Title:         "Akismet <= 3.1.4 - XSS",
		PublishedDate: lo.ToPtr(time.Date(2015, 10, 6, 0, 0, 0, 0, time.UTC)),
		References:    map[string][]string{"url": {"https://blog.sucuri.net/2015/10/x.html"}, "cve": {"2015-9357"}},
		FixedIn:       lo.ToPtr("3.1.5"),
	}

	vulnerable = scan.Result{
		Findings:   []scan.Finding{{Component: akismet, Vulnerability: akismetXSS}},
		Scanned:    1,
		State:      scan.Completed,
		StartedAt:  time.Date(2019, 6, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2019, 6, 1, 12, 0, 3, 0, time.UTC),
	}

	clean = scan.Result{
		Findings:   []scan.Finding{},
		Scanned:    3,
		State:      scan.Completed,
		StartedAt:  time.Date(2019, 6, 2, 0, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2019, 6, 2, 0, 0, 1, 0, time.UTC),
	}
)
