package wpvulndb

import "github.com/samber/lo"

// Filter keeps the vulnerabilities that affect installed, in their original
// order. A vulnerability without a fix version always applies.
func Filter(vulns []Vulnerability, installed string) []Vulnerability {
	return lo.Filter(vulns, func(v Vulnerability, _ int) bool {
		return v.Affects(installed)
	})
}
