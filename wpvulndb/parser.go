package wpvulndb

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

type rawEntry struct {
	Vulnerabilities []json.RawMessage `json:"vulnerabilities"`
}

// Parse extracts the vulnerabilities listed under root. A non-200 status, a
// missing root or a missing vulnerabilities array all mean "nothing known" and
// yield an empty result. Only a body that is not a JSON object is an error.
func Parse(status int, body []byte, root string) ([]Vulnerability, error) {
	if status != http.StatusOK {
		return nil, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &ParseError{Root: root, Err: err}
	}

	raw, ok := doc[root]
	if !ok {
		return nil, nil
	}

	var entry rawEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		log.Printf("Ignore malformed entry for %s: %s", root, err)
		return nil, nil
	}

	vulns := make([]Vulnerability, 0, len(entry.Vulnerabilities))
	for i, r := range entry.Vulnerabilities {
		v, ok := parseVulnerability(r)
		if !ok {
			log.Printf("Skip vulnerability #%d for %s: id or title missing", i, root)
			continue
		}
		vulns = append(vulns, v)
	}
	return vulns, nil
}

func parseVulnerability(raw json.RawMessage) (Vulnerability, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Vulnerability{}, false
	}

	v := Vulnerability{
		ID:    scalar(fields["id"]),
		Title: scalar(fields["title"]),
	}
	if v.ID == "" || v.Title == "" {
		return Vulnerability{}, false
	}

	v.PublishedDate = parseDate(fields["published_date"])
	if v.PublishedDate == nil {
		v.PublishedDate = parseDate(fields["created_at"])
	}
	v.References = parseReferences(fields["references"])
	if fixedIn := scalar(fields["fixed_in"]); fixedIn != "" {
		v.FixedIn = &fixedIn
	}
	return v, true
}

// scalar returns a JSON string or number as text. Anything else, including
// null and a missing field, is "".
func scalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func parseDate(raw json.RawMessage) *time.Time {
	s := scalar(raw)
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

// parseReferences keeps only the reference types listing strings.
func parseReferences(raw json.RawMessage) map[string][]string {
	var types map[string]json.RawMessage
	if err := json.Unmarshal(raw, &types); err != nil || len(types) == 0 {
		return nil
	}

	refs := map[string][]string{}
	for typ, list := range types {
		var values []string
		if err := json.Unmarshal(list, &values); err != nil || len(values) == 0 {
			continue
		}
		refs[typ] = values
	}
	if len(refs) == 0 {
		return nil
	}
	return refs
}
