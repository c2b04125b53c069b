package notify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/soter-security/soter/wpvulndb"
)

const vulnerabilityURL = "https://wpvulndb.com/vulnerabilities/%s"

var titleReplacer = strings.NewReplacer("<", "less than", ">", "greater than", "=", " or equal to")

type Link struct {
	URL  string `json:"url"`
	Host string `json:"host"`
}

// Summary is the human readable form of a vulnerability used by notifiers.
type Summary struct {
	Title string   `json:"title"`
	Meta  []string `json:"meta"`
	Links []Link   `json:"links"`
}

func Summarize(v wpvulndb.Vulnerability) Summary {
	s := Summary{Title: v.Title}

	if v.PublishedDate != nil {
		s.Meta = append(s.Meta, "Published "+v.PublishedDate.Format("02 Jan 2006"))
	}

	for _, ref := range v.References["url"] {
		host := ref
		if u, err := url.Parse(ref); err == nil && u.Host != "" {
			host = u.Host
		}
		s.Links = append(s.Links, Link{URL: ref, Host: host})
	}
	s.Links = append(s.Links, Link{URL: fmt.Sprintf(vulnerabilityURL, v.ID), Host: "wpvulndb.com"})

	if v.FixedIn == nil {
		s.Meta = append(s.Meta, "Not fixed yet")
	} else {
		s.Meta = append(s.Meta, "Fixed in v"+*v.FixedIn)
	}
	return s
}

// TextTitle spells out comparison operators, e.g. "<= 3.1.4" becomes
// "less than or equal to 3.1.4".
func (s Summary) TextTitle() string {
	return titleReplacer.Replace(s.Title)
}

// Subject is the notification headline, e.g. "[My Blog] 2 vulnerabilities detected".
func Subject(site string, count int) string {
	noun := "vulnerabilities"
	if count == 1 {
		noun = "vulnerability"
	}
	return fmt.Sprintf("[%s] %d %s detected", site, count, noun)
}
