package version

import (
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Ordering is the result of comparing two version strings.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	}
	return "unknown"
}

// e.g.
//   - 5.0_beta1 => 5.0-beta1
//   - 4.9.RC2 => 4.9-RC2
var malformedVerReplacer = strings.NewReplacer("_alpha", "-alpha", "_beta", "-beta", "_rc", "-rc", ".RC", "-RC", ".rc", "-rc")

// Compare orders two dotted version strings. Missing trailing components count
// as zero, so "5.2" and "5.2.0" are equal. When either side cannot be parsed,
// the whole strings are compared lexically.
func Compare(a, b string) Ordering {
	va, err := parse(a)
	if err != nil {
		return lexical(a, b)
	}
	vb, err := parse(b)
	if err != nil {
		return lexical(a, b)
	}
	return Ordering(va.Compare(vb))
}

// LessThan reports whether a orders strictly before b.
func LessThan(a, b string) bool {
	return Compare(a, b) == Less
}

func parse(s string) (*goversion.Version, error) {
	s = strings.TrimSpace(s)
	return goversion.NewVersion(malformedVerReplacer.Replace(s))
}

func lexical(a, b string) Ordering {
	return Ordering(strings.Compare(strings.TrimSpace(a), strings.TrimSpace(b)))
}
