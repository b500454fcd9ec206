package extraction

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// normalizeName collapses whitespace and title-cases a vendor or item name.
// Returns nil for names that end up empty.
func normalizeName(raw string) *string {
	name := titleCase(raw)
	if name == "" {
		return nil
	}
	return &name
}

// titleCase collapses whitespace and title-cases s. A caser is not safe for
// concurrent use so one is created per call.
func titleCase(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return cases.Title(language.English).String(s)
}
