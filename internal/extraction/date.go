package extraction

import (
	"regexp"
	"strings"
	"time"
)

const monthNames = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?`

// dateRule pairs a candidate pattern with the layouts tried against its match
type dateRule struct {
	pattern *regexp.Regexp
	layouts []string
}

// dateRules are tried in order; the first candidate that parses wins.
// Month-first layouts come before day-first ones, so 03/04/2024 is March 4.
var dateRules = []dateRule{
	{
		pattern: regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
		layouts: []string{"1/2/2006", "1/2/06", "2/1/2006"},
	},
	{
		pattern: regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{2,4}\b`),
		layouts: []string{"1-2-2006", "1-2-06", "2-1-2006"},
	},
	{
		pattern: regexp.MustCompile(`\b\d{4}[-/]\d{1,2}[-/]\d{1,2}\b`),
		layouts: []string{"2006-1-2", "2006/1/2"},
	},
	{
		pattern: regexp.MustCompile(`\b\d{1,2}\.\d{1,2}\.\d{4}\b`),
		layouts: []string{"2.1.2006"},
	},
	{
		pattern: regexp.MustCompile(`(?i)\b` + monthNames + `\s+\d{1,2},?\s+\d{4}\b`),
		layouts: []string{"Jan 2 2006", "January 2 2006"},
	},
	{
		pattern: regexp.MustCompile(`(?i)\b\d{1,2}\s+` + monthNames + `,?\s+\d{4}\b`),
		layouts: []string{"2 Jan 2006", "2 January 2006"},
	},
}

var spaces = regexp.MustCompile(`\s+`)

// ParseDate finds the first date in line. Dates are returned as UTC midnight.
func ParseDate(line string) (time.Time, bool) {
	for _, rule := range dateRules {
		for _, candidate := range rule.pattern.FindAllString(line, -1) {
			candidate = cleanDate(candidate)
			for _, layout := range rule.layouts {
				if t, err := time.Parse(layout, candidate); err == nil {
					return t, true
				}
			}
		}
	}
	return time.Time{}, false
}

func cleanDate(s string) string {
	s = strings.ReplaceAll(s, ",", " ")
	s = spaces.ReplaceAllString(strings.TrimSpace(s), " ")
	// "Sept." and "Jan." style abbreviations
	fields := strings.Split(s, " ")
	for i, f := range fields {
		f = strings.TrimSuffix(f, ".")
		if strings.EqualFold(f, "sept") {
			f = "Sep"
		}
		fields[i] = f
	}
	return strings.Join(fields, " ")
}

func containsDate(line string) bool {
	for _, rule := range dateRules {
		if rule.pattern.MatchString(line) {
			return true
		}
	}
	return false
}
