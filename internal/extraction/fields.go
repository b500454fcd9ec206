package extraction

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Field names used as keys of Fields.Matched
const (
	FieldVendor = "vendor"
	FieldTotal  = "total"
	FieldTax    = "tax"
	FieldDate   = "date"
)

const (
	vendorRegionLines   = 5
	vendorFallbackLines = 3
	dateRegionLines     = 10
)

// Fields holds the structured values recovered from a receipt. Every field is
// independently nil when it could not be found.
type Fields struct {
	Vendor  *string          `json:"vendor,omitempty"`
	Total   *decimal.Decimal `json:"total,omitempty"`
	Tax     *decimal.Decimal `json:"tax,omitempty"`
	Date    *time.Time       `json:"date,omitempty"`
	Matched map[string]bool  `json:"matched"`
}

// scanOrder selects the part of the receipt a rule looks at
type scanOrder int

const (
	// topDown scans the first limit lines from the top
	topDown scanOrder = iota
	// bottomUp scans every line starting from the last one
	bottomUp
)

// fieldRule is one entry of an ordered first-match-wins chain
type fieldRule[T any] struct {
	name  string
	match func(line string) (T, bool)
}

// region returns the lines a chain looks at, in scan order
func region(lines []string, order scanOrder, limit int) []string {
	if order == bottomUp {
		out := make([]string, 0, len(lines))
		for i := len(lines) - 1; i >= 0; i-- {
			out = append(out, lines[i])
		}
		return out
	}
	if limit > 0 && len(lines) > limit {
		return lines[:limit]
	}
	return lines
}

// firstByRule tries each rule against every line before moving on to the
// next rule, so an earlier rule always beats a later one.
func firstByRule[T any](lines []string, rules []fieldRule[T]) (T, bool) {
	for _, r := range rules {
		for _, line := range lines {
			if v, ok := r.match(line); ok {
				slog.Debug("field rule matched", "rule", r.name, "line", line)
				return v, true
			}
		}
	}
	var zero T
	return zero, false
}

// firstByLine tries every rule on a line before moving on to the next line,
// so the earliest line in scan order wins.
func firstByLine[T any](lines []string, rules []fieldRule[T]) (T, bool) {
	for _, line := range lines {
		for _, r := range rules {
			if v, ok := r.match(line); ok {
				slog.Debug("field rule matched", "rule", r.name, "line", line)
				return v, true
			}
		}
	}
	var zero T
	return zero, false
}

var (
	allCapsPattern = regexp.MustCompile(`^[A-Z][A-Z\s&'.-]{2,30}$`)
	brandPattern   = regexp.MustCompile(`(?i)^(target|walmart|costco|home depot|lowes|best buy|kroger|safeway|whole foods|trader joe|cvs|walgreens|rite aid|staples|office depot|autozone)\b`)
	cuePattern     = regexp.MustCompile(`(?i)\b(market|store|pharmacy|shop|depot|center|centre|foods|mart|hardware|supermarket|grocery|drug|drugs)\b`)
	numericPattern = regexp.MustCompile(`^[\d\s.,:/#$%*-]+$`)

	// headerTerms are all-caps words printed in receipt headers that are
	// never the merchant name
	headerTerms = regexp.MustCompile(`(?i)\b(total|subtotal|tax|cash|credit|debit|receipt|transaction|purchase|sale|welcome|invoice|customer copy)\b`)
)

var vendorRules = []fieldRule[string]{
	{name: "all-caps", match: func(line string) (string, bool) {
		line = strings.TrimSpace(line)
		if !allCapsPattern.MatchString(line) || headerTerms.MatchString(line) {
			return "", false
		}
		return line, true
	}},
	{name: "brand", match: matchLine(brandPattern)},
	{name: "cue-word", match: matchLine(cuePattern)},
}

var vendorFallback = fieldRule[string]{name: "fallback", match: func(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if len([]rune(line)) <= 3 || numericPattern.MatchString(line) || containsDate(line) {
		return "", false
	}
	return line, true
}}

func matchLine(re *regexp.Regexp) func(string) (string, bool) {
	return func(line string) (string, bool) {
		line = strings.TrimSpace(line)
		if !re.MatchString(line) {
			return "", false
		}
		return line, true
	}
}

var (
	// amountPattern finds money-shaped numbers; the second group captures a
	// trailing percent sign so tax rates can be skipped
	amountPattern = regexp.MustCompile(`\$?\s?(\d[\d,]*\.\d{2})(%?)`)

	totalRules = []fieldRule[decimal.Decimal]{
		{name: "total", match: keywordAmount(regexp.MustCompile(`(?i)\btotal`))},
		{name: "amount-due", match: keywordAmount(regexp.MustCompile(`(?i)amount\s+due`))},
		{name: "balance", match: keywordAmount(regexp.MustCompile(`(?i)balance`))},
	}

	taxRules = []fieldRule[decimal.Decimal]{
		{name: "tax", match: keywordAmount(regexp.MustCompile(`(?i)tax`))},
		{name: "hst", match: keywordAmount(regexp.MustCompile(`(?i)\bhst\b`))},
		{name: "gst", match: keywordAmount(regexp.MustCompile(`(?i)\bgst\b`))},
	}
)

// keywordAmount matches lines containing keyword together with an amount. The
// last amount on the line that is not a percentage is used.
func keywordAmount(keyword *regexp.Regexp) func(string) (decimal.Decimal, bool) {
	return func(line string) (decimal.Decimal, bool) {
		if !keyword.MatchString(line) {
			return decimal.Decimal{}, false
		}
		var found string
		for _, m := range amountPattern.FindAllStringSubmatch(line, -1) {
			if m[2] == "%" {
				continue
			}
			found = m[1]
		}
		if found == "" {
			return decimal.Decimal{}, false
		}
		return ParseAmount(found)
	}
}

// ExtractFields recovers vendor, total, tax and date from lines in reading
// order. It never fails; unrecognized fields are left nil.
func ExtractFields(lines []string) Fields {
	f := Fields{Matched: map[string]bool{}}

	if v, ok := firstByRule(region(lines, topDown, vendorRegionLines), vendorRules); ok {
		f.Vendor = normalizeName(v)
	} else if v, ok := firstByRule(region(lines, topDown, vendorFallbackLines), []fieldRule[string]{vendorFallback}); ok {
		f.Vendor = normalizeName(v)
	}

	// rule-major: any TOTAL line beats a BALANCE line printed below it
	footer := region(lines, bottomUp, 0)
	if v, ok := firstByRule(footer, totalRules); ok {
		f.Total = &v
	}
	if v, ok := firstByLine(footer, taxRules); ok {
		f.Tax = &v
	}

	if d, ok := firstByLine(region(lines, topDown, dateRegionLines), []fieldRule[time.Time]{{name: "date", match: ParseDate}}); ok {
		f.Date = &d
	}

	f.Matched[FieldVendor] = f.Vendor != nil
	f.Matched[FieldTotal] = f.Total != nil
	f.Matched[FieldTax] = f.Tax != nil
	f.Matched[FieldDate] = f.Date != nil
	return f
}
