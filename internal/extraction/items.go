package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

const minItemNameRunes = 3

// LineItem is one purchased product parsed from a single receipt line
type LineItem struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// noiseKeywords mark lines that are never items
var noiseKeywords = []string{
	"total", "tax", "subtotal", "payment", "change", "balance", "amount due",
	"visa", "mastercard", "amex", "discover", "debit", "credit", "cash",
	"thank you", "receipt",
}

var (
	priceToken = regexp.MustCompile(`^\$?\d[\d,]*\.\d{2}[A-Za-z]?$`)

	// quantityPatterns are tried in order; the first match sets the quantity
	quantityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d+)\s*x\b`),
		regexp.MustCompile(`(?i)\bx\s*(\d+)\b`),
		regexp.MustCompile(`(?i)\bqty:?\s*(\d+)\b`),
	}
)

// ExtractItems parses item lines in order. Duplicate names are kept as
// separate items.
func ExtractItems(lines []string) []LineItem {
	items := make([]LineItem, 0)
	for _, line := range lines {
		if isNoise(line) {
			continue
		}
		if item, ok := parseItem(line); ok {
			items = append(items, item)
		}
	}
	return items
}

func isNoise(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range noiseKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// parseItem uses the rightmost price-shaped token as the price and the tokens
// before it as the name.
func parseItem(line string) (LineItem, bool) {
	tokens := strings.Fields(line)
	priceIdx := -1
	for i := len(tokens) - 1; i >= 0; i-- {
		if priceToken.MatchString(tokens[i]) {
			priceIdx = i
			break
		}
	}
	if priceIdx <= 0 {
		return LineItem{}, false
	}

	price, ok := ParseAmount(tokens[priceIdx])
	if !ok || !price.IsPositive() {
		return LineItem{}, false
	}

	name := strings.Join(tokens[:priceIdx], " ")
	name = strings.TrimRight(name, " $@")
	name, qty := extractQuantity(name)
	if len([]rune(name)) < minItemNameRunes || !strings.ContainsFunc(name, unicode.IsLetter) {
		return LineItem{}, false
	}

	return LineItem{
		Name:     titleCase(name),
		Price:    price,
		Quantity: qty,
	}, true
}

// extractQuantity pulls an "N x", "x N" or "qty N" marker out of name
func extractQuantity(name string) (string, int) {
	for _, re := range quantityPatterns {
		m := re.FindStringSubmatchIndex(name)
		if m == nil {
			continue
		}
		qty, err := strconv.Atoi(name[m[2]:m[3]])
		if err != nil || qty <= 0 {
			continue
		}
		rest := name[:m[0]] + " " + name[m[1]:]
		return strings.Join(strings.Fields(rest), " "), qty
	}
	return name, 1
}
