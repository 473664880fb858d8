package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/expenseflow/expense-ocr/internal/entity"
)

// Plausible amount range: values at or outside these bounds are rejected
// and the next rule is tried.
const (
	amountMin = 0.0
	amountMax = 100000.0
)

// amountRule is one prioritized extraction rule for the amount field.
type amountRule struct {
	name string
	re   *regexp.Regexp
}

// amountRules is the explicit rule priority order: the first rule whose
// first match parses to an in-range value wins.
var amountRules = []amountRule{
	{
		// a label word followed by an optionally currency-marked value
		name: "labeled-total",
		re:   regexp.MustCompile(`(?i)\b(?:grand\s+total|subtotal|total|amount|sum|balance)\b[\s:]*[$£€]?\s*(\d{1,3}(?:,\d{3})*[.,]\d{2}|\d+[.,]\d{2})`),
	},
	{
		name: "currency-prefix",
		re:   regexp.MustCompile(`[$£€]\s*(\d{1,3}(?:,\d{3})*[.,]\d{2}|\d+[.,]\d{2})`),
	},
	{
		name: "amount-suffix",
		re:   regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})*[.,]\d{2}|\d+[.,]\d{2})\s*(?:total|usd)\b`),
	},
	{
		// last resort: any 2-decimal number anywhere in the text
		name: "bare-decimal",
		re:   regexp.MustCompile(`(\d{1,3}(?:,\d{3})*\.\d{2}|\d+[.,]\d{2})`),
	},
}

var reCommaDecimal = regexp.MustCompile(`^\d+,\d{2}$`)

func extractAmount(text string) entity.AmountField {
	for _, rule := range amountRules {
		m := rule.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, ok := parseAmount(m[1])
		if !ok || v <= amountMin || v >= amountMax {
			// implausible value: discard silently, try the next rule
			continue
		}
		return entity.AmountField{Value: entity.Num(v), Rule: rule.name}
	}
	return entity.AmountField{}
}

// parseAmount normalizes a matched amount string to a float. Comma is
// accepted as either a thousands separator (1,234.56) or a decimal
// separator (12,34).
func parseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(s, " ", "")
	if reCommaDecimal.MatchString(s) {
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
