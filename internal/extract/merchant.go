package extract

import (
	"regexp"

	"github.com/expenseflow/expense-ocr/internal/entity"
)

// merchantScanLines is how many leading non-empty lines are considered.
const merchantScanLines = 5

// Rule names recorded on the merchant field.
const (
	RuleMerchantFirstLine   = "first-line"
	RuleMerchantTemplateFix = "template-fix"
	RuleMerchantDefault     = "default"
)

var (
	reLineNumeric = regexp.MustCompile(`^[\d\s#]+$`)
	reLineDate    = regexp.MustCompile(`^\d{1,4}[-/]\d{1,2}[-/]\d{1,4}$`)
	reLineAmount  = regexp.MustCompile(`^[$£€]?\s*\d{1,3}(?:,\d{3})*[.,]\d{2}$`)
)

// extractMerchant scans the first merchantScanLines non-empty lines and
// returns the first one that is not purely numeric, date-like, or a bare
// currency amount. The deployed template's merchant fixes are applied to
// the winning value.
func extractMerchant(lines []string, doc entity.TemplateDocument) entity.StringField {
	limit := len(lines)
	if limit > merchantScanLines {
		limit = merchantScanLines
	}

	for _, line := range lines[:limit] {
		if reLineNumeric.MatchString(line) ||
			reLineDate.MatchString(line) ||
			reLineAmount.MatchString(line) {
			continue
		}
		if fixed, ok := doc.MerchantFixes[line]; ok {
			return entity.StringField{Value: entity.Str(fixed), Rule: RuleMerchantTemplateFix}
		}
		return entity.StringField{Value: entity.Str(line), Rule: RuleMerchantFirstLine}
	}

	return entity.StringField{Value: entity.Str(DefaultMerchant), Rule: RuleMerchantDefault}
}
