package extract

import (
	"regexp"

	"github.com/expenseflow/expense-ocr/internal/entity"
)

// RuleLocationStreet is the single location rule: a leading street number
// followed by a street-type suffix word.
const RuleLocationStreet = "street-address"

var reStreetAddress = regexp.MustCompile(
	`(?i)\b(\d{1,5}\s+[A-Za-z][A-Za-z.' ]*?\s(?:St|Street|Ave|Avenue|Rd|Road|Blvd|Boulevard|Dr|Drive|Ln|Lane|Way|Ct|Court|Pkwy|Parkway|Plaza|Pl)\.?)(?:[\s,]|$)`)

// extractLocation matches a street-address-like token. Optional: the
// field stays null when nothing matches.
func extractLocation(text string) entity.StringField {
	m := reStreetAddress.FindStringSubmatch(text)
	if m == nil {
		return entity.StringField{}
	}
	return entity.StringField{Value: entity.Str(m[1]), Rule: RuleLocationStreet}
}
