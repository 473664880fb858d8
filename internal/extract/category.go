package extract

import (
	"strings"

	"github.com/expenseflow/expense-ocr/constants"
	"github.com/expenseflow/expense-ocr/internal/entity"
)

// Rule names recorded on the category field.
const (
	RuleCategoryKeyword  = "keyword-bucket"
	RuleCategoryTemplate = "template-keyword"
	RuleCategoryDefault  = "default"
)

// categoryBucket is one ordered keyword group; the first bucket with a
// keyword present in the text wins.
type categoryBucket struct {
	category constants.Category
	keywords []string
}

var categoryBuckets = []categoryBucket{
	{constants.Meals, []string{
		"restaurant", "cafe", "coffee", "diner", "bistro", "grill", "kitchen",
		"bar", "pub", "food", "dining", "breakfast", "lunch", "dinner", "meal",
		"pizza", "burger", "sushi", "bakery",
	}},
	{constants.Lodging, []string{
		"hotel", "motel", "inn", "resort", "marriott", "hilton", "hyatt",
		"lodging", "accommodation", "suites", "hostel",
	}},
	{constants.Transportation, []string{
		"uber", "lyft", "taxi", "cab", "rideshare", "airline", "airways",
		"flight", "airport", "parking", "toll", "rental", "hertz", "avis",
		"enterprise", "gas", "fuel", "gasoline", "diesel", "shell", "chevron",
		"exxon", "metro", "transit", "train", "amtrak",
	}},
	{constants.Supplies, []string{
		"office", "supply", "supplies", "staples", "depot", "shipping",
		"freight", "courier", "fedex", "ups", "usps", "dhl", "postage",
		"stationery",
	}},
	{constants.Groceries, []string{
		"grocery", "groceries", "supermarket", "market", "walmart", "target",
		"costco", "kroger", "safeway", "aldi", "store", "retail",
	}},
}

// classifyCategory runs keyword-bucket classification over the merchant
// text plus the full OCR text. Template keywords for a bucket's category
// are checked before its built-in list, so mined keywords can claim text
// the defaults miss; bucket order itself never changes.
func classifyCategory(merchant, text string, doc entity.TemplateDocument) entity.StringField {
	haystack := strings.ToLower(merchant + "\n" + text)

	for _, bucket := range categoryBuckets {
		for _, kw := range doc.CategoryKeywords[string(bucket.category)] {
			if kw != "" && strings.Contains(haystack, strings.ToLower(kw)) {
				return entity.StringField{
					Value: entity.Str(string(bucket.category)),
					Rule:  RuleCategoryTemplate,
				}
			}
		}
		for _, kw := range bucket.keywords {
			if strings.Contains(haystack, kw) {
				return entity.StringField{
					Value: entity.Str(string(bucket.category)),
					Rule:  RuleCategoryKeyword,
				}
			}
		}
	}

	return entity.StringField{Value: entity.Str(string(constants.Other)), Rule: RuleCategoryDefault}
}
