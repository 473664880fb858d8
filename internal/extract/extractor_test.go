package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expenseflow/expense-ocr/constants"
	"github.com/expenseflow/expense-ocr/internal/entity"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestExtractor(doc entity.TemplateDocument) *Extractor {
	return New(StaticTemplate{Doc: doc}, nil, WithClock(fixedClock))
}

func TestExtractAmountLabeledTotal(t *testing.T) {
	e := newTestExtractor(entity.TemplateDocument{})

	fields := e.Extract(context.Background(), "Corner Store\nTOTAL: $42.50\nThank you")
	require.NotNil(t, fields.Amount.Value)
	assert.Equal(t, 42.50, *fields.Amount.Value)
	assert.Equal(t, "labeled-total", fields.Amount.Rule)
}

func TestExtractAmountRulePriority(t *testing.T) {
	e := newTestExtractor(entity.TemplateDocument{})

	tests := []struct {
		name string
		text string
		want float64
		rule string
	}{
		{"labeled total beats bare number", "item 9.99\nTotal 15.00", 15.00, "labeled-total"},
		{"currency prefix", "Lemonade stand\n$3.25\nhave a nice day", 3.25, "currency-prefix"},
		{"amount then usd", "Charge 18.40 USD", 18.40, "amount-suffix"},
		{"bare decimal last resort", "items\n12.95\nbye", 12.95, "bare-decimal"},
		{"comma decimal separator", "TOTAL: 12,34", 12.34, "labeled-total"},
		{"thousands separator", "TOTAL: $1,234.56", 1234.56, "labeled-total"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fields := e.Extract(context.Background(), tc.text)
			require.NotNil(t, fields.Amount.Value, "text: %q", tc.text)
			assert.Equal(t, tc.want, *fields.Amount.Value)
			assert.Equal(t, tc.rule, fields.Amount.Rule)
		})
	}
}

func TestExtractAmountOutOfRangeFallsToNextRule(t *testing.T) {
	e := newTestExtractor(entity.TemplateDocument{})

	// labeled value is implausible; the currency-prefixed one is next in priority
	fields := e.Extract(context.Background(), "TOTAL: 999999.00\npaid $20.00")
	require.NotNil(t, fields.Amount.Value)
	assert.Equal(t, 20.00, *fields.Amount.Value)
	assert.Equal(t, "currency-prefix", fields.Amount.Rule)
}

func TestExtractAmountNoneFound(t *testing.T) {
	e := newTestExtractor(entity.TemplateDocument{})

	fields := e.Extract(context.Background(), "no numbers here at all")
	assert.Nil(t, fields.Amount.Value)
}

func TestExtractMerchantFirstSubstantiveLine(t *testing.T) {
	e := newTestExtractor(entity.TemplateDocument{})

	fields := e.Extract(context.Background(), "Walmart Supercenter\n123 Main St\nTOTAL: $10.00")
	require.NotNil(t, fields.Merchant.Value)
	assert.Equal(t, "Walmart Supercenter", *fields.Merchant.Value)
	assert.Equal(t, RuleMerchantFirstLine, fields.Merchant.Rule)
}

func TestExtractMerchantSkipsNoiseLines(t *testing.T) {
	e := newTestExtractor(entity.TemplateDocument{})

	text := "122436\n03/15/2024\n$42.50\nBlue Bottle Coffee\nmore text"
	fields := e.Extract(context.Background(), text)
	require.NotNil(t, fields.Merchant.Value)
	assert.Equal(t, "Blue Bottle Coffee", *fields.Merchant.Value)
}

func TestExtractMerchantDefault(t *testing.T) {
	e := newTestExtractor(entity.TemplateDocument{})

	fields := e.Extract(context.Background(), "9981\n42.00\n03/15/2024")
	require.NotNil(t, fields.Merchant.Value)
	assert.Equal(t, DefaultMerchant, *fields.Merchant.Value)
	assert.Equal(t, RuleMerchantDefault, fields.Merchant.Rule)
}

func TestExtractMerchantTemplateFix(t *testing.T) {
	doc := entity.TemplateDocument{
		MerchantFixes: map[string]string{"WAL*MART": "Walmart"},
	}
	e := newTestExtractor(doc)

	fields := e.Extract(context.Background(), "WAL*MART\nTOTAL: $5.00")
	require.NotNil(t, fields.Merchant.Value)
	assert.Equal(t, "Walmart", *fields.Merchant.Value)
	assert.Equal(t, RuleMerchantTemplateFix, fields.Merchant.Rule)
}

func TestExtractDateNormalization(t *testing.T) {
	e := newTestExtractor(entity.TemplateDocument{})

	tests := []struct {
		text string
		want string
	}{
		{"receipt 03/15/2024 store", "2024-03-15"},
		{"2024-03-15", "2024-03-15"},
		{"March 15, 2024", "2024-03-15"},
		{"15 March 2024", "2024-03-15"},
		{"Date: 12/31/2023", "2023-12-31"},
		{"03/15/2024 14:23:05", "2024-03-15"},
		{"visited 7/4/24", "2024-07-04"},
	}
	for _, tc := range tests {
		fields := e.Extract(context.Background(), tc.text)
		require.NotNil(t, fields.Date.Value, "text: %q", tc.text)
		assert.Equal(t, tc.want, *fields.Date.Value, "text: %q", tc.text)
	}
}

func TestExtractDateRejectsNoiseYears(t *testing.T) {
	e := newTestExtractor(entity.TemplateDocument{})

	fields := e.Extract(context.Background(), "printed 01/01/1999")
	require.NotNil(t, fields.Date.Value)
	assert.Equal(t, "2024-06-01", *fields.Date.Value, "noise year must fall back to the current date")
	assert.Equal(t, RuleDateFallback, fields.Date.Rule)
}

func TestExtractDateFallbackWhenAbsent(t *testing.T) {
	e := newTestExtractor(entity.TemplateDocument{})

	fields := e.Extract(context.Background(), "no date anywhere")
	require.NotNil(t, fields.Date.Value)
	assert.Equal(t, "2024-06-01", *fields.Date.Value)
	assert.Equal(t, RuleDateFallback, fields.Date.Rule)
}

func TestExtractLocation(t *testing.T) {
	e := newTestExtractor(entity.TemplateDocument{})

	fields := e.Extract(context.Background(), "Shop\n482 Maple Avenue\nTOTAL: $3.00")
	require.NotNil(t, fields.Location.Value)
	assert.Equal(t, "482 Maple Avenue", *fields.Location.Value)

	fields = e.Extract(context.Background(), "Shop\nTOTAL: $3.00")
	assert.Nil(t, fields.Location.Value)
}

func TestClassifyCategoryBuckets(t *testing.T) {
	e := newTestExtractor(entity.TemplateDocument{})

	tests := []struct {
		text string
		want constants.Category
	}{
		{"Delta Airlines\nflight DL202\nTOTAL: $320.00", constants.Transportation},
		{"Hilton Garden Inn\n2 nights", constants.Lodging},
		{"Corner Diner\nbreakfast special", constants.Meals},
		{"FedEx Office\nshipping label", constants.Supplies},
		{"Kroger\nproduce", constants.Groceries},
		{"Unrecognizable vendor text", constants.Other},
	}
	for _, tc := range tests {
		fields := e.Extract(context.Background(), tc.text)
		require.NotNil(t, fields.Category.Value, "text: %q", tc.text)
		assert.Equal(t, string(tc.want), *fields.Category.Value, "text: %q", tc.text)
	}
}

func TestClassifyCategoryTemplateKeywords(t *testing.T) {
	doc := entity.TemplateDocument{
		CategoryKeywords: map[string][]string{
			string(constants.Meals): {"izakaya"},
		},
	}
	e := newTestExtractor(doc)

	fields := e.Extract(context.Background(), "Sakura Izakaya\nparty of 4")
	require.NotNil(t, fields.Category.Value)
	assert.Equal(t, string(constants.Meals), *fields.Category.Value)
	assert.Equal(t, RuleCategoryTemplate, fields.Category.Rule)
}

func TestExtractIsDeterministic(t *testing.T) {
	doc := entity.TemplateDocument{
		MerchantFixes:    map[string]string{"STARBUCKS #221": "Starbucks"},
		CategoryKeywords: map[string][]string{string(constants.Meals): {"latte"}},
	}
	e := newTestExtractor(doc)

	text := "STARBUCKS #221\n482 Maple Avenue\nlatte 4.50\nTOTAL: $4.50\n03/15/2024"
	first := e.Extract(context.Background(), text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.Extract(context.Background(), text),
			"same text + same template must produce identical output")
	}
}
