package entity

// OCRResult is the raw output of one recognition call: text plus an
// engine confidence in [0,1]. Immutable once produced.
type OCRResult struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
}

// StringField is one extracted string-valued field. Rule names the
// extraction rule that produced the value, for later correction linkage.
type StringField struct {
	Value *string `json:"value,omitempty"`
	Rule  string  `json:"rule,omitempty"`
}

// AmountField is the extracted monetary amount.
type AmountField struct {
	Value *float64 `json:"value,omitempty"`
	Rule  string   `json:"rule,omitempty"`
}

// ExtractedFields is the structured result of field extraction over one
// OCR text. Each field is independently nullable. Never mutated after
// creation; corrections are recorded separately.
type ExtractedFields struct {
	Merchant StringField `json:"merchant"`
	Amount   AmountField `json:"amount"`
	Date     StringField `json:"date"` // canonical YYYY-MM-DD
	Location StringField `json:"location"`
	Category StringField `json:"category"`
}

func (f ExtractedFields) MerchantValue() string {
	if f.Merchant.Value == nil {
		return ""
	}
	return *f.Merchant.Value
}

func (f ExtractedFields) CategoryValue() string {
	if f.Category.Value == nil {
		return ""
	}
	return *f.Category.Value
}

// Str returns a pointer to s, for building nullable fields.
func Str(s string) *string { return &s }

// Num returns a pointer to v.
func Num(v float64) *float64 { return &v }
