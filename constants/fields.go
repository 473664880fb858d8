package constants

// Field names for the structured expense fields produced by extraction.
// Stored verbatim in correction rows (fields_corrected) and template
// documents, so these exact strings are part of the persisted format.
const (
	FieldMerchant = "merchant"
	FieldAmount   = "amount"
	FieldDate     = "date"
	FieldLocation = "location"
	FieldCategory = "category"
)

// Fields holds every extractable field, in display order.
var Fields = []string{
	FieldMerchant,
	FieldAmount,
	FieldDate,
	FieldLocation,
	FieldCategory,
}

// IsField reports whether name is a known extraction field.
func IsField(name string) bool {
	for _, f := range Fields {
		if f == name {
			return true
		}
	}
	return false
}
