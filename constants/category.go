package constants

import (
	"strings"
)

type Category string

const (
	Meals          Category = "Meals"
	Lodging        Category = "Lodging"
	Transportation Category = "Transportation"
	Supplies       Category = "Supplies"
	Groceries      Category = "Groceries"
	Other          Category = "Other"
)

var allCategories = []Category{
	Meals,
	Lodging,
	Transportation,
	Supplies,
	Groceries,
	Other,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Category{
		"meal":          Meals,
		"food":          Meals,
		"dining":        Meals,
		"hotel":         Lodging,
		"accommodation": Lodging,
		"travel":        Transportation,
		"flight":        Transportation,
		"rideshare":     Transportation,
		"fuel":          Transportation,
		"office":        Supplies,
		"shipping":      Supplies,
		"retail":        Groceries,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	// check if it matches any category string
	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return Other, false
}
