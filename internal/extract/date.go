package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/expenseflow/expense-ocr/internal/entity"
)

// RuleDateFallback marks a date filled with the extraction-time current
// date because no rule matched. Deliberate behavior, not an error.
const RuleDateFallback = "current-date-fallback"

// Years at or below this are treated as OCR noise and rejected.
const minPlausibleYear = 2000

var monthNumbers = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// dateRule is one prioritized date shape. parse returns the canonical
// YYYY-MM-DD form, or ok=false when the match is not a real calendar date.
type dateRule struct {
	name  string
	re    *regexp.Regexp
	parse func(m []string) (string, bool)
}

const monthNames = `January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec`

// dateRules is the explicit priority order for date shapes. Trailing
// times ("03/15/2024 14:23") are accepted because no pattern anchors to
// end of line.
var dateRules = []dateRule{
	{
		name:  "iso",
		re:    regexp.MustCompile(`\b(\d{4})[-/](\d{1,2})[-/](\d{1,2})\b`),
		parse: func(m []string) (string, bool) { return ymd(m[1], m[2], m[3]) },
	},
	{
		name:  "labeled-slash",
		re:    regexp.MustCompile(`(?i)\b(?:date|time)\b[\s:]+(\d{1,2})[-/](\d{1,2})[-/](\d{4})`),
		parse: func(m []string) (string, bool) { return ymd(m[3], m[1], m[2]) },
	},
	{
		name:  "slash-mdy",
		re:    regexp.MustCompile(`\b(\d{1,2})[-/](\d{1,2})[-/](\d{4})\b`),
		parse: func(m []string) (string, bool) { return ymd(m[3], m[1], m[2]) },
	},
	{
		name: "slash-mdy-short",
		re:   regexp.MustCompile(`\b(\d{1,2})[-/](\d{1,2})[-/](\d{2})\b`),
		parse: func(m []string) (string, bool) {
			yy, _ := strconv.Atoi(m[3])
			year := 1900 + yy
			if yy < 50 {
				year = 2000 + yy
			}
			return ymd(strconv.Itoa(year), m[1], m[2])
		},
	},
	{
		name: "month-day-year",
		re:   regexp.MustCompile(`(?i)\b(` + monthNames + `)[a-z]*\.?\s+(\d{1,2}),?\s+(\d{4})\b`),
		parse: func(m []string) (string, bool) {
			mon, ok := monthNumbers[strings.ToLower(m[1])[:3]]
			if !ok {
				return "", false
			}
			return ymd(m[3], strconv.Itoa(mon), m[2])
		},
	},
	{
		name: "day-month-year",
		re:   regexp.MustCompile(`(?i)\b(\d{1,2})\s+(` + monthNames + `)[a-z]*\.?\s+(\d{4})\b`),
		parse: func(m []string) (string, bool) {
			mon, ok := monthNumbers[strings.ToLower(m[2])[:3]]
			if !ok {
				return "", false
			}
			return ymd(m[3], strconv.Itoa(mon), m[1])
		},
	},
}

// extractDate tries each date shape in order and normalizes the first
// successful parse. When nothing matches, the extraction-time current
// date is used rather than reporting a failure.
func extractDate(text string, now func() time.Time) entity.StringField {
	for _, rule := range dateRules {
		m := rule.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		normalized, ok := rule.parse(m)
		if !ok {
			continue
		}
		return entity.StringField{Value: entity.Str(normalized), Rule: rule.name}
	}

	today := now().Format("2006-01-02")
	return entity.StringField{Value: entity.Str(today), Rule: RuleDateFallback}
}

// ymd assembles and validates a canonical date. Rejects impossible
// calendar dates and years at or below minPlausibleYear (OCR noise).
func ymd(year, month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil || y <= minPlausibleYear {
		return "", false
	}
	mo, err := strconv.Atoi(month)
	if err != nil || mo < 1 || mo > 12 {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return "", false
	}

	candidate := fmt.Sprintf("%04d-%02d-%02d", y, mo, d)
	if _, err := time.Parse("2006-01-02", candidate); err != nil {
		return "", false
	}
	return candidate, true
}
