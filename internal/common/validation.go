package common

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidationError is one failed rule on one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// ValidationRule checks one value and reports nil when it passes.
type ValidationRule func(field string, value any) *ValidationError

// Validator collects rule failures across fields so a caller gets every
// problem in one round trip instead of the first one found.
type Validator struct {
	errors []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Field(name string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(name, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) ErrorMessage() string {
	msgs := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Err returns the collected failures as an invalid-argument error, or nil
// when everything passed.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return InvalidArgumentError(v.ErrorMessage())
}

// Required rejects nil, empty, and blank string values.
func Required(field string, value any) *ValidationError {
	fail := &ValidationError{Field: field, Message: "is required"}
	switch v := value.(type) {
	case nil:
		return fail
	case string:
		if strings.TrimSpace(v) == "" {
			return fail
		}
	case *string:
		if v == nil || strings.TrimSpace(*v) == "" {
			return fail
		}
	}
	return nil
}

// NonNilUUID rejects the zero uuid.
func NonNilUUID(field string, value any) *ValidationError {
	if id, ok := value.(uuid.UUID); !ok || id == uuid.Nil {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// NonEmptySlice rejects empty and nil string slices.
func NonEmptySlice(field string, value any) *ValidationError {
	if s, ok := value.([]string); !ok || len(s) == 0 {
		return &ValidationError{Field: field, Message: "must not be empty"}
	}
	return nil
}

// MaxLength bounds a string or *string value, counted in runes. Nil
// pointers pass.
func MaxLength(max int) ValidationRule {
	return func(field string, value any) *ValidationError {
		var str string
		switch v := value.(type) {
		case string:
			str = v
		case *string:
			if v == nil {
				return nil
			}
			str = *v
		default:
			return nil
		}
		if utf8.RuneCountInString(str) > max {
			return &ValidationError{
				Field:   field,
				Message: fmt.Sprintf("must be at most %d characters", max),
			}
		}
		return nil
	}
}
