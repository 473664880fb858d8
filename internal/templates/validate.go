package templates

import (
	"bytes"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/entity"
)

// documentSchema constrains a template document before it is versioned:
// fix tables map strings to strings, keyword lists hold lowercase words,
// thresholds stay inside [0,1].
const documentSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"merchant_fixes": {
			"type": "object",
			"additionalProperties": {"type": "string", "minLength": 1}
		},
		"category_keywords": {
			"type": "object",
			"additionalProperties": {
				"type": "array",
				"items": {"type": "string", "minLength": 1, "pattern": "^[a-z0-9]+$"}
			}
		},
		"confidence_thresholds": {
			"type": "object",
			"additionalProperties": {"type": "number", "minimum": 0, "maximum": 1}
		},
		"merchant_examples": {
			"type": "array",
			"items": {"type": "string"}
		}
	},
	"additionalProperties": false
}`

// DocumentValidator checks template documents against the schema above.
type DocumentValidator struct {
	schema *jsonschema.Schema
}

func NewDocumentValidator() (*DocumentValidator, error) {
	schema, err := jsonschema.CompileString("template-document.json", documentSchema)
	if err != nil {
		return nil, common.WrapError(err, "compile template document schema")
	}
	return &DocumentValidator{schema: schema}, nil
}

func (v *DocumentValidator) Validate(doc entity.TemplateDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return common.WrapError(err, "marshal template document")
	}
	var decoded any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return common.WrapError(err, "decode template document")
	}
	if err := v.schema.Validate(decoded); err != nil {
		return common.WrapError(err, "template document rejected")
	}
	return nil
}
