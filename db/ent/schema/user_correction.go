package schema

import (
	"encoding/json"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"

	"github.com/expenseflow/expense-ocr/constants"
	"github.com/expenseflow/expense-ocr/db/ent/schema/utils"
)

// UserCorrection is one append-only record of a human overriding an
// auto-filled field. Rows are never updated or deleted.
type UserCorrection struct{ ent.Schema }

func (UserCorrection) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "user_corrections"},
	}
}

func (UserCorrection) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.UUID("expense_id", uuid.UUID{}).Optional().Nillable(),
		field.UUID("user_id", uuid.UUID{}),
		field.String("ocr_provider").NotEmpty(),
		field.String("ocr_text").
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Float32("ocr_confidence").Min(0).Max(1),
		field.JSON("original_inference", json.RawMessage{}),
		field.String("corrected_merchant").Optional().Nillable(),
		field.String("corrected_amount").Optional().Nillable(),
		field.String("corrected_date").Optional().Nillable(),
		field.String("corrected_location").Optional().Nillable(),
		field.String("corrected_category").Optional().Nillable(),
		field.Strings("fields_corrected"),
		field.String("environment").
			Default(constants.EnvProduction).
			Validate(utils.EnumValidator(constants.EnvProduction, constants.EnvSandbox)),
		field.String("notes").Optional(),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (UserCorrection) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("created_at"),
		index.Fields("user_id"),
	}
}
