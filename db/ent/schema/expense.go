package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"

	"github.com/expenseflow/expense-ocr/constants"
	"github.com/expenseflow/expense-ocr/db/ent/schema/utils"
)

// Expense is the slice of the externally owned expense record this system
// reads for duplicate screening and writes extraction results into.
type Expense struct{ ent.Schema }

func (Expense) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "expenses"},
	}
}

func (Expense) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.UUID("user_id", uuid.UUID{}),
		field.String("merchant").NotEmpty(),
		field.Float("amount").Positive(),
		field.Time("expense_date"),
		field.String("category").
			Default(string(constants.Other)).
			Validate(utils.EnumValidator(constants.AsStringSlice()...)),
		field.String("location").Optional().Nillable(),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (Expense) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "expense_date"),
	}
}
