package schema

import (
	"encoding/json"
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

// RetrainingJob is one retraining run's record, updated in place as the
// run progresses.
type RetrainingJob struct{ ent.Schema }

func (RetrainingJob) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "retraining_jobs"},
	}
}

func (RetrainingJob) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.String("status").
			Default(string(constants.JobStatusPending)).
			Validate(utils.EnumValidator(
				string(constants.JobStatusPending),
				string(constants.JobStatusRunning),
				string(constants.JobStatusCompleted),
				string(constants.JobStatusFailed),
			)),
		field.Time("corrections_since"),
		field.Time("started_at").Optional().Nillable(),
		field.Time("completed_at").Optional().Nillable(),
		field.String("new_template_version").Optional().Nillable(),
		field.JSON("metrics", json.RawMessage{}).Optional(),
		field.String("error").Optional().Nillable(),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (RetrainingJob) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("created_at"),
		index.Fields("status"),
	}
}
