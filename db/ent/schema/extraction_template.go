package schema

import (
	"encoding/json"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ExtractionTemplate is one versioned snapshot of the extraction template
// tables. Versions are never deleted, only superseded; at most one row
// carries deployed = true.
type ExtractionTemplate struct{ ent.Schema }

func (ExtractionTemplate) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "extraction_templates"},
	}
}

func (ExtractionTemplate) Fields() []ent.Field {
	return []ent.Field{
		field.String("version").NotEmpty().Unique().Immutable(),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Int("based_on_correction_count").NonNegative(),
		field.JSON("metrics", json.RawMessage{}).Optional(),
		field.Bool("deployed").Default(false),
		field.String("notes").Optional(),
		field.JSON("document", json.RawMessage{}),
	}
}

func (ExtractionTemplate) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("created_at"),
		index.Fields("deployed"),
	}
}
