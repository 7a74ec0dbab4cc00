package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/db/ent/schema/utils"
)

// IdentifierMapping maps a raw partner identifier to its canonical value.
// Several rows may share a key; priority and recency pick the winner.
type IdentifierMapping struct {
	ent.Schema
}

func (IdentifierMapping) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "identifier_mappings"},
	}
}

func (IdentifierMapping) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id").
			Immutable().
			StorageKey("id"),
		field.String("source").NotEmpty().
			Validate(utils.EnumValidator(constants.SourcesAsStringSlice()...)),
		field.String("key_type").NotEmpty().
			Validate(utils.EnumValidator(constants.KeyTypesAsStringSlice()...)),
		field.String("raw_value").NotEmpty(),
		field.String("canonical_value").NotEmpty(),
		field.Int("priority").Default(100),
		field.Bool("active").Default(true),
		field.String("vendor").Optional().Nillable(),
		field.String("description").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.String("notes").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (IdentifierMapping) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("source", "key_type", "raw_value", "active"),
		index.Fields("source", "key_type", "priority"),
	}
}
