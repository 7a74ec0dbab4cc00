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

// ConversionHistory is one row per converted order or failed document.
type ConversionHistory struct{ ent.Schema }

func (ConversionHistory) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "conversion_history"},
	}
}

func (ConversionHistory) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id").Immutable(),
		field.String("batch_id").NotEmpty(),
		field.String("document_id").NotEmpty(),
		field.String("filename").NotEmpty(),
		field.String("source").NotEmpty(),
		field.String("order_number").Optional().Nillable(),
		field.String("status").NotEmpty().
			Validate(utils.EnumValidator(string(constants.ConversionOK), string(constants.ConversionFailed))),
		field.String("stage").Optional().Nillable().
			Validate(utils.EnumValidator(constants.StagesAsStringSlice()...)),
		field.Int("orders_count").NonNegative().Default(0),
		field.Int("line_items_count").NonNegative().Default(0),
		field.Int("unresolved_count").NonNegative().Default(0),
		field.String("error_message").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (ConversionHistory) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("batch_id"),
		index.Fields("source", "created_at"),
		index.Fields("status", "created_at"),
	}
}
