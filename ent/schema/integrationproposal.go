package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// IntegrationProposal holds the schema definition for the
// IntegrationProposal entity. At most one exists per content source.
type IntegrationProposal struct {
	ent.Schema
}

// Fields of the IntegrationProposal.
func (IntegrationProposal) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("content_source_id").
			Unique().
			Immutable(),
		field.String("research_run_id").
			Immutable(),
		field.Enum("strategy").
			Values("basic", "standard", "deep", "comprehensive"),
		field.JSON("proposed_actions", map[string]bool{}).
			Optional(),
		field.Enum("estimated_effort").
			Values("low", "medium", "high"),
		field.Float("confidence").
			Comment("In [0,1], derived from neighbor similarity"),
		field.JSON("suggested_connections", []map[string]interface{}{}).
			Optional(),
		field.JSON("suggested_tags", []map[string]interface{}{}).
			Optional(),
		field.Enum("status").
			Values("pending_review", "approved", "rejected", "implemented").
			Default("pending_review"),
		field.JSON("provenance", map[string]interface{}{}).
			Optional(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the IntegrationProposal.
func (IntegrationProposal) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("content_source", ContentSource.Type).
			Ref("integration_proposal").
			Field("content_source_id").
			Unique().
			Required().
			Immutable(),
		edge.From("research_run", ResearchRun.Type).
			Ref("integration_proposals").
			Field("research_run_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the IntegrationProposal.
func (IntegrationProposal) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("research_run_id"),
		index.Fields("status"),
	}
}
