package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ContentSource holds the schema definition for the ContentSource
// entity.
type ContentSource struct {
	ent.Schema
}

// Fields of the ContentSource.
func (ContentSource) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("research_run_id").
			Immutable(),
		field.Enum("source_type").
			Values("web", "academic", "news"),
		field.String("url").
			Default(""),
		field.Text("title").
			Comment("Full-text searchable via GIN index created in migrations"),
		field.Text("description").
			Default(""),
		field.JSON("source_metadata", map[string]interface{}{}).
			Optional(),
		field.String("retrieval_method").
			Default(""),
		field.Time("retrieved_at").
			Optional().
			Nillable(),
		field.String("content_hash").
			Comment("SHA-256 of the normalized external identifier; dedup key within a run"),
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

// Edges of the ContentSource.
func (ContentSource) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("research_run", ResearchRun.Type).
			Ref("content_sources").
			Field("research_run_id").
			Unique().
			Required().
			Immutable(),
		edge.To("quality_assessment", QualityAssessment.Type).
			Unique().
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("integration_proposal", IntegrationProposal.Type).
			Unique().
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("review_queue_entries", ReviewQueueEntry.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the ContentSource.
func (ContentSource) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("research_run_id"),
		// Dedup constraint per run.
		index.Fields("research_run_id", "content_hash").
			Unique(),
	}
}
