package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ReviewQueueEntry holds the schema definition for the
// ReviewQueueEntry entity.
type ReviewQueueEntry struct {
	ent.Schema
}

// Fields of the ReviewQueueEntry.
func (ReviewQueueEntry) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("content_source_id").
			Immutable(),
		field.String("research_run_id").
			Immutable(),
		field.String("assigned_to").
			Default(""),
		field.Int("priority").
			Default(5).
			Comment("round(10 * assessment.overall), or 5 without an assessment"),
		field.Enum("status").
			Values("pending", "assigned", "approved", "rejected", "escalated").
			Default("pending"),
		field.Text("review_notes").
			Default("").
			Comment("Append-only in effect; every transition appends a line"),
		field.Time("decided_at").
			Optional().
			Nillable().
			Comment("Set on terminal decisions; review-time metrics derive from this"),
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

// Edges of the ReviewQueueEntry.
func (ReviewQueueEntry) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("content_source", ContentSource.Type).
			Ref("review_queue_entries").
			Field("content_source_id").
			Unique().
			Required().
			Immutable(),
		edge.From("research_run", ResearchRun.Type).
			Ref("review_queue_entries").
			Field("research_run_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the ReviewQueueEntry.
func (ReviewQueueEntry) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status", "priority"),
		index.Fields("research_run_id"),
		index.Fields("assigned_to"),
	}
}
