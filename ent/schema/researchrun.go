package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ResearchRun holds the schema definition for the ResearchRun entity.
type ResearchRun struct {
	ent.Schema
}

// Fields of the ResearchRun.
func (ResearchRun) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.Text("topic").
			Comment("Research topic (full-text searchable)"),
		field.JSON("parameters", map[string]interface{}{}).
			Optional(),
		field.String("created_by").
			Default(""),
		field.Enum("status").
			Values("pending", "running", "completed", "failed", "cancelled").
			Default("pending"),
		field.Time("started_at").
			Optional().
			Nillable().
			Comment("Set exactly when the run enters running"),
		field.Time("completed_at").
			Optional().
			Nillable().
			Comment("Set exactly when the run enters a terminal status"),
		field.Int("sources_discovered").
			Default(0).
			Comment("Monotonic counter"),
		field.Int("sources_assessed").
			Default(0).
			Comment("Monotonic counter"),
		field.Int("sources_approved").
			Default(0).
			Comment("Monotonic counter"),
		field.String("error_details").
			Default("").
			Comment("Non-empty iff status is failed"),
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

// Edges of the ResearchRun.
func (ResearchRun) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("content_sources", ContentSource.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("quality_assessments", QualityAssessment.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("integration_proposals", IntegrationProposal.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("review_queue_entries", ReviewQueueEntry.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("audit_events", AuditEvent.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the ResearchRun.
func (ResearchRun) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("created_at"),
		index.Fields("status", "completed_at"),
	}
}
