package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AuditEvent holds the schema definition for the AuditEvent entity.
// Append-only: rows are never updated, and only run deletion removes
// them.
type AuditEvent struct {
	ent.Schema
}

// Fields of the AuditEvent.
func (AuditEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("research_run_id").
			Immutable(),
		field.String("event_type").
			Immutable(),
		field.Enum("level").
			Values("info", "warning", "error", "critical").
			Default("info").
			Immutable(),
		field.Time("timestamp").
			Immutable(),
		field.JSON("payload", map[string]interface{}{}).
			Optional().
			Immutable(),
		field.String("content_source_id").
			Optional().
			Immutable(),
		field.String("review_entry_id").
			Optional().
			Immutable(),
	}
}

// Edges of the AuditEvent.
func (AuditEvent) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("research_run", ResearchRun.Type).
			Ref("audit_events").
			Field("research_run_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the AuditEvent.
func (AuditEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("research_run_id", "timestamp"),
		index.Fields("timestamp"),
		index.Fields("event_type"),
	}
}
