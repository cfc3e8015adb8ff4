package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// QualityAssessment holds the schema definition for the
// QualityAssessment entity. At most one exists per content source.
type QualityAssessment struct {
	ent.Schema
}

// Fields of the QualityAssessment.
func (QualityAssessment) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("content_source_id").
			Unique().
			Immutable(),
		field.String("research_run_id").
			Immutable(),
		field.Float("credibility").
			Comment("In [0,1]"),
		field.Float("relevance").
			Comment("In [0,1]"),
		field.Float("freshness").
			Comment("In [0,1]"),
		field.Float("completeness").
			Comment("In [0,1]"),
		field.Float("overall").
			Comment("Weighted sum of the four dimensions, rounded to two decimals"),
		field.Text("summary").
			Default(""),
		field.String("classification").
			Default(""),
		field.Text("rationale").
			Default(""),
		field.JSON("assessment_metadata", map[string]interface{}{}).
			Optional().
			Comment("Records weights used and whether AI path or fallback was taken"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the QualityAssessment.
func (QualityAssessment) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("content_source", ContentSource.Type).
			Ref("quality_assessment").
			Field("content_source_id").
			Unique().
			Required().
			Immutable(),
		edge.From("research_run", ResearchRun.Type).
			Ref("quality_assessments").
			Field("research_run_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the QualityAssessment.
func (QualityAssessment) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("research_run_id"),
	}
}
