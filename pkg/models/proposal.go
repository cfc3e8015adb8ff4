package models

import (
	"fmt"
	"time"
)

// ConnectionSuggestion proposes a link from the new source to an
// existing knowledge-graph node.
type ConnectionSuggestion struct {
	TargetID  string         `json:"target_id"`
	Kind      ConnectionKind `json:"kind"`
	Strength  float64        `json:"strength"`
	Rationale string         `json:"rationale"`
}

// TagSuggestion is a scored tag candidate for the source.
type TagSuggestion struct {
	Tag        string  `json:"tag"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category"`
}

// IntegrationProposal is a plan describing how to merge an approved
// content source into the knowledge graph. At most one exists per
// source; regeneration requires explicit deletion first.
type IntegrationProposal struct {
	ID              string `json:"id"`
	ContentSourceID string `json:"content_source_id"`
	ResearchRunID   string `json:"research_run_id"`

	Strategy IntegrationStrategy `json:"strategy"`

	// ProposedActions maps action kind to enabled.
	ProposedActions map[string]bool `json:"proposed_actions"`

	EstimatedEffort EffortLevel `json:"estimated_effort"`

	// Confidence in [0,1], derived from neighbor similarity.
	Confidence float64 `json:"confidence"`

	Connections []ConnectionSuggestion `json:"suggested_connections,omitempty"`
	Tags        []TagSuggestion        `json:"suggested_tags,omitempty"`

	Status ProposalStatus `json:"status"`

	Provenance map[string]any `json:"provenance,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Validate checks proposal invariants.
func (p *IntegrationProposal) Validate() error {
	if p.ContentSourceID == "" {
		return fmt.Errorf("%w: content_source_id required", ErrInvalidModel)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range [0,1]", ErrInvalidModel, p.Confidence)
	}
	for _, c := range p.Connections {
		if c.TargetID == p.ContentSourceID {
			return fmt.Errorf("%w: self-referential connection to %s", ErrInvalidModel, c.TargetID)
		}
	}
	return nil
}
