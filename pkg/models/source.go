package models

import "time"

// ContentSource is an external item (paper, article, news story)
// discovered for a research run. Within one run, ContentHash is unique;
// the discovery layer deduplicates on it before persisting.
type ContentSource struct {
	ID            string     `json:"id"`
	ResearchRunID string     `json:"research_run_id"`
	SourceType    SourceType `json:"source_type"`

	URL         string `json:"url,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// SourceMetadata carries type-specific fields (authors, venue,
	// published date, publisher) as returned by the external client.
	SourceMetadata map[string]any `json:"source_metadata,omitempty"`

	RetrievalMethod string    `json:"retrieval_method"`
	RetrievedAt     time.Time `json:"retrieved_at"`

	// ContentHash is the SHA-256 digest of the normalized external
	// identifier. It is the dedup key within a run.
	ContentHash string `json:"content_hash"`

	Provenance map[string]any `json:"provenance,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// CombinedText returns the text used for embedding and tag extraction.
func (s *ContentSource) CombinedText() string {
	text := s.Title
	if s.Description != "" {
		text += " " + s.Description
	}
	if excerpt, ok := s.SourceMetadata["excerpt"].(string); ok && excerpt != "" {
		text += " " + excerpt
	}
	return text
}
