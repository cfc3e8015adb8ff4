// Package integration analyzes how an approved content source should
// be merged into the knowledge graph: suggested connections to similar
// existing nodes, suggested tags, an integration strategy, and an
// effort estimate.
package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kbforge/curator/pkg/models"
	"github.com/kbforge/curator/pkg/storage"
)

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Neighbor is an existing knowledge-graph node similar to the source
// being analyzed.
type Neighbor struct {
	ID         string
	Title      string
	Tags       []string
	Similarity float64
}

// VectorStore indexes node embeddings and answers similarity queries.
type VectorStore interface {
	FindSimilar(ctx context.Context, vector []float32, k int, minSimilarity float64) ([]Neighbor, error)
	Upsert(ctx context.Context, id string, vector []float32) error
}

// Similarity search parameters.
const (
	neighborK             = 10
	neighborMinSimilarity = 0.5
)

// Connection similarity bands and their strength multipliers.
const (
	directBand     = 0.8
	thematicBand   = 0.6
	contextualBand = 0.4

	directMultiplier     = 1.2
	thematicMultiplier   = 1.0
	contextualMultiplier = 0.8
	looseMultiplier      = 0.6
)

// Analyzer produces integration proposals. Propose is idempotent per
// source; regeneration requires deleting the existing proposal first.
type Analyzer struct {
	embedder  Embedder
	vectors   VectorStore
	proposals storage.ProposalRepository
	now       func() time.Time
	logger    *slog.Logger
}

// NewAnalyzer creates an integration analyzer.
func NewAnalyzer(embedder Embedder, vectors VectorStore, proposals storage.ProposalRepository) *Analyzer {
	return &Analyzer{
		embedder:  embedder,
		vectors:   vectors,
		proposals: proposals,
		now:       time.Now,
		logger:    slog.Default().With("component", "integration"),
	}
}

// Propose returns the existing proposal for the source if one exists,
// otherwise analyzes the source and persists a new proposal.
func (a *Analyzer) Propose(ctx context.Context, src *models.ContentSource) (*models.IntegrationProposal, error) {
	existing, err := a.proposals.GetBySource(ctx, src.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("look up existing proposal for %s: %w", src.ID, err)
	}

	proposal, err := a.analyze(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := a.proposals.Create(ctx, proposal); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			// A concurrent analysis won the race; return its result.
			return a.proposals.GetBySource(ctx, src.ID)
		}
		return nil, fmt.Errorf("persist proposal for %s: %w", src.ID, err)
	}
	return proposal, nil
}

// analyze builds a proposal without consulting or touching storage.
func (a *Analyzer) analyze(ctx context.Context, src *models.ContentSource) (*models.IntegrationProposal, error) {
	neighbors, err := a.findNeighbors(ctx, src)
	if err != nil {
		return nil, err
	}

	connections := suggestConnections(src, neighbors)
	tags := suggestTags(src, neighbors)
	actions := proposedActions(src, connections, tags)

	proposal := &models.IntegrationProposal{
		ID:              uuid.New().String(),
		ContentSourceID: src.ID,
		ResearchRunID:   src.ResearchRunID,
		Strategy:        chooseStrategy(src.SourceType, neighbors),
		ProposedActions: actions,
		EstimatedEffort: estimateEffort(actions),
		Confidence:      proposalConfidence(neighbors),
		Connections:     connections,
		Tags:            tags,
		Status:          models.ProposalStatusPendingReview,
		Provenance: map[string]any{
			"neighbor_count": len(neighbors),
			"analyzed_at":    a.now().UTC().Format(time.RFC3339),
		},
		CreatedAt: a.now(),
		UpdatedAt: a.now(),
	}
	if err := proposal.Validate(); err != nil {
		return nil, err
	}
	return proposal, nil
}

// findNeighbors embeds the source text and queries the vector store.
// Either collaborator being absent yields no neighbors rather than an
// error; the proposal then falls back to its most conservative shape.
func (a *Analyzer) findNeighbors(ctx context.Context, src *models.ContentSource) ([]Neighbor, error) {
	if a.embedder == nil || a.vectors == nil {
		return nil, nil
	}
	vector, err := a.embedder.Embed(ctx, src.CombinedText())
	if err != nil {
		return nil, fmt.Errorf("embed source %s: %w", src.ID, err)
	}
	neighbors, err := a.vectors.FindSimilar(ctx, vector, neighborK, neighborMinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("similarity search for %s: %w", src.ID, err)
	}
	return neighbors, nil
}

// suggestConnections maps each neighbor to a connection suggestion
// with kind and strength derived from its similarity band.
func suggestConnections(src *models.ContentSource, neighbors []Neighbor) []models.ConnectionSuggestion {
	var out []models.ConnectionSuggestion
	for _, n := range neighbors {
		if n.ID == src.ID {
			continue
		}
		kind, multiplier := connectionBand(n.Similarity)
		out = append(out, models.ConnectionSuggestion{
			TargetID:  n.ID,
			Kind:      kind,
			Strength:  clamp01(n.Similarity * multiplier),
			Rationale: connectionRationale(kind, n),
		})
	}
	return out
}

func connectionBand(similarity float64) (models.ConnectionKind, float64) {
	switch {
	case similarity >= directBand:
		return models.ConnectionDirect, directMultiplier
	case similarity >= thematicBand:
		return models.ConnectionThematic, thematicMultiplier
	case similarity >= contextualBand:
		return models.ConnectionContextual, contextualMultiplier
	default:
		return models.ConnectionLoose, looseMultiplier
	}
}

func connectionRationale(kind models.ConnectionKind, n Neighbor) string {
	title := n.Title
	if title == "" {
		title = n.ID
	}
	switch kind {
	case models.ConnectionDirect:
		return fmt.Sprintf("Strong overlap with %q (similarity %.2f); likely covers the same subject.", title, n.Similarity)
	case models.ConnectionThematic:
		return fmt.Sprintf("Shares a theme with %q (similarity %.2f).", title, n.Similarity)
	case models.ConnectionContextual:
		return fmt.Sprintf("Provides context related to %q (similarity %.2f).", title, n.Similarity)
	default:
		return fmt.Sprintf("Loosely related to %q (similarity %.2f).", title, n.Similarity)
	}
}

// chooseStrategy picks the merge depth from the source type and the
// average neighbor similarity. Academic material always gets the full
// treatment.
func chooseStrategy(sourceType models.SourceType, neighbors []Neighbor) models.IntegrationStrategy {
	if sourceType == models.SourceTypeAcademic {
		return models.StrategyComprehensive
	}
	avg := averageSimilarity(neighbors)
	switch {
	case avg >= 0.8:
		return models.StrategyDeep
	case avg >= 0.6:
		return models.StrategyStandard
	default:
		return models.StrategyBasic
	}
}

// proposalConfidence is the average neighbor similarity, with a +0.1
// boost when at least one neighbor is a strong match.
func proposalConfidence(neighbors []Neighbor) float64 {
	confidence := averageSimilarity(neighbors)
	for _, n := range neighbors {
		if n.Similarity >= 0.7 {
			confidence += 0.1
			break
		}
	}
	return clamp01(confidence)
}

func averageSimilarity(neighbors []Neighbor) float64 {
	if len(neighbors) == 0 {
		return 0
	}
	sum := 0.0
	for _, n := range neighbors {
		sum += n.Similarity
	}
	return sum / float64(len(neighbors))
}

// proposedActions enumerates the merge steps this proposal entails.
func proposedActions(src *models.ContentSource, connections []models.ConnectionSuggestion, tags []models.TagSuggestion) map[string]bool {
	actions := map[string]bool{
		"create_node":  true,
		"index_vector": true,
	}
	if len(connections) > 0 {
		actions["add_connections"] = true
	}
	if len(tags) > 0 {
		actions["apply_tags"] = true
	}
	if src.SourceType == models.SourceTypeAcademic {
		actions["extract_citations"] = true
		actions["link_references"] = true
	}
	for _, c := range connections {
		if c.Kind == models.ConnectionDirect {
			actions["merge_duplicates_check"] = true
			break
		}
	}
	return actions
}

// estimateEffort buckets the number of enabled actions.
func estimateEffort(actions map[string]bool) models.EffortLevel {
	enabled := 0
	for _, on := range actions {
		if on {
			enabled++
		}
	}
	switch {
	case enabled <= 3:
		return models.EffortLow
	case enabled <= 6:
		return models.EffortMedium
	default:
		return models.EffortHigh
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
