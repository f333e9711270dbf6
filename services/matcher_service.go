package services

import (
	"context"
	"fmt"
	"log"

	"github/itish2003/repair-agent/models"
)

// Matcher finds the single best-matching indexed document for a query.
type Matcher interface {
	Match(ctx context.Context, query string) (models.MatchResult, error)
}

// SimilarityMatcher performs a k=1 nearest-neighbor lookup and applies a
// maximum-distance acceptance threshold. Lower distance means a closer
// match, so a candidate is accepted only when distance <= threshold.
type SimilarityMatcher struct {
	index     VectorIndex
	embedder  Embedder
	threshold float64
}

// NewSimilarityMatcher creates a matcher over the given index.
func NewSimilarityMatcher(index VectorIndex, embedder Embedder, threshold float64) *SimilarityMatcher {
	return &SimilarityMatcher{
		index:     index,
		embedder:  embedder,
		threshold: threshold,
	}
}

// Match implements Matcher. Both rejection outcomes (empty index, candidate
// above threshold) are returned as explicit results, never as errors.
func (m *SimilarityMatcher) Match(ctx context.Context, query string) (models.MatchResult, error) {
	vector, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return models.MatchResult{}, fmt.Errorf("failed to embed query text: %w", err)
	}

	neighbors, err := m.index.QueryNearest(ctx, vector, 1)
	if err != nil {
		return models.MatchResult{}, fmt.Errorf("failed to query vector index: %w", err)
	}

	if len(neighbors) == 0 {
		log.Printf("MATCHER: no candidates in the index for query %q", query)
		return models.MatchResult{Status: models.MatchNone}, nil
	}

	best := neighbors[0]
	if best.Distance > m.threshold {
		log.Printf("MATCHER: best candidate at distance %.3f exceeds threshold %.3f", best.Distance, m.threshold)
		return models.MatchResult{Status: models.MatchBelowThreshold, Distance: best.Distance}, nil
	}

	metadata := make(map[string]interface{}, len(best.Metadata)+1)
	for k, v := range best.Metadata {
		metadata[k] = v
	}
	metadata["similarity_score"] = best.Distance

	log.Printf("MATCHER: accepted candidate at distance %.3f", best.Distance)
	return models.MatchResult{
		Status:   models.MatchFound,
		Metadata: metadata,
		Distance: best.Distance,
	}, nil
}
