// Package retrieval finds documents relevant to a free-text query.
//
// The primary path embeds the query and asks the document store for a
// vector search. When that path errors or returns nothing, the service
// degrades to a lexical substring scan over stored text and attribute
// fields, so a query always yields a result list. Lexical hits carry a
// constant 0.5 similarity to signal that they are not ranked.
package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pitwall/pitwall/internal/embedding"
	"github.com/pitwall/pitwall/internal/store"
)

// Similarity thresholds for the two query styles.
const (
	// ThresholdExploratory suits broad free-text questions.
	ThresholdExploratory = 0.25

	// ThresholdPrecision suits lookups that must match closely.
	ThresholdPrecision = 0.7
)

// LexicalSimilarity is assigned to every lexical-fallback hit. The constant
// value marks the result as non-ranked; callers can tell the two paths
// apart only by this provenance.
const LexicalSimilarity = 0.5

// DefaultLimit is used when Retrieve is called with a non-positive limit.
const DefaultLimit = 5

// Service retrieves grounding documents for queries.
type Service struct {
	embedder  embedding.Embedder
	store     store.Store
	threshold float64
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithThreshold overrides the default exploratory similarity threshold.
func WithThreshold(threshold float64) Option {
	return func(s *Service) {
		s.threshold = threshold
	}
}

// New creates a retrieval Service.
func New(embedder embedding.Embedder, st store.Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		embedder:  embedder,
		store:     st,
		threshold: ThresholdExploratory,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve returns up to limit documents relevant to queryText.
//
// It embeds the query, runs a vector search, and falls back to a lexical
// substring match when the embedding or search errors, or when the search
// comes back empty. The result shape is uniform across both paths. Retrieve
// never fails: if the fallback also fails an empty slice is returned.
func (s *Service) Retrieve(ctx context.Context, queryText string, filters store.Filters, limit int) []store.Result {
	if limit <= 0 {
		limit = DefaultLimit
	}

	vector, err := s.embedder.Embed(ctx, queryText, embedding.PurposeQuery)
	if err != nil {
		s.logger.Warn("query embedding failed, using lexical search", "error", err)
		return s.lexical(ctx, queryText, filters, limit)
	}

	results, err := s.store.Search(ctx, store.SearchQuery{
		Vector:    vector,
		Threshold: s.threshold,
		Limit:     limit,
		Filters:   filters,
	})
	if err != nil {
		s.logger.Warn("vector search failed, using lexical fallback", "error", err)
		return s.lexical(ctx, queryText, filters, limit)
	}
	if len(results) == 0 {
		s.logger.Debug("vector search empty, using lexical fallback", "query", queryText)
		return s.lexical(ctx, queryText, filters, limit)
	}
	return results
}

// lexical scans stored text, driver and team fields for case-insensitive
// substring matches against the raw query.
func (s *Service) lexical(ctx context.Context, queryText string, filters store.Filters, limit int) []store.Result {
	docs, err := s.store.GetByFilters(ctx, filters, store.MaxPageSize)
	if err != nil {
		s.logger.Error("lexical fallback failed", "error", err)
		return []store.Result{}
	}

	needle := strings.ToLower(strings.TrimSpace(queryText))
	results := make([]store.Result, 0, limit)
	for _, doc := range docs {
		if needle != "" && !matchesLexically(doc.Text, doc.Driver, doc.Team, needle) {
			continue
		}
		results = append(results, store.Result{Document: doc, Similarity: LexicalSimilarity})
		if len(results) == limit {
			break
		}
	}
	return results
}

func matchesLexically(text, driver, team, needle string) bool {
	for _, field := range []string{text, driver, team} {
		if field != "" && strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
