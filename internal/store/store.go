// Package store defines the provider-agnostic document store interface and
// the validation every backend applies at its boundary.
//
// Two backend families implement the interface: a PostgreSQL store that
// delegates similarity ranking and statistics to server-side routines
// (subpackage postgres), and an embedded schemaless store that ranks
// candidates client-side (subpackage badger). Backend selection happens once
// at startup; callers hold only the Store interface.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pitwall/pitwall/internal/document"
)

// MaxPageSize caps GetByFilters results regardless of the requested limit.
const MaxPageSize = 200

// DefaultSearchLimit is used when a search query does not set a limit.
const DefaultSearchLimit = 10

var (
	// ErrInvalidThreshold indicates a similarity threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("similarity threshold must be between 0 and 1")

	// ErrEmptyQueryVector indicates a search with no query vector.
	ErrEmptyQueryVector = errors.New("query vector must not be empty")
)

// Filters restricts operations to documents matching every set field
// (equality semantics; empty fields are ignored).
type Filters struct {
	Category string
	Season   string
	Team     string
	Driver   string
}

// Empty reports whether no filter field is set.
func (f Filters) Empty() bool {
	return f == Filters{}
}

// SearchQuery describes one similarity search.
type SearchQuery struct {
	Vector    []float32
	Threshold float64
	Limit     int
	Filters   Filters
}

// Validate normalizes the query and rejects out-of-range parameters.
func (q *SearchQuery) Validate() error {
	if len(q.Vector) == 0 {
		return ErrEmptyQueryVector
	}
	if q.Threshold < 0 || q.Threshold > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, q.Threshold)
	}
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	return nil
}

// Result is one ranked search hit.
type Result struct {
	Document   document.Document
	Similarity float64
}

// Rejection reports one document excluded from an Insert call, keyed by its
// position in the input slice.
type Rejection struct {
	Index  int
	Reason string
}

// InsertResult reports the outcome of one Insert call: the stored
// representations of the accepted subset and the rejected remainder.
type InsertResult struct {
	Stored   []document.Document
	Rejected []Rejection
}

// Statistics aggregates the stored population.
type Statistics struct {
	TotalDocuments      int64
	DocumentsByCategory map[string]int64
	DocumentsBySeason   map[string]int64
}

// Health reports backend status. HealthCheck implementations never return an
// error; failures are carried in the struct.
type Health struct {
	Backend     string
	Configured  bool
	Reachable   bool
	SchemaReady bool
	Documents   int64
	Error       string
	CheckedAt   time.Time
}

// Store is the uniform document-store surface both backends expose.
type Store interface {
	// Initialize idempotently ensures the backing schema, collection and
	// similarity index exist.
	Initialize(ctx context.Context) error

	// Insert validates every document first, stores the subset that
	// validates, and reports the rest. A validation failure never aborts
	// the call and is never silently dropped.
	Insert(ctx context.Context, docs []document.Document) (InsertResult, error)

	// Search returns hits ranked by similarity, descending, truncated to
	// the query limit, excluding anything below the threshold.
	Search(ctx context.Context, query SearchQuery) ([]Result, error)

	// GetByFilters is a non-vector equality lookup, capped at MaxPageSize.
	GetByFilters(ctx context.Context, filters Filters, limit int) ([]document.Document, error)

	// Statistics returns aggregate counts over the stored population.
	Statistics(ctx context.Context) (Statistics, error)

	// Clear deletes all documents.
	Clear(ctx context.Context) error

	// HealthCheck reports status and never returns an error.
	HealthCheck(ctx context.Context) Health

	// Close releases backend resources.
	Close() error
}

// ValidateBatch applies the document invariants to every draft and splits
// the batch into the accepted subset and the indexed rejections. Both
// backends call this before touching the wire so the partial-acceptance
// contract is identical across them.
func ValidateBatch(docs []document.Document, dims int) (accepted []document.Document, rejected []Rejection) {
	for i, doc := range docs {
		if err := doc.Validate(dims); err != nil {
			rejected = append(rejected, Rejection{Index: i, Reason: err.Error()})
			continue
		}
		accepted = append(accepted, doc)
	}
	return accepted, rejected
}

// PageLimit clamps a requested limit to (0, MaxPageSize].
func PageLimit(limit int) int {
	if limit <= 0 || limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
