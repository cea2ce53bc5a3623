// Package postgres implements the document store against PostgreSQL with
// the pgvector extension.
//
// Similarity ranking and statistics are delegated to server-side stored
// routines (search_documents, document_statistics); similarity is computed
// as 1 - cosine distance, so a perfect match scores 1.0. The schema and
// routines are created by the embedded migrations in the db package.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/pitwall/pitwall/db"
	"github.com/pitwall/pitwall/internal/document"
	"github.com/pitwall/pitwall/internal/store"
)

// Config configures the postgres store.
type Config struct {
	// ConnURL is the postgres:// URL, used by Initialize for migrations.
	ConnURL string

	// Dims is the vector dimension enforced on insert.
	Dims int

	// InsertBatchSize bounds one insert round trip group. Default 50.
	InsertBatchSize int

	// InsertBatchDelay is the pause between insert batches. Default 200ms.
	InsertBatchDelay time.Duration
}

// Store implements store.Store on PostgreSQL + pgvector.
// It is safe for concurrent use.
type Store struct {
	queries Querier
	cfg     Config
	logger  *slog.Logger
}

// Connect opens a pgx pool for connURL and returns a Store over it.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.ConnURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return New(NewQueries(pool), cfg, logger), pool, nil
}

// New creates a Store over an existing Querier. Tests pass a mock here.
func New(queries Querier, cfg Config, logger *slog.Logger) *Store {
	if cfg.InsertBatchSize <= 0 {
		cfg.InsertBatchSize = 50
	}
	if cfg.InsertBatchDelay <= 0 {
		cfg.InsertBatchDelay = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: queries, cfg: cfg, logger: logger}
}

// Initialize runs the embedded migrations, which create the documents table,
// its indexes and the stored routines. Migrations already applied are
// skipped, so repeated calls are safe.
func (s *Store) Initialize(ctx context.Context) error {
	if err := db.Migrate(s.cfg.ConnURL); err != nil {
		return fmt.Errorf("initialize postgres schema: %w", err)
	}
	s.logger.Info("postgres schema ready")
	return nil
}

// Insert validates the batch, stores the accepted subset in sequential
// sub-batches, and reports rejections per input index.
func (s *Store) Insert(ctx context.Context, docs []document.Document) (store.InsertResult, error) {
	accepted, rejected := store.ValidateBatch(docs, s.cfg.Dims)
	result := store.InsertResult{Rejected: rejected}

	for start := 0; start < len(accepted); start += s.cfg.InsertBatchSize {
		end := min(start+s.cfg.InsertBatchSize, len(accepted))

		if start > 0 {
			select {
			case <-time.After(s.cfg.InsertBatchDelay):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}

		for _, doc := range accepted[start:end] {
			stored, err := s.insertOne(ctx, doc)
			if err != nil {
				return result, fmt.Errorf("insert batch starting at %d: %w", start, err)
			}
			result.Stored = append(result.Stored, stored)
		}
	}

	s.logger.Debug("insert complete",
		"stored", len(result.Stored), "rejected", len(result.Rejected))
	return result, nil
}

func (s *Store) insertOne(ctx context.Context, doc document.Document) (document.Document, error) {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return document.Document{}, fmt.Errorf("marshal metadata: %w", err)
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	id, err := s.queries.InsertDocument(ctx, InsertParams{
		Content:     doc.Text,
		Embedding:   pgvector.NewVector(doc.Embedding),
		Source:      doc.Source,
		Category:    doc.Category,
		Season:      doc.Season,
		Track:       doc.Track,
		Driver:      doc.Driver,
		Team:        doc.Team,
		Constructor: doc.Constructor,
		Position:    doc.Position,
		Points:      doc.Points,
		Metadata:    metadata,
		CreatedAt:   createdAt,
	})
	if err != nil {
		return document.Document{}, err
	}

	doc.ID = id
	doc.CreatedAt = createdAt
	return doc, nil
}

// Search delegates ranking to the search_documents routine; threshold and
// filters are enforced server-side.
func (s *Store) Search(ctx context.Context, query store.SearchQuery) ([]store.Result, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.queries.SearchDocuments(ctx, SearchParams{
		QueryEmbedding: pgvector.NewVector(query.Vector),
		MatchThreshold: query.Threshold,
		MatchCount:     query.Limit,
		FilterSeason:   nullable(query.Filters.Season),
		FilterCategory: nullable(query.Filters.Category),
		FilterTeam:     nullable(query.Filters.Team),
		FilterDriver:   nullable(query.Filters.Driver),
	})
	if err != nil {
		return nil, err
	}

	results := make([]store.Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, store.Result{
			Document:   s.rowDocument(row.ListRow),
			Similarity: row.Similarity,
		})
	}
	return results, nil
}

// GetByFilters performs a non-vector equality lookup, capped at
// store.MaxPageSize.
func (s *Store) GetByFilters(ctx context.Context, filters store.Filters, limit int) ([]document.Document, error) {
	rows, err := s.queries.ListDocuments(ctx, ListParams{
		FilterSeason:   nullable(filters.Season),
		FilterCategory: nullable(filters.Category),
		FilterTeam:     nullable(filters.Team),
		FilterDriver:   nullable(filters.Driver),
		Limit:          store.PageLimit(limit),
	})
	if err != nil {
		return nil, err
	}

	docs := make([]document.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, s.rowDocument(row))
	}
	return docs, nil
}

// Statistics delegates aggregation to the document_statistics routine.
func (s *Store) Statistics(ctx context.Context) (store.Statistics, error) {
	row, err := s.queries.Statistics(ctx)
	if err != nil {
		return store.Statistics{}, err
	}
	return store.Statistics{
		TotalDocuments:      row.Total,
		DocumentsByCategory: row.ByCategory,
		DocumentsBySeason:   row.BySeason,
	}, nil
}

// Clear deletes all documents.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.queries.DeleteAllDocuments(ctx); err != nil {
		return err
	}
	s.logger.Info("postgres store cleared")
	return nil
}

// HealthCheck reports backend status. It never returns an error; failures
// are folded into the returned struct.
func (s *Store) HealthCheck(ctx context.Context) store.Health {
	health := store.Health{
		Backend:    "postgres",
		Configured: s.cfg.ConnURL != "",
		CheckedAt:  time.Now().UTC(),
	}
	if !health.Configured {
		health.Error = "no connection URL configured"
		return health
	}

	if err := s.queries.Ping(ctx); err != nil {
		health.Error = err.Error()
		return health
	}
	health.Reachable = true

	exists, err := s.queries.SchemaExists(ctx)
	if err != nil {
		health.Error = err.Error()
		return health
	}
	health.SchemaReady = exists
	if !exists {
		return health
	}

	count, err := s.queries.CountDocuments(ctx)
	if err != nil {
		health.Error = err.Error()
		return health
	}
	health.Documents = count
	return health
}

// Close is a no-op; the pgx pool is owned and closed by the caller that
// opened it.
func (*Store) Close() error {
	return nil
}

func (s *Store) rowDocument(row ListRow) document.Document {
	var md map[string]string
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &md); err != nil {
			s.logger.Warn("failed to parse document metadata", "document_id", row.ID, "error", err)
			md = nil
		}
	}
	return document.Document{
		ID:          row.ID,
		Text:        row.Content,
		Source:      row.Source,
		Category:    row.Category,
		Season:      row.Season,
		Track:       row.Track,
		Driver:      row.Driver,
		Team:        row.Team,
		Constructor: row.Constructor,
		Position:    row.Position,
		Points:      row.Points,
		Metadata:    md,
		CreatedAt:   row.CreatedAt,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ store.Store = (*Store)(nil)
