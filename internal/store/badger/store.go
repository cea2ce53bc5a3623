// Package badger implements the document store on an embedded Badger
// database via badgerhold.
//
// Badger has no native vector ranking, similarity threshold or aggregate
// routines, so this backend ranks candidates client-side: it fetches the
// equality-filtered candidate set, computes true cosine similarity against
// the query vector, applies the threshold itself, and sorts descending.
// Scores are therefore comparable with the postgres backend's
// 1 - cosine-distance scores. Statistics are computed by paging through the
// collection and counting.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/pitwall/pitwall/internal/document"
	"github.com/pitwall/pitwall/internal/store"
)

// statisticsPageSize is the page length used when aggregating counts
// client-side.
const statisticsPageSize = 500

// ErrNotOpen indicates an operation on a store whose database is not open.
var ErrNotOpen = errors.New("badger store is not open")

// Config configures the badger store.
type Config struct {
	// Dir is the data directory. Required.
	Dir string

	// Dims is the vector dimension enforced on insert.
	Dims int

	// InsertBatchSize bounds one insert group. Default 50.
	InsertBatchSize int

	// InsertBatchDelay is the pause between insert groups. Default 200ms.
	InsertBatchDelay time.Duration
}

// storedDocument is the badgerhold record shape. Field names are indexed by
// badgerhold queries, so they must stay stable.
type storedDocument struct {
	ID          string `badgerhold:"key"`
	Text        string
	Embedding   []float32
	Source      string
	Category    string `badgerholdIndex:"Category"`
	Season      string `badgerholdIndex:"Season"`
	Track       string
	Driver      string `badgerholdIndex:"Driver"`
	Team        string `badgerholdIndex:"Team"`
	Constructor string
	Position    string
	Points      float64
	Metadata    map[string]string
	CreatedAt   time.Time
}

// Store implements store.Store on badgerhold. It is safe for concurrent use.
type Store struct {
	db     *badgerhold.Store
	cfg    Config
	logger *slog.Logger
}

// Open opens (creating if needed) the Badger database at cfg.Dir.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("badger data directory is required")
	}
	if cfg.InsertBatchSize <= 0 {
		cfg.InsertBatchSize = 50
	}
	if cfg.InsertBatchDelay <= 0 {
		cfg.InsertBatchDelay = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	options := badgerhold.DefaultOptions
	options.Options = badgerdb.DefaultOptions(cfg.Dir).WithLogger(nil)

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger store at %s: %w", cfg.Dir, err)
	}

	return &Store{db: db, cfg: cfg, logger: logger}, nil
}

// Initialize is a no-op beyond opening: badger creates its files lazily and
// badgerhold maintains its indexes per record, so there is no schema to set
// up. It exists to satisfy the uniform store surface.
func (s *Store) Initialize(ctx context.Context) error {
	if s.db == nil {
		return ErrNotOpen
	}
	s.logger.Info("badger store ready", "dir", s.cfg.Dir)
	return nil
}

// Insert validates the batch, stores the accepted subset in sequential
// groups, and reports rejections per input index. IDs are assigned here;
// badger has no server side to do it.
func (s *Store) Insert(ctx context.Context, docs []document.Document) (store.InsertResult, error) {
	if s.db == nil {
		return store.InsertResult{}, ErrNotOpen
	}

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
			doc.ID = uuid.NewString()
			if doc.CreatedAt.IsZero() {
				doc.CreatedAt = time.Now().UTC()
			}
			rec := toStored(doc)
			if err := s.db.Insert(rec.ID, rec); err != nil {
				return result, fmt.Errorf("insert document: %w", err)
			}
			result.Stored = append(result.Stored, doc)
		}
	}

	s.logger.Debug("insert complete",
		"stored", len(result.Stored), "rejected", len(result.Rejected))
	return result, nil
}

// Search fetches the filtered candidate set and ranks it client-side by
// cosine similarity.
func (s *Store) Search(ctx context.Context, query store.SearchQuery) ([]store.Result, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	var candidates []storedDocument
	if err := s.db.Find(&candidates, filterQuery(query.Filters)); err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}

	results := make([]store.Result, 0, len(candidates))
	for _, rec := range candidates {
		similarity := cosineSimilarity(query.Vector, rec.Embedding)
		if similarity < query.Threshold {
			continue
		}
		results = append(results, store.Result{
			Document:   fromStored(rec),
			Similarity: similarity,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > query.Limit {
		results = results[:query.Limit]
	}
	return results, nil
}

// GetByFilters performs a non-vector equality lookup, capped at
// store.MaxPageSize.
func (s *Store) GetByFilters(ctx context.Context, filters store.Filters, limit int) ([]document.Document, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	var records []storedDocument
	q := filterQuery(filters).Limit(store.PageLimit(limit))
	if err := s.db.Find(&records, q); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	docs := make([]document.Document, 0, len(records))
	for _, rec := range records {
		docs = append(docs, fromStored(rec))
	}
	return docs, nil
}

// Statistics pages through the collection and counts client-side; badger
// has no aggregate routine to delegate to.
func (s *Store) Statistics(ctx context.Context) (store.Statistics, error) {
	if s.db == nil {
		return store.Statistics{}, ErrNotOpen
	}

	stats := store.Statistics{
		DocumentsByCategory: make(map[string]int64),
		DocumentsBySeason:   make(map[string]int64),
	}

	for offset := 0; ; offset += statisticsPageSize {
		var page []storedDocument
		q := allQuery().Skip(offset).Limit(statisticsPageSize)
		if err := s.db.Find(&page, q); err != nil {
			return store.Statistics{}, fmt.Errorf("page documents at offset %d: %w", offset, err)
		}
		for _, rec := range page {
			stats.TotalDocuments++
			stats.DocumentsByCategory[rec.Category]++
			stats.DocumentsBySeason[rec.Season]++
		}
		if len(page) < statisticsPageSize {
			break
		}
	}
	return stats, nil
}

// Clear deletes all documents.
func (s *Store) Clear(ctx context.Context) error {
	if s.db == nil {
		return ErrNotOpen
	}
	if err := s.db.DeleteMatching(&storedDocument{}, allQuery()); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	s.logger.Info("badger store cleared")
	return nil
}

// HealthCheck reports backend status. It never returns an error.
func (s *Store) HealthCheck(ctx context.Context) store.Health {
	health := store.Health{
		Backend:    "badger",
		Configured: s.cfg.Dir != "",
		CheckedAt:  time.Now().UTC(),
	}
	if s.db == nil {
		health.Error = ErrNotOpen.Error()
		return health
	}
	health.Reachable = true
	health.SchemaReady = true

	count, err := s.db.Count(&storedDocument{}, allQuery())
	if err != nil {
		health.Error = err.Error()
		return health
	}
	health.Documents = int64(count)
	return health
}

// Close closes the underlying Badger database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// filterQuery translates equality filters into a badgerhold query. An empty
// filter set selects everything.
func filterQuery(filters store.Filters) *badgerhold.Query {
	var q *badgerhold.Query
	add := func(field, value string) {
		if value == "" {
			return
		}
		if q == nil {
			q = badgerhold.Where(field).Eq(value)
			return
		}
		q = q.And(field).Eq(value)
	}
	add("Category", filters.Category)
	add("Season", filters.Season)
	add("Team", filters.Team)
	add("Driver", filters.Driver)
	if q == nil {
		return allQuery()
	}
	return q
}

func allQuery() *badgerhold.Query {
	return badgerhold.Where("ID").Ne("")
}

// cosineSimilarity returns the cosine of the angle between a and b, clamped
// to [0, 1] so scores line up with the 1 - cosine-distance convention of the
// postgres backend. Mismatched lengths or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if similarity < 0 {
		return 0
	}
	if similarity > 1 {
		return 1
	}
	return similarity
}

func toStored(doc document.Document) storedDocument {
	return storedDocument{
		ID:          doc.ID,
		Text:        doc.Text,
		Embedding:   doc.Embedding,
		Source:      doc.Source,
		Category:    doc.Category,
		Season:      doc.Season,
		Track:       doc.Track,
		Driver:      doc.Driver,
		Team:        doc.Team,
		Constructor: doc.Constructor,
		Position:    doc.Position,
		Points:      doc.Points,
		Metadata:    doc.Metadata,
		CreatedAt:   doc.CreatedAt,
	}
}

func fromStored(rec storedDocument) document.Document {
	return document.Document{
		ID:          rec.ID,
		Text:        rec.Text,
		Embedding:   rec.Embedding,
		Source:      rec.Source,
		Category:    rec.Category,
		Season:      rec.Season,
		Track:       rec.Track,
		Driver:      rec.Driver,
		Team:        rec.Team,
		Constructor: rec.Constructor,
		Position:    rec.Position,
		Points:      rec.Points,
		Metadata:    rec.Metadata,
		CreatedAt:   rec.CreatedAt,
	}
}

var _ store.Store = (*Store)(nil)
