package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// InsertParams are the column values for one document insert.
type InsertParams struct {
	Content     string
	Embedding   pgvector.Vector
	Source      string
	Category    string
	Season      string
	Track       string
	Driver      string
	Team        string
	Constructor string
	Position    string
	Points      float64
	Metadata    []byte
	CreatedAt   time.Time
}

// SearchParams are the arguments of the search_documents stored routine.
// Nil filter pointers become SQL NULLs, which the routine treats as
// "no filter".
type SearchParams struct {
	QueryEmbedding pgvector.Vector
	MatchThreshold float64
	MatchCount     int
	FilterSeason   *string
	FilterCategory *string
	FilterTeam     *string
	FilterDriver   *string
}

// SearchRow is one ranked row returned by search_documents.
type SearchRow struct {
	ListRow
	Similarity float64
}

// ListParams are the arguments of the non-vector equality lookup.
// A nil filter pointer means the column is not filtered.
type ListParams struct {
	FilterSeason   *string
	FilterCategory *string
	FilterTeam     *string
	FilterDriver   *string
	Limit          int
}

// ListRow is one row returned by ListDocuments.
type ListRow struct {
	ID          string
	Content     string
	Source      string
	Category    string
	Season      string
	Track       string
	Driver      string
	Team        string
	Constructor string
	Position    string
	Points      float64
	Metadata    []byte
	CreatedAt   time.Time
}

// StatisticsRow is the decoded aggregate returned by document_statistics.
type StatisticsRow struct {
	Total      int64            `json:"total"`
	ByCategory map[string]int64 `json:"by_category"`
	BySeason   map[string]int64 `json:"by_season"`
}

// Querier defines the database operations Store needs. Defining the
// interface on the consumer side keeps Store testable with a mock database.
type Querier interface {
	// InsertDocument stores one document and returns its assigned id.
	InsertDocument(ctx context.Context, arg InsertParams) (string, error)

	// SearchDocuments calls the search_documents stored routine.
	SearchDocuments(ctx context.Context, arg SearchParams) ([]SearchRow, error)

	// ListDocuments performs an equality-filtered, non-vector lookup.
	ListDocuments(ctx context.Context, arg ListParams) ([]ListRow, error)

	// Statistics calls the document_statistics stored routine.
	Statistics(ctx context.Context) (StatisticsRow, error)

	// CountDocuments counts all stored documents.
	CountDocuments(ctx context.Context) (int64, error)

	// DeleteAllDocuments removes every document.
	DeleteAllDocuments(ctx context.Context) error

	// SchemaExists reports whether the documents table is present.
	SchemaExists(ctx context.Context) (bool, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// Queries implements Querier against a pgx connection pool.
type Queries struct {
	pool *pgxpool.Pool
}

// NewQueries wraps a pgx pool with the document queries.
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

const insertDocumentSQL = `
INSERT INTO documents
  (content, embedding, source, category, season, track, driver, team, constructor, race_position, points, metadata, created_at)
VALUES
  ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id`

func (q *Queries) InsertDocument(ctx context.Context, arg InsertParams) (string, error) {
	var id string
	err := q.pool.QueryRow(ctx, insertDocumentSQL,
		arg.Content, arg.Embedding, arg.Source, arg.Category, arg.Season,
		arg.Track, arg.Driver, arg.Team, arg.Constructor, arg.Position,
		arg.Points, arg.Metadata, arg.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

const searchDocumentsSQL = `
SELECT id, content, source, category, season, track, driver, team, constructor,
       race_position, points, metadata, created_at, similarity
FROM search_documents($1, $2, $3, $4, $5, $6, $7)`

func (q *Queries) SearchDocuments(ctx context.Context, arg SearchParams) ([]SearchRow, error) {
	rows, err := q.pool.Query(ctx, searchDocumentsSQL,
		arg.QueryEmbedding, arg.MatchThreshold, arg.MatchCount,
		arg.FilterSeason, arg.FilterCategory, arg.FilterTeam, arg.FilterDriver,
	)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	var out []SearchRow
	for rows.Next() {
		var r SearchRow
		if err := rows.Scan(
			&r.ID, &r.Content, &r.Source, &r.Category, &r.Season,
			&r.Track, &r.Driver, &r.Team, &r.Constructor, &r.Position,
			&r.Points, &r.Metadata, &r.CreatedAt, &r.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return out, nil
}

const listDocumentsSQL = `
SELECT id, content, source, category, season, track, driver, team, constructor,
       race_position, points, metadata, created_at
FROM documents
WHERE ($1::text IS NULL OR season = $1)
  AND ($2::text IS NULL OR category = $2)
  AND ($3::text IS NULL OR team = $3)
  AND ($4::text IS NULL OR driver = $4)
ORDER BY created_at DESC
LIMIT $5`

func (q *Queries) ListDocuments(ctx context.Context, arg ListParams) ([]ListRow, error) {
	rows, err := q.pool.Query(ctx, listDocumentsSQL,
		arg.FilterSeason, arg.FilterCategory, arg.FilterTeam, arg.FilterDriver, arg.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []ListRow
	for rows.Next() {
		var r ListRow
		if err := rows.Scan(
			&r.ID, &r.Content, &r.Source, &r.Category, &r.Season,
			&r.Track, &r.Driver, &r.Team, &r.Constructor, &r.Position,
			&r.Points, &r.Metadata, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan list row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate list rows: %w", err)
	}
	return out, nil
}

const statisticsSQL = `SELECT document_statistics()`

func (q *Queries) Statistics(ctx context.Context) (StatisticsRow, error) {
	var payload []byte
	if err := q.pool.QueryRow(ctx, statisticsSQL).Scan(&payload); err != nil {
		return StatisticsRow{}, fmt.Errorf("document statistics: %w", err)
	}
	var row StatisticsRow
	if err := json.Unmarshal(payload, &row); err != nil {
		return StatisticsRow{}, fmt.Errorf("decode statistics: %w", err)
	}
	return row, nil
}

func (q *Queries) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	if err := q.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func (q *Queries) DeleteAllDocuments(ctx context.Context) error {
	if _, err := q.pool.Exec(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("delete all documents: %w", err)
	}
	return nil
}

const schemaExistsSQL = `
SELECT EXISTS (
  SELECT 1 FROM information_schema.tables
  WHERE table_schema = 'public' AND table_name = 'documents'
)`

func (q *Queries) SchemaExists(ctx context.Context) (bool, error) {
	var exists bool
	if err := q.pool.QueryRow(ctx, schemaExistsSQL).Scan(&exists); err != nil {
		return false, fmt.Errorf("check schema: %w", err)
	}
	return exists, nil
}

func (q *Queries) Ping(ctx context.Context) error {
	return q.pool.Ping(ctx)
}

var _ Querier = (*Queries)(nil)
