//go:build integration

package postgres

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pitwall/pitwall/internal/document"
	"github.com/pitwall/pitwall/internal/log"
	"github.com/pitwall/pitwall/internal/store"
)

// migrationDims matches the vector column width fixed by the migrations.
const migrationDims = 1024

// setupStore starts a pgvector container, applies the embedded migrations
// and returns a ready Store. Cleanup is registered on t.
func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"pgvector/pgvector:pg16",
		tcpostgres.WithDatabase("pitwall_test"),
		tcpostgres.WithUsername("pitwall_test"),
		tcpostgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	s := New(NewQueries(pool), Config{ConnURL: connStr, Dims: migrationDims}, log.NewNop())
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	// A second run must be a no-op.
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() second run error = %v", err)
	}
	return s
}

// unitVector builds a deterministic unit-length vector whose direction is
// controlled by seed, so tests can reason about cosine similarity exactly.
func unitVector(seed int) []float32 {
	v := make([]float32, migrationDims)
	v[seed%migrationDims] = 1
	return v
}

// blendedVector leans mostly toward axis a with a small component on axis b,
// giving a high but sub-1.0 similarity against unitVector(a).
func blendedVector(a, b int) []float32 {
	v := make([]float32, migrationDims)
	norm := float32(math.Sqrt(2))
	v[a%migrationDims] = 1 / norm
	v[b%migrationDims] = 1 / norm
	return v
}

func integrationDoc(driver, team string, embedding []float32) document.Document {
	return document.Document{
		Text:      driver + " drives for " + team + " in the 2024 season.",
		Embedding: embedding,
		Source:    "drivers.csv",
		Category:  document.CategoryDrivers,
		Season:    "2024",
		Driver:    driver,
		Team:      team,
	}
}

func TestIntegrationInsertAndSearch(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	docs := []document.Document{
		integrationDoc("Max Verstappen", "Red Bull", unitVector(0)),
		integrationDoc("Lando Norris", "McLaren", unitVector(1)),
		integrationDoc("Oscar Piastri", "McLaren", blendedVector(0, 2)),
	}
	result, err := s.Insert(ctx, docs)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if len(result.Stored) != 3 || len(result.Rejected) != 0 {
		t.Fatalf("Insert() = %d stored, %d rejected, want 3/0", len(result.Stored), len(result.Rejected))
	}

	hits, err := s.Search(ctx, store.SearchQuery{
		Vector:    unitVector(0),
		Threshold: 0.5,
		Limit:     5,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2 (exact match and the blended one)", len(hits))
	}
	if hits[0].Document.Driver != "Max Verstappen" {
		t.Errorf("top hit = %q, want the exact match first", hits[0].Document.Driver)
	}
	if hits[0].Similarity < 0.999 {
		t.Errorf("exact-match similarity = %v, want ~1.0", hits[0].Similarity)
	}
	if hits[1].Similarity >= hits[0].Similarity {
		t.Errorf("results not ordered by similarity: %v then %v", hits[0].Similarity, hits[1].Similarity)
	}

	// A high threshold must drop the blended document.
	strict, err := s.Search(ctx, store.SearchQuery{
		Vector:    unitVector(0),
		Threshold: 0.9,
		Limit:     5,
	})
	if err != nil {
		t.Fatalf("Search() strict error = %v", err)
	}
	if len(strict) != 1 {
		t.Errorf("strict hits = %d, want 1", len(strict))
	}
}

func TestIntegrationSearchFilters(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	docs := []document.Document{
		integrationDoc("Lando Norris", "McLaren", unitVector(0)),
		integrationDoc("George Russell", "Mercedes", unitVector(0)),
	}
	if _, err := s.Insert(ctx, docs); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	hits, err := s.Search(ctx, store.SearchQuery{
		Vector:    unitVector(0),
		Threshold: 0.5,
		Limit:     5,
		Filters:   store.Filters{Team: "McLaren"},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].Document.Team != "McLaren" {
		t.Errorf("filtered hits = %+v, want only McLaren", hits)
	}
}

func TestIntegrationGetByFiltersAndStatistics(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	teamDoc := document.Document{
		Text:      "McLaren competes in the 2024 season with strong pace.",
		Embedding: unitVector(3),
		Source:    "teams.csv",
		Category:  document.CategoryTeams,
		Season:    "2024",
		Team:      "McLaren",
	}
	docs := []document.Document{
		integrationDoc("Lando Norris", "McLaren", unitVector(0)),
		integrationDoc("Oscar Piastri", "McLaren", unitVector(1)),
		teamDoc,
	}
	if _, err := s.Insert(ctx, docs); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	drivers, err := s.GetByFilters(ctx, store.Filters{Category: document.CategoryDrivers}, 10)
	if err != nil {
		t.Fatalf("GetByFilters() error = %v", err)
	}
	if len(drivers) != 2 {
		t.Errorf("drivers = %d, want 2", len(drivers))
	}

	stats, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if stats.TotalDocuments != 3 {
		t.Errorf("TotalDocuments = %d, want 3", stats.TotalDocuments)
	}
	if stats.DocumentsByCategory[document.CategoryDrivers] != 2 {
		t.Errorf("DocumentsByCategory = %v", stats.DocumentsByCategory)
	}
	if stats.DocumentsBySeason["2024"] != 3 {
		t.Errorf("DocumentsBySeason = %v", stats.DocumentsBySeason)
	}
}

func TestIntegrationClearAndHealth(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, []document.Document{integrationDoc("Lando Norris", "McLaren", unitVector(0))}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	health := s.HealthCheck(ctx)
	if !health.Reachable || !health.SchemaReady || health.Documents != 1 {
		t.Errorf("HealthCheck() = %+v, want reachable schema with 1 document", health)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	health = s.HealthCheck(ctx)
	if health.Documents != 0 {
		t.Errorf("Documents after Clear = %d, want 0", health.Documents)
	}
}
