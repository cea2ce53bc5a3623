package badger

import (
	"context"
	"math"
	"testing"

	"github.com/pitwall/pitwall/internal/document"
	"github.com/pitwall/pitwall/internal/log"
	"github.com/pitwall/pitwall/internal/store"
)

const testDims = 4

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Dir: t.TempDir(), Dims: testDims}, log.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func driverDoc(driver, team, season string, embedding []float32) document.Document {
	return document.Document{
		Text:      driver + " drives for " + team + " in the " + season + " season.",
		Embedding: embedding,
		Source:    "drivers.csv",
		Category:  document.CategoryDrivers,
		Season:    season,
		Driver:    driver,
		Team:      team,
	}
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(Config{Dims: testDims}, log.NewNop()); err == nil {
		t.Fatal("Open() without a directory should fail")
	}
}

func TestInsertAssignsIDs(t *testing.T) {
	s := openStore(t)

	result, err := s.Insert(context.Background(), []document.Document{
		driverDoc("Lando Norris", "McLaren", "2024", []float32{1, 0, 0, 0}),
		driverDoc("Oscar Piastri", "McLaren", "2024", []float32{0, 1, 0, 0}),
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if len(result.Stored) != 2 {
		t.Fatalf("Stored = %d, want 2", len(result.Stored))
	}
	if result.Stored[0].ID == "" || result.Stored[1].ID == "" {
		t.Error("stored documents must carry assigned IDs")
	}
	if result.Stored[0].ID == result.Stored[1].ID {
		t.Error("assigned IDs must be unique")
	}
}

func TestInsertPartialAcceptance(t *testing.T) {
	s := openStore(t)

	bad := driverDoc("Nobody", "Nowhere", "not-a-year", []float32{1, 0, 0, 0})
	result, err := s.Insert(context.Background(), []document.Document{
		driverDoc("Lando Norris", "McLaren", "2024", []float32{1, 0, 0, 0}),
		bad,
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if len(result.Stored) != 1 || len(result.Rejected) != 1 {
		t.Fatalf("result = %d stored, %d rejected, want 1/1", len(result.Stored), len(result.Rejected))
	}
	if result.Rejected[0].Index != 1 {
		t.Errorf("Rejected[0].Index = %d, want 1", result.Rejected[0].Index)
	}
}

func TestSearchRanksAndThresholds(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	norm := float32(math.Sqrt(2))
	docs := []document.Document{
		driverDoc("Exact Match", "Team A", "2024", []float32{1, 0, 0, 0}),
		driverDoc("Close Match", "Team B", "2024", []float32{1 / norm, 1 / norm, 0, 0}),
		driverDoc("Orthogonal", "Team C", "2024", []float32{0, 0, 1, 0}),
	}
	if _, err := s.Insert(ctx, docs); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	hits, err := s.Search(ctx, store.SearchQuery{
		Vector:    []float32{1, 0, 0, 0},
		Threshold: 0.5,
		Limit:     5,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].Document.Driver != "Exact Match" {
		t.Errorf("top hit = %q, want Exact Match", hits[0].Document.Driver)
	}
	if hits[0].Similarity < 0.999 {
		t.Errorf("exact-match similarity = %v, want ~1.0", hits[0].Similarity)
	}
	if hits[1].Similarity >= hits[0].Similarity {
		t.Errorf("not sorted descending: %v then %v", hits[0].Similarity, hits[1].Similarity)
	}

	// Raising the threshold must only ever shrink the result set.
	strict, err := s.Search(ctx, store.SearchQuery{
		Vector:    []float32{1, 0, 0, 0},
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

func TestSearchHonorsLimit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	docs := make([]document.Document, 5)
	for i := range docs {
		docs[i] = driverDoc("Driver", "Team", "2024", []float32{1, 0, 0, 0})
	}
	if _, err := s.Insert(ctx, docs); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	hits, err := s.Search(ctx, store.SearchQuery{
		Vector:    []float32{1, 0, 0, 0},
		Threshold: 0.5,
		Limit:     3,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("hits = %d, want limit of 3", len(hits))
	}
}

func TestSearchFilters(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	docs := []document.Document{
		driverDoc("Lando Norris", "McLaren", "2024", []float32{1, 0, 0, 0}),
		driverDoc("George Russell", "Mercedes", "2024", []float32{1, 0, 0, 0}),
		driverDoc("Lando Norris", "McLaren", "2023", []float32{1, 0, 0, 0}),
	}
	if _, err := s.Insert(ctx, docs); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	hits, err := s.Search(ctx, store.SearchQuery{
		Vector:    []float32{1, 0, 0, 0},
		Threshold: 0.5,
		Limit:     10,
		Filters:   store.Filters{Team: "McLaren", Season: "2024"},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	if hits[0].Document.Season != "2024" || hits[0].Document.Team != "McLaren" {
		t.Errorf("hit = %+v, want 2024 McLaren", hits[0].Document)
	}
}

func TestGetByFilters(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	docs := []document.Document{
		driverDoc("Lando Norris", "McLaren", "2024", []float32{1, 0, 0, 0}),
		driverDoc("Oscar Piastri", "McLaren", "2024", []float32{0, 1, 0, 0}),
		driverDoc("George Russell", "Mercedes", "2024", []float32{0, 0, 1, 0}),
	}
	if _, err := s.Insert(ctx, docs); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := s.GetByFilters(ctx, store.Filters{Team: "McLaren"}, 10)
	if err != nil {
		t.Fatalf("GetByFilters() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("documents = %d, want 2", len(got))
	}

	capped, err := s.GetByFilters(ctx, store.Filters{}, 2)
	if err != nil {
		t.Fatalf("GetByFilters() error = %v", err)
	}
	if len(capped) != 2 {
		t.Errorf("documents = %d, want limit of 2", len(capped))
	}
}

func TestStatisticsConsistency(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	docs := []document.Document{
		driverDoc("Lando Norris", "McLaren", "2024", []float32{1, 0, 0, 0}),
		driverDoc("Oscar Piastri", "McLaren", "2023", []float32{0, 1, 0, 0}),
		{
			Text:      "McLaren competes in the 2024 season with strong pace.",
			Embedding: []float32{0, 0, 1, 0},
			Source:    "teams.csv",
			Category:  document.CategoryTeams,
			Season:    "2024",
			Team:      "McLaren",
		},
	}
	if _, err := s.Insert(ctx, docs); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	stats, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if stats.TotalDocuments != 3 {
		t.Errorf("TotalDocuments = %d, want 3", stats.TotalDocuments)
	}

	var byCategory, bySeason int64
	for _, n := range stats.DocumentsByCategory {
		byCategory += n
	}
	for _, n := range stats.DocumentsBySeason {
		bySeason += n
	}
	if byCategory != stats.TotalDocuments || bySeason != stats.TotalDocuments {
		t.Errorf("category sum = %d, season sum = %d, want both %d",
			byCategory, bySeason, stats.TotalDocuments)
	}
	if stats.DocumentsByCategory[document.CategoryDrivers] != 2 {
		t.Errorf("DocumentsByCategory = %v", stats.DocumentsByCategory)
	}
}

func TestClear(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, []document.Document{
		driverDoc("Lando Norris", "McLaren", "2024", []float32{1, 0, 0, 0}),
	}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	stats, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if stats.TotalDocuments != 0 {
		t.Errorf("TotalDocuments after Clear = %d, want 0", stats.TotalDocuments)
	}
}

func TestHealthCheck(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, []document.Document{
		driverDoc("Lando Norris", "McLaren", "2024", []float32{1, 0, 0, 0}),
	}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	h := s.HealthCheck(ctx)
	if h.Backend != "badger" {
		t.Errorf("Backend = %q, want badger", h.Backend)
	}
	if !h.Configured || !h.Reachable || !h.SchemaReady {
		t.Errorf("HealthCheck() = %+v, want healthy flags", h)
	}
	if h.Documents != 1 {
		t.Errorf("Documents = %d, want 1", h.Documents)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite clamped", []float32{1, 0}, []float32{-1, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}
