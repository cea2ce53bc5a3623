package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pitwall/pitwall/internal/log"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fastBatchConfig(endpoint string) Config {
	return Config{
		Endpoints:         []string{endpoint},
		Model:             "cohere.embed-english-v3",
		Dims:              2,
		Timeout:           2 * time.Second,
		Stagger:           time.Millisecond,
		BatchDelay:        time.Millisecond,
		RequestsPerSecond: 10000,
	}
}

func TestEmbedBatchAllSucceed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{1, 2}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(fastBatchConfig(srv.URL), log.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	texts := []string{"alpha record", "bravo record", "charlie record", "delta record", "echo record", "foxtrot record", "golf record"}
	items, errs := client.EmbedBatch(context.Background(), texts, 3)

	if len(errs) != 0 {
		t.Fatalf("errors = %v, want none", errs)
	}
	if len(items) != len(texts) {
		t.Fatalf("items = %d, want %d", len(items), len(texts))
	}
	for i, item := range items {
		if item.Index != i {
			t.Errorf("items[%d].Index = %d, want %d", i, item.Index, i)
		}
		if len(item.Vector) != 2 {
			t.Errorf("items[%d] vector length = %d, want 2", i, len(item.Vector))
		}
	}
}

func TestEmbedBatchPartialFailure(t *testing.T) {
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Texts []string `json:"texts"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		mu.Lock()
		defer mu.Unlock()
		if len(body.Texts) == 1 && strings.Contains(body.Texts[0], "poison") {
			http.Error(w, "bad input", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{3, 4}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(fastBatchConfig(srv.URL), log.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	texts := []string{"fine one", "poison pill", "fine two", "fine three"}
	items, errs := client.EmbedBatch(context.Background(), texts, 2)

	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want exactly one", errs)
	}
	if errs[0].Index != 1 {
		t.Errorf("error index = %d, want 1", errs[0].Index)
	}
	if errs[0].Message == "" {
		t.Error("error message should not be empty")
	}

	gotIndexes := []int{items[0].Index, items[1].Index, items[2].Index}
	wantIndexes := []int{0, 2, 3}
	for i := range wantIndexes {
		if gotIndexes[i] != wantIndexes[i] {
			t.Errorf("item indexes = %v, want %v", gotIndexes, wantIndexes)
			break
		}
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty batch")
	}))
	defer srv.Close()

	client, err := NewClient(fastBatchConfig(srv.URL), log.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	items, errs := client.EmbedBatch(context.Background(), nil, 5)
	if len(items) != 0 || len(errs) != 0 {
		t.Errorf("items = %v, errs = %v, want both empty", items, errs)
	}
}

func TestEmbedBatchDefaultSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{9, 9}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(fastBatchConfig(srv.URL), log.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	items, errs := client.EmbedBatch(context.Background(), []string{"only one"}, 0)
	if len(errs) != 0 {
		t.Fatalf("errors = %v", errs)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
}

func TestEmbedBatchCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{1, 1}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(fastBatchConfig(srv.URL), log.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items, errs := client.EmbedBatch(ctx, []string{"a doomed text", "another one"}, 5)
	if len(items) != 0 {
		t.Errorf("items = %v, want none after cancellation", items)
	}
	if len(errs) != 2 {
		t.Errorf("errors = %d, want one per text", len(errs))
	}
}
