package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Model family prefixes. The wire shape of a request depends on which
// family the configured model belongs to.
const (
	familyCoherePrefix = "cohere."
	familyTitanPrefix  = "amazon."
)

var (
	// ErrNoEndpoints indicates the client was configured without endpoints.
	ErrNoEndpoints = errors.New("no embedding endpoints configured")

	// ErrEmptyVector indicates the service answered without a usable vector.
	ErrEmptyVector = errors.New("embedding service returned an empty vector")

	// ErrAllEndpointsFailed indicates every configured endpoint was tried
	// for a single call and all of them failed.
	ErrAllEndpointsFailed = errors.New("all embedding endpoints failed")
)

// Config configures the embedding Client.
type Config struct {
	// Endpoints is the ordered preference list of interchangeable base URLs
	// (typically the same model hosted in different regions).
	Endpoints []string

	// Model selects the model family wire shape (e.g. "cohere.embed-english-v3"
	// or "amazon.titan-embed-text-v2").
	Model string

	// APIKey is sent as a bearer token.
	APIKey string

	// Dims is the vector length this deployment is pinned to.
	Dims int

	// Timeout bounds each HTTP call. Default 30s.
	Timeout time.Duration

	// Stagger is the per-call delay step inside one batch chunk: call i of a
	// chunk waits i*Stagger before starting. Default 100ms.
	Stagger time.Duration

	// BatchDelay is the fixed pause between batch chunks. Default 1s.
	BatchDelay time.Duration

	// RequestsPerSecond caps the aggregate call rate. Default 10.
	RequestsPerSecond float64
}

// Client calls an external embedding service with multi-endpoint failover.
// It is safe for concurrent use.
type Client struct {
	cfg     Config
	ring    *endpointRing
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a Client. It fails fast when no endpoint is configured;
// a missing endpoint list is a configuration error, not something to
// discover on the first ingestion call.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Stagger <= 0 {
		cfg.Stagger = 100 * time.Millisecond
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:     cfg,
		ring:    newEndpointRing(cfg.Endpoints),
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  logger,
	}, nil
}

// Dimensions returns the configured vector length.
func (c *Client) Dimensions() int {
	return c.cfg.Dims
}

// Embed submits text to the embedding service. On failure it advances to
// the next endpoint and retries the same call, giving up only after the
// whole preference list is exhausted.
func (c *Client) Embed(ctx context.Context, text string, purpose Purpose) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := c.ring.Current()
	var lastErr error
	for attempt := 0; attempt < c.ring.Len(); attempt++ {
		vector, err := c.callEndpoint(ctx, endpoint, text, purpose)
		if err == nil {
			return vector, nil
		}
		lastErr = err
		c.logger.Warn("embedding endpoint failed, trying next",
			"endpoint", endpoint, "attempt", attempt+1, "error", err)
		endpoint = c.ring.Advance()
	}

	return nil, fmt.Errorf("%w: %v", ErrAllEndpointsFailed, lastErr)
}

// callEndpoint performs one HTTP round trip against a single endpoint and
// normalizes the model-family response shape into a plain vector.
func (c *Client) callEndpoint(ctx context.Context, endpoint, text string, purpose Purpose) ([]float32, error) {
	body, err := c.requestBody(text, purpose)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/model/%s/invoke", strings.TrimRight(endpoint, "/"), c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<22))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned %s", resp.Status)
	}

	vector, err := decodeVector(payload)
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// requestBody builds the wire shape for the configured model family.
//
// cohere-style models take a texts array plus an input_type hint that maps
// our store/query purpose; titan-style models take a single inputText and
// have no purpose concept.
func (c *Client) requestBody(text string, purpose Purpose) ([]byte, error) {
	switch {
	case strings.HasPrefix(c.cfg.Model, familyCoherePrefix):
		inputType := "search_document"
		if purpose == PurposeQuery {
			inputType = "search_query"
		}
		return json.Marshal(map[string]any{
			"texts":      []string{text},
			"input_type": inputType,
		})
	case strings.HasPrefix(c.cfg.Model, familyTitanPrefix):
		return json.Marshal(map[string]any{
			"inputText": text,
		})
	default:
		// Unknown families get the simplest shape plus the purpose so a
		// compatible gateway can still use it.
		return json.Marshal(map[string]any{
			"text":    text,
			"purpose": string(purpose),
		})
	}
}

// decodeVector accepts the two response shapes in use: a nested embeddings
// array (cohere-style) and a single embedding array (titan-style).
func decodeVector(payload []byte) ([]float32, error) {
	var nested struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(payload, &nested); err == nil && len(nested.Embeddings) > 0 && len(nested.Embeddings[0]) > 0 {
		return nested.Embeddings[0], nil
	}

	var flat struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &flat); err == nil && len(flat.Embedding) > 0 {
		return flat.Embedding, nil
	}

	return nil, ErrEmptyVector
}
