// Package answer synthesizes a natural-language answer from a question and
// retrieved context documents.
//
// Two completion-model wire shapes are supported, selected by model id: a
// messages array with a separate system prompt (claude-style) and a single
// fully-templated prompt string (llama-style). When every attempt fails the
// client falls back to a deterministic context-only answer instead of
// propagating the error; grounding context is still useful without prose
// around it.
package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const systemPrompt = "You are a motorsport analyst. Answer the question using only the provided context. If the context does not contain the answer, say so."

// Config configures the completion client.
type Config struct {
	// Endpoint is the completion service base URL.
	Endpoint string

	// Model selects the wire shape ("anthropic.claude-*" vs "meta.llama-*").
	Model string

	// APIKey is sent as a bearer token.
	APIKey string

	// MaxTokens bounds the generated answer. Default 1024.
	MaxTokens int

	// Temperature controls sampling. Default 0.3.
	Temperature float64

	// Timeout bounds each HTTP call. Default 60s.
	Timeout time.Duration
}

// Client calls the completion service.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// New creates a completion Client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Answer generates an answer to question grounded in contextDocs. It never
// returns an error: on total completion failure a templated context-only
// answer is produced instead.
func (c *Client) Answer(ctx context.Context, question string, contextDocs []string) string {
	text, err := c.complete(ctx, question, contextDocs)
	if err != nil {
		c.logger.Warn("completion failed, using context-only answer", "error", err)
		return fallbackAnswer(question, contextDocs)
	}
	return text
}

func (c *Client) complete(ctx context.Context, question string, contextDocs []string) (string, error) {
	body, err := c.requestBody(question, contextDocs)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/model/%s/invoke", strings.TrimRight(c.cfg.Endpoint, "/"), c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call completion service: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion service returned %s", resp.Status)
	}

	return decodeAnswer(payload)
}

// requestBody builds the wire shape for the configured model family.
func (c *Client) requestBody(question string, contextDocs []string) ([]byte, error) {
	contextBlock := strings.Join(contextDocs, "\n\n")

	if strings.HasPrefix(c.cfg.Model, "meta.") {
		// llama-style: one fully templated prompt string.
		prompt := fmt.Sprintf("<s>[INST] <<SYS>>\n%s\n<</SYS>>\n\nContext:\n%s\n\nQuestion: %s [/INST]",
			systemPrompt, contextBlock, question)
		return json.Marshal(map[string]any{
			"prompt":      prompt,
			"max_gen_len": c.cfg.MaxTokens,
			"temperature": c.cfg.Temperature,
		})
	}

	// claude-style: system prompt plus a messages array.
	return json.Marshal(map[string]any{
		"system":      systemPrompt,
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{
				"role":    "user",
				"content": fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock, question),
			},
		},
	})
}

// decodeAnswer accepts the two response shapes in use: a content block list
// (claude-style) and a flat generation string (llama-style).
func decodeAnswer(payload []byte) (string, error) {
	var blocks struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(payload, &blocks); err == nil && len(blocks.Content) > 0 && blocks.Content[0].Text != "" {
		return blocks.Content[0].Text, nil
	}

	var flat struct {
		Generation string `json:"generation"`
	}
	if err := json.Unmarshal(payload, &flat); err == nil && flat.Generation != "" {
		return flat.Generation, nil
	}

	return "", fmt.Errorf("completion response carried no text")
}

// fallbackAnswer renders the retrieved context directly. It is
// deterministic for a given question and context.
func fallbackAnswer(question string, contextDocs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I could not generate an answer for %q, but here is the most relevant information found:\n", question)
	if len(contextDocs) == 0 {
		b.WriteString("\nNo relevant documents were found.")
		return b.String()
	}
	for i, doc := range contextDocs {
		fmt.Fprintf(&b, "\n%d. %s", i+1, doc)
	}
	return b.String()
}
