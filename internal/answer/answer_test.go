package answer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pitwall/pitwall/internal/log"
)

func TestAnswerClaudeShape(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/model/anthropic.claude-3-haiku/invoke" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "Verstappen won the race."}},
		})
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, Model: "anthropic.claude-3-haiku"}, log.NewNop())
	got := c.Answer(context.Background(), "Who won?", []string{"Max Verstappen won at Suzuka."})

	if got != "Verstappen won the race." {
		t.Errorf("Answer() = %q", got)
	}
	if captured["system"] == "" {
		t.Error("claude-style request must carry a system prompt")
	}
	messages, ok := captured["messages"].([]any)
	if !ok || len(messages) != 1 {
		t.Fatalf("messages = %v, want one user message", captured["messages"])
	}
	msg := messages[0].(map[string]any)
	content, _ := msg["content"].(string)
	if !strings.Contains(content, "Max Verstappen won at Suzuka.") || !strings.Contains(content, "Who won?") {
		t.Errorf("message content = %q, want context and question", content)
	}
	if _, ok := captured["prompt"]; ok {
		t.Error("claude-style request must not carry a templated prompt")
	}
}

func TestAnswerLlamaShape(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"generation": "Norris finished second.",
		})
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, Model: "meta.llama3-70b"}, log.NewNop())
	got := c.Answer(context.Background(), "Where did Norris finish?", []string{"Lando Norris finished second at Suzuka."})

	if got != "Norris finished second." {
		t.Errorf("Answer() = %q", got)
	}
	prompt, _ := captured["prompt"].(string)
	if !strings.Contains(prompt, "[INST]") || !strings.Contains(prompt, "Where did Norris finish?") {
		t.Errorf("prompt = %q, want templated instruction block", prompt)
	}
	if _, ok := captured["messages"]; ok {
		t.Error("llama-style request must not carry a messages array")
	}
	if _, ok := captured["max_gen_len"]; !ok {
		t.Error("llama-style request must carry max_gen_len")
	}
}

func TestAnswerFallbackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL, Model: "anthropic.claude-3-haiku"}, log.NewNop())
	contextDocs := []string{"Max Verstappen won at Suzuka.", "Lando Norris finished second."}

	got := c.Answer(context.Background(), "Who won?", contextDocs)
	if !strings.Contains(got, "Who won?") {
		t.Errorf("fallback = %q, want the question quoted", got)
	}
	for _, doc := range contextDocs {
		if !strings.Contains(got, doc) {
			t.Errorf("fallback = %q, missing context %q", got, doc)
		}
	}

	// The fallback is deterministic.
	again := c.Answer(context.Background(), "Who won?", contextDocs)
	if got != again {
		t.Error("fallback answer must be deterministic")
	}
}

func TestAnswerFallbackWithoutContext(t *testing.T) {
	c := New(Config{Endpoint: "http://127.0.0.1:0", Model: "anthropic.claude-3-haiku"}, log.NewNop())

	got := c.Answer(context.Background(), "Who won?", nil)
	if !strings.Contains(got, "No relevant documents were found.") {
		t.Errorf("fallback = %q, want the empty-context notice", got)
	}
}

func TestDecodeAnswer(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{"content blocks", `{"content":[{"type":"text","text":"hello"}]}`, "hello", false},
		{"generation", `{"generation":"hi there"}`, "hi there", false},
		{"empty content", `{"content":[]}`, "", true},
		{"empty generation", `{"generation":""}`, "", true},
		{"unrelated", `{"status":"ok"}`, "", true},
		{"not json", `plain text`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeAnswer([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("decodeAnswer() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeAnswer() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("decodeAnswer() = %q, want %q", got, tt.want)
			}
		})
	}
}
