package analysis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"NewsIngestor/internal/config"
	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/logging"
)

func chatCompletionServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}

		raw, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["model"] != "gpt-3.5-turbo" {
			t.Errorf("unexpected model %v", req["model"])
		}
		format, _ := req["response_format"].(map[string]any)
		if format["type"] != "json_object" {
			t.Errorf("expected json_object response format, got %v", req["response_format"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "gpt-3.5-turbo",
			"choices": []any{map[string]any{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": content}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func testOpenAIConfig(baseURL string) config.OpenAIConfig {
	return config.OpenAIConfig{
		APIKey:      "test-key",
		Model:       "gpt-3.5-turbo",
		BaseURL:     baseURL + "/v1",
		Temperature: 0.7,
	}
}

func TestOpenAIEnrich(t *testing.T) {
	t.Parallel()

	server := chatCompletionServer(t, http.StatusOK, `{"summary": "s", "category": "Computer Science", "viability_score": 64}`)
	defer server.Close()

	a := NewOpenAIAnalyzer(testOpenAIConfig(server.URL), logging.Discard())
	got, err := a.Enrich(context.Background(), "title", "content")
	if err != nil {
		t.Fatalf("Enrich error: %v", err)
	}
	want := domain.Enrichment{Summary: "s", Category: domain.CategoryComputerScience, ViabilityScore: 64}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestOpenAIEnrichPropagatesErrors(t *testing.T) {
	t.Parallel()

	server := chatCompletionServer(t, http.StatusInternalServerError, "")
	defer server.Close()

	a := NewOpenAIAnalyzer(testOpenAIConfig(server.URL), logging.Discard())
	if _, err := a.Enrich(context.Background(), "title", "content"); err == nil {
		t.Fatalf("expected error to propagate")
	}

	poll, err := a.GeneratePoll(context.Background(), "- headline")
	if err != nil {
		t.Fatalf("poll errors must be absorbed: %v", err)
	}
	if poll.Question != domain.DefaultPollDraft().Question {
		t.Fatalf("expected default poll, got %+v", poll)
	}
}

func TestOpenAIWithoutKeyFails(t *testing.T) {
	t.Parallel()

	a := NewOpenAIAnalyzer(config.OpenAIConfig{}, logging.Discard())
	if _, err := a.Enrich(context.Background(), "title", "content"); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}
