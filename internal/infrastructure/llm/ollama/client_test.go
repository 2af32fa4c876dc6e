package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pldubois/ragdoc/internal/core/domain"
	"github.com/pldubois/ragdoc/internal/infrastructure/resilience"
)

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		Retry: resilience.RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 1 * time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
			Multiplier:     2,
		},
	})
}

func TestEmbedderEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-embed" {
			t.Fatalf("model = %q", req.Model)
		}
		vectors := make([][]float32, len(req.Input))
		for i := range vectors {
			vectors[i] = []float32{float32(i), 1}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors})
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "test-gen", "test-embed"))
	vectors, err := embedder.Embed(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 || vectors[1][0] != 1 {
		t.Fatalf("vectors = %v", vectors)
	}
}

func TestEmbedderRejectsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{1}}})
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "g", "e"))
	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected error for embeddings/texts mismatch")
	}
}

func TestEmbedderEmptyInput(t *testing.T) {
	embedder := NewEmbedder(New("http://unused", "g", "e"))
	vectors, err := embedder.Embed(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Fatalf("empty input should be a no-op, got %v, %v", vectors, err)
	}
}

func TestGeneratorGenerate(t *testing.T) {
	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Prompt
		if req.Stream {
			t.Fatalf("stream must be disabled")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "  the answer \n"})
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "test-gen", "test-embed"))
	answer, err := generator.Generate(context.Background(), "Source 1 (a.txt):\ncontext", "a question")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "the answer" {
		t.Fatalf("answer = %q", answer)
	}
	if prompt == "" {
		t.Fatalf("prompt not sent")
	}
	for _, fragment := range []string{"Source 1 (a.txt):", "a question"} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("prompt missing %q:\n%s", fragment, prompt)
		}
	}
}

func TestGenerateRejectsBlankResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "  \n\t"})
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "g", "e"))
	if _, err := generator.Generate(context.Background(), "ctx", "q"); err == nil {
		t.Fatalf("blank model output must surface as a generation error")
	}
}

func TestGenerateRetriesTransientServerError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "ok"})
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "g", "e").WithResilience(fastExecutor()))
	answer, err := generator.Generate(context.Background(), "ctx", "q")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "ok" || calls != 2 {
		t.Fatalf("answer=%q calls=%d", answer, calls)
	}
}

func TestGenerateWrapsExhaustedRetriesAsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "g", "e").WithResilience(fastExecutor()))
	_, err := generator.Generate(context.Background(), "ctx", "q")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestGenerateDoesNotRetryClientError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "g", "e").WithResilience(fastExecutor()))
	_, err := generator.Generate(context.Background(), "ctx", "q")
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("client error must not be temporary: %v", err)
	}
	if calls != 1 {
		t.Fatalf("client error must not be retried, got %d calls", calls)
	}

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected HTTPStatusError with 400, got %v", err)
	}
}
