package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func embedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIEmbedSuccess(t *testing.T) {
	vec := make([]float32, 4)
	vec[0] = 1

	server := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Input != "hello" || req.Model != "test-model" {
			t.Errorf("request = %+v", req)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data":  []map[string]any{{"embedding": vec}},
			"usage": map[string]int{"prompt_tokens": 42},
		})
	})

	p := NewOpenAIProvider(server.URL, "test-key", "test-model", 4)
	result, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(result.Vector) != 4 || result.Vector[0] != 1 {
		t.Errorf("vector = %v", result.Vector)
	}
	if result.Tokens != 42 {
		t.Errorf("tokens = %d, want 42", result.Tokens)
	}
}

func TestOpenAIEmbedRateLimited(t *testing.T) {
	server := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	p := NewOpenAIProvider(server.URL, "k", "m", 4)
	_, err := p.Embed(context.Background(), "hello")
	if !IsRateLimited(err) {
		t.Fatalf("err = %v, want rate limited", err)
	}
	pe, _ := AsProviderError(err)
	if pe.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", pe.RetryAfter)
	}
}

func TestOpenAIEmbedAuthFailure(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		server := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		p := NewOpenAIProvider(server.URL, "bad", "m", 4)
		if _, err := p.Embed(context.Background(), "hello"); !IsAuthFailure(err) {
			t.Errorf("status %d: err = %v, want auth failure", status, err)
		}
	}
}

func TestOpenAIEmbedServerError(t *testing.T) {
	server := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	p := NewOpenAIProvider(server.URL, "k", "m", 4)
	_, err := p.Embed(context.Background(), "hello")
	pe, ok := AsProviderError(err)
	if !ok || pe.Kind != NetworkFailure {
		t.Errorf("err = %v, want network failure", err)
	}
}

func TestOpenAIEmbedTransportError(t *testing.T) {
	server := embedServer(t, func(w http.ResponseWriter, r *http.Request) {})
	url := server.URL
	server.Close()

	p := NewOpenAIProvider(url, "k", "m", 4)
	_, err := p.Embed(context.Background(), "hello")
	pe, ok := AsProviderError(err)
	if !ok || pe.Kind != NetworkFailure {
		t.Errorf("err = %v, want network failure", err)
	}
}

func TestOpenAIEmbedInvalidResponses(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"empty data", map[string]any{"data": []any{}}},
		{"wrong dims", map[string]any{
			"data": []map[string]any{{"embedding": []float32{1, 2}}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tt.body)
			})
			p := NewOpenAIProvider(server.URL, "k", "m", 4)
			_, err := p.Embed(context.Background(), "hello")
			pe, ok := AsProviderError(err)
			if !ok || pe.Kind != InvalidResponse {
				t.Errorf("err = %v, want invalid response", err)
			}
		})
	}
}

func TestOpenAIDefaults(t *testing.T) {
	p := NewOpenAIProvider("", "", "", 0)
	if p.Dims() != DefaultDims {
		t.Errorf("dims = %d, want %d", p.Dims(), DefaultDims)
	}
	if p.Name() != "openai/"+DefaultModel {
		t.Errorf("name = %q", p.Name())
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("10"); got != 10*time.Second {
		t.Errorf("parseRetryAfter(10) = %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("parseRetryAfter(\"\") = %v", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Errorf("parseRetryAfter(soon) = %v", got)
	}
}
