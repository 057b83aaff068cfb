package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	// DefaultBaseURL targets the hosted OpenAI API; any compatible
	// endpoint works.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the stock embedding model.
	DefaultModel = "text-embedding-3-small"

	// DefaultDims is the dimensionality of the stock model.
	DefaultDims = 1536
)

// OpenAIProvider embeds text through any OpenAI-compatible embeddings
// endpoint. Failures are classified; no retries happen here.
type OpenAIProvider struct {
	baseURL string
	apiKey  string
	model   string
	dims    int
	client  *http.Client
}

// OpenAIOption customizes an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithHTTPClient overrides the HTTP client, mostly for tests.
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.client = c }
}

// NewOpenAIProvider creates a provider. Empty baseURL, model, or dims
// fall back to the OpenAI defaults.
func NewOpenAIProvider(baseURL, apiKey, model string, dims int, opts ...OpenAIOption) *OpenAIProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if dims <= 0 {
		dims = DefaultDims
	}
	p := &OpenAIProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type embedRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
	} `json:"usage"`
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) (Result, error) {
	body, err := json.Marshal(embedRequest{Input: text, Model: p.model})
	if err != nil {
		return Result{}, p.invalid("encoding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return Result{}, p.invalid("building request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, &ProviderError{
			Kind: NetworkFailure, Provider: p.Name(),
			Message: "request failed", Err: err,
		}
	}
	defer resp.Body.Close()

	if err := p.classifyStatus(resp); err != nil {
		return Result{}, err
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, p.invalid("decoding response", err)
	}
	if len(parsed.Data) == 0 {
		return Result{}, p.invalid("no embedding in response", nil)
	}

	vec := parsed.Data[0].Embedding
	if !ValidVector(vec, p.dims) {
		return Result{}, p.invalid(
			fmt.Sprintf("unusable vector: got %d dims, want %d", len(vec), p.dims), nil)
	}

	tokens := parsed.Usage.PromptTokens
	if tokens == 0 {
		tokens = EstimateTokens(text)
	}
	return Result{Vector: vec, Tokens: tokens}, nil
}

func (p *OpenAIProvider) Dims() int { return p.dims }

func (p *OpenAIProvider) Name() string { return "openai/" + p.model }

// classifyStatus maps non-200 responses onto the error taxonomy.
func (p *OpenAIProvider) classifyStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("status %d: %s", resp.StatusCode, string(snippet))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &ProviderError{
			Kind: RateLimited, Provider: p.Name(),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    msg,
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &ProviderError{Kind: AuthFailure, Provider: p.Name(), Message: msg}
	case resp.StatusCode >= 500:
		return &ProviderError{Kind: NetworkFailure, Provider: p.Name(), Message: msg}
	default:
		return &ProviderError{Kind: InvalidResponse, Provider: p.Name(), Message: msg}
	}
}

func (p *OpenAIProvider) invalid(msg string, err error) *ProviderError {
	return &ProviderError{Kind: InvalidResponse, Provider: p.Name(), Message: msg, Err: err}
}

// parseRetryAfter handles the delay-seconds form of the header. The
// HTTP-date form is rare on embedding endpoints and falls back to zero.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
