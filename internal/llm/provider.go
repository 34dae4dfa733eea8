// Package llm implements schema-constrained completions against the supported
// language-model providers.
//
// Each provider issues exactly one HTTP request per Complete call. Retries,
// validation of the returned JSON and backoff belong to the caller.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 120 * time.Second

// Schema describes the JSON shape the model must return.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Request contains the data sent to a model for one completion.
type Request struct {
	Prompt    string
	MaxTokens int
	Schema    Schema
}

// Response contains the raw JSON content returned by the model.
type Response struct {
	Content    string
	TokensUsed int
}

// Provider is the language-model abstraction.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
}

// APIError is returned for non-success HTTP responses.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Options configures a provider.
type Options struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	MaxTokens int
}

func (o Options) httpClient() *http.Client {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// New creates a provider by name.
func New(opts Options) (Provider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s api key is required", opts.Provider)
	}
	switch opts.Provider {
	case "openai", "":
		return NewOpenAI(opts), nil
	case "anthropic":
		return NewAnthropic(opts), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", opts.Provider)
	}
}
