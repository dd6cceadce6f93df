package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/abelbrown/flashnarrative/internal/logging"
)

var _ Provider = (*HTTPProvider)(nil)

// ProviderConfig describes one LLM HTTP API: where it lives, how it
// authenticates and how its JSON is shaped.
type ProviderConfig struct {
	Name         string
	Endpoint     string
	APIKey       string
	Model        string
	AuthHeader   string            // "x-api-key" or "Authorization"
	AuthPrefix   string            // "" or "Bearer "
	ExtraHeaders map[string]string // e.g. anthropic-version
	Keyless      bool              // local servers need no credential

	Retries    int           // retries on 429 and 5xx; 0 means 2, negative disables
	RetryDelay time.Duration // first backoff step; 0 means 500ms

	BuildBody     func(cfg *ProviderConfig, req Request) any
	ParseResponse func(body []byte) (content, model string, err error)
}

// reply is one fully read HTTP exchange. Bodies are read inside each attempt
// so a retried response never leaks its connection.
type reply struct {
	status int
	body   []byte
}

// HTTPProvider sends one JSON request per prompt, retrying rate limits and
// server errors with jittered backoff.
type HTTPProvider struct {
	config *ProviderConfig
	client *http.Client
	retry  retrypolicy.RetryPolicy[reply]
}

// NewHTTPProvider creates a provider from config.
func NewHTTPProvider(cfg *ProviderConfig) *HTTPProvider {
	return &HTTPProvider{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		retry:  newRetryPolicy(cfg.Retries, cfg.RetryDelay),
	}
}

func newRetryPolicy(retries int, delay time.Duration) retrypolicy.RetryPolicy[reply] {
	switch {
	case retries == 0:
		retries = 2
	case retries < 0:
		retries = 0
	}
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return retrypolicy.NewBuilder[reply]().
		HandleIf(func(r reply, err error) bool {
			return err != nil || retryable(r.status)
		}).
		WithBackoff(delay, 10*delay).
		WithJitterFactor(0.1).
		WithMaxRetries(retries).
		ReturnLastFailure().
		Build()
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func (p *HTTPProvider) Name() string {
	return p.config.Name
}

// Model returns the configured model name.
func (p *HTTPProvider) Model() string {
	return p.config.Model
}

func (p *HTTPProvider) Available() bool {
	if p.config.Keyless {
		return p.config.Model != ""
	}
	return p.config.APIKey != ""
}

func (p *HTTPProvider) Generate(ctx context.Context, req Request) (Response, error) {
	if !p.Available() {
		return Response{}, fmt.Errorf("%s provider not configured", p.config.Name)
	}

	payload, err := json.Marshal(p.config.BuildBody(p.config, req))
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	r, err := failsafe.With(p.retry).WithContext(ctx).Get(func() (reply, error) {
		return p.post(ctx, payload)
	})
	if err != nil && r.status == 0 {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	if r.status != http.StatusOK {
		logging.Error("API error", "provider", p.config.Name, "status", r.status)
		return Response{}, fmt.Errorf("API error (status %d): %s", r.status, string(r.body))
	}

	content, model, err := p.config.ParseResponse(r.body)
	if err != nil {
		return Response{}, fmt.Errorf("parse response: %w", err)
	}

	logging.Debug("API response", "provider", p.config.Name, "model", model, "content_len", len(content))
	return Response{Content: content, Model: model}, nil
}

func (p *HTTPProvider) post(ctx context.Context, payload []byte) (reply, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return reply{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.config.AuthHeader != "" && p.config.APIKey != "" {
		httpReq.Header.Set(p.config.AuthHeader, p.config.AuthPrefix+p.config.APIKey)
	}
	for k, v := range p.config.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return reply{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return reply{}, fmt.Errorf("read response: %w", err)
	}
	return reply{status: resp.StatusCode, body: body}, nil
}
