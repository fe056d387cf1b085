package ledger

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

	"nexuscred/pkg/platform/circuit"
)

const (
	defaultTimeout  = 5 * time.Second
	maxResponseBody = 1 << 20
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures one HTTP collaborator.
type ClientConfig struct {
	Name       string
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient HTTPDoer
	Breaker    *circuit.Breaker
	Logger     *slog.Logger
}

// jsonClient posts JSON to a collaborator behind a circuit breaker.
type jsonClient struct {
	name    string
	baseURL string
	apiKey  string
	timeout time.Duration
	http    HTTPDoer
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func newJSONClient(cfg ClientConfig) *jsonClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Breaker == nil {
		cfg.Breaker = circuit.New(cfg.Name)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &jsonClient{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		breaker: cfg.Breaker,
		logger:  cfg.Logger,
	}
}

// post sends in as JSON to path and decodes a 2xx response into out.
func (c *jsonClient) post(ctx context.Context, path string, in, out any) error {
	if !c.breaker.Allow() {
		return NewCollaboratorError(CategoryCircuitOpen, c.name, "circuit open", nil)
	}

	err := c.do(ctx, path, in, out)
	if IsRetryable(err) {
		if change := c.breaker.RecordFailure(); change.Opened {
			c.logger.WarnContext(ctx, "collaborator circuit opened", "collaborator", c.name, "error", err)
		}
	} else if change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "collaborator circuit closed", "collaborator", c.name)
	}
	return err
}

func (c *jsonClient) do(ctx context.Context, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return NewCollaboratorError(CategoryInternal, c.name, "failed to marshal request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return NewCollaboratorError(CategoryInternal, c.name, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return NewCollaboratorError(CategoryTimeout, c.name, "request timeout", err)
		}
		return NewCollaboratorError(CategoryOutage, c.name, "failed to execute request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return NewCollaboratorError(CategoryBadData, c.name, "failed to read response", err)
	}

	if category, failed := classifyStatus(resp.StatusCode); failed {
		return NewCollaboratorError(category, c.name,
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return NewCollaboratorError(CategoryBadData, c.name, "failed to parse response", err)
	}
	return nil
}

func classifyStatus(code int) (Category, bool) {
	switch {
	case code >= 200 && code < 300:
		return "", false
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return CategoryAuthentication, true
	case code == http.StatusTooManyRequests:
		return CategoryRateLimited, true
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return CategoryTimeout, true
	case code >= 500:
		return CategoryOutage, true
	default:
		return CategoryRejected, true
	}
}
