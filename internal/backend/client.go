package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clearlane/tradein-platform/pkg/logging"
)

const defaultUserAgent = "tradein-booking/0.1"

// Config controls how the backend client behaves.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Backoff    time.Duration
	HTTPClient *http.Client
	Tokens     *TokenSource
	Logger     *logging.Logger
	UserAgent  string
}

// Client performs bounded-retry invocations against the appraisal backend.
/// Retry semantics live entirely here: callers declare a Policy per endpoint
// and only ever see a final result, a TerminalServiceError, or an
// ExhaustedError.
type Client struct {
	baseURL    string
	httpClient *http.Client
	backoff    time.Duration
	tokens     *TokenSource
	logger     *logging.Logger
	userAgent  string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend: base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = NewTokenSource()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		backoff:    backoff,
		tokens:     tokens,
		logger:     logger,
		userAgent:  userAgent,
	}, nil
}

// Tokens exposes the token source for login/logout wiring.
func (c *Client) Tokens() *TokenSource { return c.tokens }

// Invoke runs one logical operation under the given policy. The body, when
// non-nil, is sent as JSON. Identical bytes are replayed on every attempt.
func (c *Client) Invoke(ctx context.Context, policy Policy, method, path string, query url.Values, body []byte) ([]byte, error) {
	policy = policy.normalized(c.backoff)
	fullURL := c.buildURL(path, query)
	req := newRetryableRequest(policy)

	for !req.exhausted() {
		attempt := policy.MaxAttempts - req.attemptsRemaining
		data, status, err := c.attempt(ctx, method, fullURL, body)
		if err == nil && status >= 200 && status < 300 {
			return data, nil
		}
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if status == http.StatusUnauthorized {
			// Session token is no longer valid; drop it so the next login
			// starts clean rather than replaying a dead credential.
			c.tokens.Clear()
		}
		if err == nil {
			if policy.Classify(status, nil) == Terminal {
				return nil, decodeTerminalError(policy.Operation, status, data)
			}
			req.consume(decodeTerminalError(policy.Operation, status, data))
		} else {
			if policy.Classify(0, err) == Terminal {
				return nil, fmt.Errorf("backend: %s: %w", policy.Operation, err)
			}
			req.consume(err)
		}
		if req.exhausted() {
			break
		}
		c.logger.Warn("backend retry",
			"operation", policy.Operation,
			"request_id", req.id,
			"attempt", attempt+1,
			"status", status,
			"error", req.lastErr,
		)
		if sleepErr := c.sleep(ctx, policy.Backoff, attempt); sleepErr != nil {
			return nil, sleepErr
		}
	}
	return nil, &ExhaustedError{
		Operation: policy.Operation,
		Attempts:  policy.MaxAttempts,
		LastErr:   req.lastErr,
	}
}

// InvokeJSON marshals the payload, invokes the operation, and decodes the
// response into out when out is non-nil.
func (c *Client) InvokeJSON(ctx context.Context, policy Policy, method, path string, query url.Values, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("backend: %s: marshal payload: %w", policy.Operation, err)
		}
	}
	data, err := c.Invoke(ctx, policy, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("backend: %s: decode response: %w", policy.Operation, err)
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, method, fullURL string, body []byte) ([]byte, int, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if token := c.tokens.Get(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", readErr)
	}
	return data, resp.StatusCode, nil
}

func (c *Client) buildURL(path string, query url.Values) string {
	full := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		full = full + "?" + query.Encode()
	}
	return full
}

func (c *Client) sleep(ctx context.Context, backoff time.Duration, attempt int) error {
	delay := backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
