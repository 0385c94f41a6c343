package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"creator_sync/internal/domain"
)

const DefaultPageSize = 100

var ErrMissingCredentials = errors.New("notion API key and database ID are required")

// APIError is a non-2xx response from the Notion API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion api: %s (status %d, %s)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("notion api: %s (status %d)", e.Message, e.StatusCode)
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Config holds Notion client configuration.
type Config struct {
	BaseURL        string
	Version        string
	PageSize       int
	MaxPages       int
	Timeout        time.Duration
	RateLimit      float64
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client talks to the Notion REST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	version        string
	pageSize       int
	maxPages       int
	limiter        *rate.Limiter
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a new Notion client.
func New(cfg Config, logger *slog.Logger) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		version:        cfg.Version,
		pageSize:       cfg.PageSize,
		maxPages:       cfg.MaxPages,
		limiter:        rate.NewLimiter(limit, 1),
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("component", "notion"),
	}
}

// TestConnection fetches database metadata. It never returns an error: all
// failures are reported through the result.
func (c *Client) TestConnection(ctx context.Context, creds Credentials) domain.ConnectionResult {
	if !creds.Valid() {
		return domain.ConnectionResult{Message: "Notion API key and database ID are required"}
	}

	var db Database
	err := c.do(ctx, http.MethodGet, "/databases/"+creds.DatabaseID, creds.APIKey, nil, &db, true)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return domain.ConnectionResult{Message: apiErr.Message}
		}
		return domain.ConnectionResult{Message: err.Error()}
	}

	title := PlainText(db.Title)
	if title == "" {
		title = "Untitled"
	}
	return domain.ConnectionResult{
		Success: true,
		Title:   title,
		Message: fmt.Sprintf("Connected to Notion database %q", title),
	}
}

// QueryDatabase returns the pages of the database. It issues a single query
// of up to pageSize results unless the client was configured with MaxPages
// above one, in which case it follows next_cursor.
func (c *Client) QueryDatabase(ctx context.Context, creds Credentials, pageSize int) ([]Page, error) {
	if !creds.Valid() {
		return nil, ErrMissingCredentials
	}
	if pageSize <= 0 {
		pageSize = c.pageSize
	}

	var pages []Page
	cursor := ""
	for i := 0; i < c.maxPages; i++ {
		var resp queryResponse
		body := queryRequest{PageSize: pageSize, StartCursor: cursor}
		if err := c.do(ctx, http.MethodPost, "/databases/"+creds.DatabaseID+"/query", creds.APIKey, body, &resp, true); err != nil {
			return nil, err
		}

		pages = append(pages, resp.Results...)

		c.logger.Debug("queried database page",
			"request", i,
			"pages", len(resp.Results),
			"total", len(pages),
			"has_more", resp.HasMore,
		)

		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			break
		}
		cursor = *resp.NextCursor
	}

	return pages, nil
}

// CreatePage creates a page with props in the configured database.
func (c *Client) CreatePage(ctx context.Context, creds Credentials, props Properties) (*Page, error) {
	if !creds.Valid() {
		return nil, ErrMissingCredentials
	}

	body := createPageRequest{
		Parent:     parent{DatabaseID: creds.DatabaseID},
		Properties: props,
	}

	var page Page
	// Creates are not idempotent: a timed out request may still have written
	// the page, so only rate limit rejections are retried.
	if err := c.do(ctx, http.MethodPost, "/pages", creds.APIKey, body, &page, false); err != nil {
		return nil, err
	}
	return &page, nil
}

// do sends the request with retries. When idempotent is false only 429
// responses are retried.
func (c *Client) do(ctx context.Context, method, path, apiKey string, body, out any, idempotent bool) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxInterval = c.maxBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxAttempts-1)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := c.doRequest(ctx, method, path, apiKey, payload, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		var apiErr *APIError
		isAPIErr := errors.As(err, &apiErr)
		if !idempotent && (!isAPIErr || apiErr.StatusCode != http.StatusTooManyRequests) {
			return backoff.Permanent(err)
		}
		if isAPIErr && !apiErr.retryable() {
			return backoff.Permanent(err)
		}
		var decodeErr *decodeError
		if errors.As(err, &decodeErr) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("request failed, retrying",
			"method", method,
			"path", path,
			"attempt", attempt,
			"backoff", wait,
			"error", err,
		)
	}

	return backoff.RetryNotify(operation, policy, notify)
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func (c *Client) doRequest(ctx context.Context, method, path, apiKey string, payload []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "CreatorSync/1.0")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

func parseError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var er errorResponse
	if err := json.Unmarshal(data, &er); err == nil && er.Message != "" {
		apiErr.Code = er.Code
		apiErr.Message = er.Message
		return apiErr
	}

	apiErr.Message = http.StatusText(resp.StatusCode)
	return apiErr
}
