// Package catalog talks to the remote catalog API: record lookup by
// identifier, create/update, chunked custom-attribute writes, and media
// attachment, all under a fixed-delay request budget.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	domain "github.com/ecomsync/feedsync/internal/domain/catalog"
)

const (
	httpTimeout = 30 * time.Second

	// attributeBatchSize bounds one custom-attribute write; the remote
	// API rejects larger batches.
	attributeBatchSize = 25

	// interChunkDelay spaces consecutive attribute chunks.
	interChunkDelay = 200 * time.Millisecond

	// defaultRateLimitDelay is the fixed pause after each synced row.
	// Conservative fixed delay rather than adaptive throttling: the
	// remote API documents a burst budget shared across all feeds of
	// an account.
	defaultRateLimitDelay = 500 * time.Millisecond
)

// Client is the HTTP client for one shop's catalog.
type Client struct {
	baseURL        string
	token          string
	http           *http.Client
	rateLimitDelay time.Duration
	batchSize      int
}

// Option tweaks client construction.
type Option func(*Client)

// WithRateLimitDelay overrides the fixed per-row delay.
func WithRateLimitDelay(d time.Duration) Option {
	return func(c *Client) { c.rateLimitDelay = d }
}

// WithBatchSize overrides the attribute chunk size.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithHTTPClient substitutes the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient constructs a catalog client for the given API base URL and
// access token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:        baseURL,
		token:          token,
		http:           &http.Client{Timeout: httpTimeout},
		rateLimitDelay: defaultRateLimitDelay,
		batchSize:      attributeBatchSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FindRecord looks an existing record up by identifier. A nil record
// with nil error means the catalog has no match.
func (c *Client) FindRecord(ctx context.Context, id domain.Identifier) (*domain.Record, error) {
	q := url.Values{}
	switch id.Type {
	case domain.IdentifierHandle:
		q.Set("handle", id.Value)
	default:
		q.Set("sku", id.Value)
	}

	var out struct {
		Records []domain.Record `json:"records"`
	}
	if err := c.do(ctx, http.MethodGet, "/records?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("find record %s=%s: %w", id.Type, id.Value, err)
	}
	if len(out.Records) == 0 {
		return nil, nil
	}
	return &out.Records[0], nil
}

// CreateRecord creates a new record carrying the mapped core fields and
// the identifier value on the matching field.
func (c *Client) CreateRecord(ctx context.Context, core map[string]any, id domain.Identifier) (*domain.Record, error) {
	body := make(map[string]any, len(core)+1)
	for k, v := range core {
		body[k] = v
	}
	body[string(id.Type)] = id.Value

	var out struct {
		Record domain.Record `json:"record"`
	}
	if err := c.do(ctx, http.MethodPost, "/records", map[string]any{"record": body}, &out); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	return &out.Record, nil
}

// UpdateRecord applies the given core-field payload to an existing
// record.
func (c *Client) UpdateRecord(ctx context.Context, recordID string, core map[string]any) (*domain.Record, error) {
	var out struct {
		Record domain.Record `json:"record"`
	}
	if err := c.do(ctx, http.MethodPut, "/records/"+recordID, map[string]any{"record": core}, &out); err != nil {
		return nil, fmt.Errorf("update record %s: %w", recordID, err)
	}
	return &out.Record, nil
}

// SetCustomAttributes writes attributes in bounded chunks. batchSize
// overrides the client's configured chunk size when positive. A failed
// chunk is logged and skipped; the remaining chunks still go out.
// Callers must treat len(applied) < len(attrs) as a soft failure to
// surface, not an error.
func (c *Client) SetCustomAttributes(ctx context.Context, recordID string, attrs []domain.CustomAttribute, batchSize int) ([]domain.CustomAttribute, error) {
	if batchSize <= 0 {
		batchSize = c.batchSize
	}
	applied := make([]domain.CustomAttribute, 0, len(attrs))

	for start := 0; start < len(attrs); start += batchSize {
		end := start + batchSize
		if end > len(attrs) {
			end = len(attrs)
		}
		chunk := attrs[start:end]

		if start > 0 {
			if err := sleepCtx(ctx, interChunkDelay); err != nil {
				return applied, err
			}
		}

		var out struct {
			Attributes []domain.CustomAttribute `json:"attributes"`
		}
		err := c.do(ctx, http.MethodPut, "/records/"+recordID+"/attributes",
			map[string]any{"attributes": chunk}, &out)
		if err != nil {
			if ctx.Err() != nil {
				return applied, ctx.Err()
			}
			log.Printf("[catalog] attribute chunk %d-%d failed for record %s: %v", start, end-1, recordID, err)
			continue
		}
		applied = append(applied, out.Attributes...)
	}

	return applied, nil
}

// AddMedia attaches media by URL.
func (c *Client) AddMedia(ctx context.Context, recordID string, urls []string) ([]domain.Media, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	var out struct {
		Media []domain.Media `json:"media"`
	}
	if err := c.do(ctx, http.MethodPost, "/records/"+recordID+"/media",
		map[string]any{"urls": urls}, &out); err != nil {
		return nil, fmt.Errorf("add media to %s: %w", recordID, err)
	}
	return out.Media, nil
}

// RateLimit pauses for the fixed per-row delay. Invoked once per
// successfully synced row.
func (c *Client) RateLimit(ctx context.Context) error {
	return sleepCtx(ctx, c.rateLimitDelay)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
