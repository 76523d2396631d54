// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/shelfmark/internal/models"
)

// IdempotencyKeyHeader carries the record fingerprint so the server can
// recognise a resubmitted record.
const IdempotencyKeyHeader = "X-Idempotency-Key"

// maxErrorBodySize limits how much of a rejected response body is kept for logging.
const maxErrorBodySize = 4 * 1024

// Ingestor submits single engagement records to the ingestion endpoint.
// A nil error means the endpoint accepted the record.
type Ingestor interface {
	SubmitImpression(ctx context.Context, bookID string, sub models.ImpressionSubmission, idempotencyKey string) error
	SubmitClickThrough(ctx context.Context, bookID string, sub models.ClickThroughSubmission, idempotencyKey string) error
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ingestion endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("ingestion endpoint returned status %d: %s", e.StatusCode, e.Body)
}

// HTTPClient submits records to the ingestion API over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a client for the ingestion API rooted at baseURL,
// e.g. "http://127.0.0.1:3857/api/v1". A nil httpClient uses a client with a
// 30 second timeout; per-submission deadlines come from the context.
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// SubmitImpression posts to /books/{bookID}/impression.
func (c *HTTPClient) SubmitImpression(ctx context.Context, bookID string, sub models.ImpressionSubmission, idempotencyKey string) error {
	return c.post(ctx, c.bookURL(bookID, "impression"), sub, idempotencyKey)
}

// SubmitClickThrough posts to /books/{bookID}/click-through.
func (c *HTTPClient) SubmitClickThrough(ctx context.Context, bookID string, sub models.ClickThroughSubmission, idempotencyKey string) error {
	return c.post(ctx, c.bookURL(bookID, "click-through"), sub, idempotencyKey)
}

func (c *HTTPClient) bookURL(bookID, route string) string {
	return c.baseURL + "/books/" + url.PathEscape(bookID) + "/" + route
}

func (c *HTTPClient) post(ctx context.Context, endpoint string, body interface{}, idempotencyKey string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(IdempotencyKeyHeader, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submit to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(errBody))}
}
