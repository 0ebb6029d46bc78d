package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Store is the backing-store capability consumed by the engine.
type Store interface {
	// Update submits one SPARQL update request.
	Update(ctx context.Context, text string) error

	// Construct runs one CONSTRUCT query.
	Construct(ctx context.Context, text string) (*Graph, error)
}

const (
	contentTypeUpdate = "application/sparql-update"
	contentTypeQuery  = "application/sparql-query"
	contentTypeNT     = "application/n-triples"

	// maxErrorBody bounds how much of a failed response is kept for logs.
	maxErrorBody = 512
)

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sparql %s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// HTTPStore implements Store over the SPARQL 1.1 Protocol.
//
// Thread-safety: HTTPStore is safe for concurrent use.
type HTTPStore struct {
	queryURL  string
	updateURL string
	client    *http.Client
	logger    *slog.Logger
}

// HTTPOption configures an HTTPStore.
type HTTPOption func(*HTTPStore)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStore) {
		s.client = c
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPStore) {
		s.client = &http.Client{Timeout: d}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(s *HTTPStore) {
		s.logger = l
	}
}

// NewHTTPStore creates a store for the given query and update endpoints.
func NewHTTPStore(queryURL, updateURL string, opts ...HTTPOption) *HTTPStore {
	s := &HTTPStore{
		queryURL:  queryURL,
		updateURL: updateURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update submits text as an application/sparql-update request.
func (s *HTTPStore) Update(ctx context.Context, text string) error {
	resp, err := s.post(ctx, s.updateURL, contentTypeUpdate, text)
	if err != nil {
		return fmt.Errorf("sparql update: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("update", resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Construct submits text as an application/sparql-query request and parses
// the N-Triples response.
func (s *HTTPStore) Construct(ctx context.Context, text string) (*Graph, error) {
	resp, err := s.post(ctx, s.queryURL, contentTypeQuery, text)
	if err != nil {
		return nil, fmt.Errorf("sparql query: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("query", resp); err != nil {
		return nil, err
	}
	return ParseNTriples(resp.Body)
}

// Ping runs an empty CONSTRUCT to check the endpoint is reachable.
func (s *HTTPStore) Ping(ctx context.Context) error {
	_, err := s.Construct(ctx, "construct {} where {}")
	return err
}

func (s *HTTPStore) post(ctx context.Context, url, contentType, text string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(text))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType+"; charset=utf-8")
	req.Header.Set("Accept", contentTypeNT)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("sparql request",
		"url", url,
		"content_type", contentType,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return resp, nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
}
