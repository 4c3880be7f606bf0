// Package milvus stores and searches SQL references in a Milvus collection
// through the Milvus RESTful API (v2).
package milvus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/logging"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/retrieval"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/retry"
)

// DefaultTimeout is the maximum time to wait for one Milvus call.
const DefaultTimeout = 30 * time.Second

// Field names of the reference collection.
const (
	FieldVector   = "vector"
	FieldQuestion = "query"
	FieldSQL      = "sql"
	FieldTags     = "tags"
)

// Client talks to a Milvus server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      *retry.Config
	logger     *zap.Logger
}

// NewClient creates a client for the server at baseURL. token is sent as a
// bearer token when non-empty ("user:password" or an API key).
func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		retry:      retry.DefaultConfig(),
		logger:     logger.Named("milvus"),
	}
}

// StatusError is a non-success answer from Milvus, either an HTTP status or
// a non-zero code in the response envelope.
type StatusError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *StatusError) Error() string {
	if e.HTTPStatus != 0 && e.HTTPStatus != http.StatusOK {
		return fmt.Sprintf("milvus returned status %d: %s", e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("milvus error code %d: %s", e.Code, e.Message)
}

// IsRetryable treats overload and server errors as transient.
func (e *StatusError) IsRetryable() bool {
	return e.HTTPStatus == http.StatusTooManyRequests || e.HTTPStatus >= 500
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Search returns the nearest references to req.Vector, best first.
func (c *Client) Search(ctx context.Context, req retrieval.SearchRequest) ([]retrieval.ReferencePair, error) {
	body := map[string]any{
		"collectionName": req.Collection,
		"data":           [][]float32{req.Vector},
		"annsField":      FieldVector,
		"limit":          req.Limit,
		"outputFields":   []string{FieldQuestion, FieldSQL},
	}
	if filter := req.Filter.Expression(); filter != "" {
		body["filter"] = filter
	}

	var hits []struct {
		Distance float64 `json:"distance"`
		Query    string  `json:"query"`
		SQL      string  `json:"sql"`
	}
	if err := c.call(ctx, []string{"entities", "search"}, body, &hits); err != nil {
		return nil, fmt.Errorf("search %s: %w", req.Collection, err)
	}

	pairs := make([]retrieval.ReferencePair, 0, len(hits))
	for _, h := range hits {
		pairs = append(pairs, retrieval.ReferencePair{Question: h.Query, SQL: h.SQL})
	}
	return pairs, nil
}

// Insert writes records to collection.
func (c *Client) Insert(ctx context.Context, collection string, records []retrieval.Record) error {
	rows := make([]map[string]any, len(records))
	for i, r := range records {
		tags := r.Tags
		if tags == nil {
			tags = []string{}
		}
		rows[i] = map[string]any{
			FieldVector:   r.Vector,
			FieldQuestion: r.Question,
			FieldSQL:      r.SQL,
			FieldTags:     tags,
		}
	}

	var result struct {
		InsertCount int `json:"insertCount"`
	}
	if err := c.call(ctx, []string{"entities", "insert"}, map[string]any{
		"collectionName": collection,
		"data":           rows,
	}, &result); err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	c.logger.Debug("inserted references",
		zap.String("collection", collection),
		zap.Int("count", result.InsertCount),
	)
	return nil
}

// HasCollection reports whether collection exists.
func (c *Client) HasCollection(ctx context.Context, collection string) (bool, error) {
	var result struct {
		Has bool `json:"has"`
	}
	if err := c.call(ctx, []string{"collections", "has"}, map[string]any{
		"collectionName": collection,
	}, &result); err != nil {
		return false, fmt.Errorf("check collection %s: %w", collection, err)
	}
	return result.Has, nil
}

// Inspect reports whether collection exists. Milvus does not report a row
// count through this call.
func (c *Client) Inspect(ctx context.Context, collection string) (retrieval.IndexStatus, error) {
	has, err := c.HasCollection(ctx, collection)
	if err != nil {
		return retrieval.IndexStatus{}, err
	}
	return retrieval.IndexStatus{Backend: "milvus", Collection: collection, Ready: has, References: -1}, nil
}

// call posts payload to /v2/vectordb/<segments> and decodes the envelope's
// data into out, retrying transient failures.
func (c *Client) call(ctx context.Context, segments []string, payload any, out any) error {
	endpoint, err := buildURL(c.baseURL, append([]string{"v2", "vectordb"}, segments...)...)
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	data, err := retry.DoIfRetryableWithResult(ctx, c.retry, func() (json.RawMessage, error) {
		return c.post(ctx, endpoint, encoded)
	})
	if err != nil {
		c.logger.Warn("milvus call failed",
			zap.String("url", endpoint),
			zap.String("error", logging.SanitizeError(err)),
		)
		return err
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, encoded []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call milvus: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{HTTPStatus: resp.StatusCode, Message: logging.TruncateString(string(body), 200)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if env.Code != 0 {
		return nil, &StatusError{HTTPStatus: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	return env.Data, nil
}

// buildURL constructs a URL by parsing the base and joining path segments.
func buildURL(baseURL string, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q: scheme and host are required", baseURL)
	}

	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)
	return u.String(), nil
}

var (
	_ retrieval.VectorIndex     = (*Client)(nil)
	_ retrieval.ReferenceWriter = (*Client)(nil)
)
