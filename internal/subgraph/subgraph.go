// Package subgraph is a minimal GraphQL-over-HTTP client for the protocol
// subgraph that chart units query their series from.
//
// The query layer is deliberately thin: units own their query strings and
// decode the response rows themselves. There is no pagination handling and no
// schema awareness here.
package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resty.dev/v3"
)

// Config holds the connection settings for one subgraph endpoint.
type Config struct {
	// URL is the full GraphQL endpoint URL.
	URL string
	// Timeout bounds a single query round trip. Zero means no client timeout;
	// callers are expected to pass a bounded context regardless.
	Timeout time.Duration
}

// Client executes GraphQL queries against a single endpoint.
type Client struct {
	url  string
	http *resty.Client
}

// New returns a client for the configured endpoint.
func New(cfg Config) *Client {
	httpClient := resty.New()
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}
	return &Client{url: cfg.URL, http: httpClient}
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

// Query runs one GraphQL query and decodes the response's data object into
// out. GraphQL-level errors are returned as a single wrapped error.
func (c *Client) Query(ctx context.Context, query string, vars map[string]any, out any) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(gqlRequest{Query: query, Variables: vars}).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("subgraph query failed: %w", err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("subgraph query failed: unexpected status %d", res.StatusCode())
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []gqlError      `json:"errors"`
	}
	if err := json.Unmarshal(res.Bytes(), &envelope); err != nil {
		return fmt.Errorf("subgraph response is not valid JSON: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("subgraph query failed: %s", envelope.Errors[0].Message)
	}
	if len(envelope.Data) == 0 {
		return fmt.Errorf("subgraph response has no data")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode subgraph data: %w", err)
	}
	return nil
}
