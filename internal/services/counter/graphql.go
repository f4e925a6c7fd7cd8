// Package counter counts remote records through the Plexus GraphQL API.
package counter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/plexus-ai/plexus-metrics/internal/logger"
)

// ErrRemoteQuery is wrapped by every failed request to the remote endpoint.
var ErrRemoteQuery = errors.New("remote query failed")

// DefaultTimeout bounds a single page request.
const DefaultTimeout = 60 * time.Second

// maxErrorBody limits how much of an error response is kept in messages.
const maxErrorBody = 512

// Querier executes a GraphQL query and decodes its data into out.
type Querier interface {
	Execute(ctx context.Context, query string, variables map[string]any, out any) error
}

// QueryError is a response that carried a GraphQL error list.
type QueryError struct {
	Messages []string
}

func (e *QueryError) Error() string {
	return "graphql errors: " + strings.Join(e.Messages, "; ")
}

// Unwrap lets errors.Is match ErrRemoteQuery.
func (e *QueryError) Unwrap() error {
	return ErrRemoteQuery
}

type graphQLRequest struct {
	Variables map[string]any `json:"variables,omitempty"`
	Query     string         `json:"query"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Client talks to an AppSync-style GraphQL endpoint authenticated by API key.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	timeout    time.Duration
}

// NewClient creates a client. Both endpoint and API key are required.
func NewClient(endpoint, apiKey string, timeout time.Duration) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("graphql endpoint is required")
	}
	if apiKey == "" {
		return nil, errors.New("graphql api key is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{},
		endpoint:   endpoint,
		apiKey:     apiKey,
		timeout:    timeout,
	}, nil
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Execute posts the query and decodes the data object into out. Transport
// failures, non-2xx statuses, undecodable bodies and error payloads all
// return an error wrapping ErrRemoteQuery.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode graphql request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %w", ErrRemoteQuery, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %w", ErrRemoteQuery, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", ErrRemoteQuery, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d: %s", ErrRemoteQuery, resp.StatusCode, truncate(string(body), maxErrorBody))
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return fmt.Errorf("%w: failed to parse response: %w", ErrRemoteQuery, err)
	}

	if len(gqlResp.Errors) > 0 {
		messages := make([]string, 0, len(gqlResp.Errors))
		for _, e := range gqlResp.Errors {
			messages = append(messages, e.Message)
		}
		return &QueryError{Messages: messages}
	}

	if out == nil || len(gqlResp.Data) == 0 || string(gqlResp.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return fmt.Errorf("%w: failed to decode data: %w", ErrRemoteQuery, err)
	}
	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
