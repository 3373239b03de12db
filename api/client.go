// Package api contains the typed resource clients of the UniCash admin
// console. They are thin consumers of the authenticated pipeline in the
// auth package and hold no token logic of their own.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/codelabbj/unicash-admin-cli/auth"
)

// Error is a non-2xx response from a resource endpoint, passed through
// verbatim. Authorization recovery happens below this layer; by the time
// an Error surfaces, the pipeline has already done everything it is
// allowed to do.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: server returned status %d: %s", e.StatusCode, e.Body)
}

// Page is the paginated list envelope returned by the backend.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// ListOptions are the common pagination and filter parameters.
type ListOptions struct {
	Limit  int
	Offset int
	Search string
}

func (o ListOptions) query() string {
	q := url.Values{}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// Client issues JSON requests against the admin API through the
// authenticated pipeline.
type Client struct {
	baseURL string
	http    *auth.Client
}

// New creates a resource client rooted at baseURL.
func New(baseURL string, pipeline *auth.Client) *Client {
	return &Client{baseURL: baseURL, http: pipeline}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) patch(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPatch, path, in, out)
}

// list fetches a paginated collection. Methods cannot be generic, so the
// typed clients call through this helper.
func list[T any](ctx context.Context, c *Client, path string, opts ListOptions) (*Page[T], error) {
	var page Page[T]
	if err := c.get(ctx, path+opts.query(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}
