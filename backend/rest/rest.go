// Package rest is the HTTP client for the hosted write endpoint. Paths and
// headers follow the PostgREST conventions the site uses: rows are POSTed to
// /rest/v1/<table> with an apikey header, and failures carry a JSON body
// with a SQLSTATE code and message.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tufnapp/tufngate/backend"
)

const (
	PathWaitlist      = "/rest/v1/waitlist"
	PathWaitlistCount = "/rest/v1/waitlist_count"
	PathReviews       = "/rest/v1/reviews"
	PathFeedback      = "/rest/v1/feedback"
	PathHealth        = "/healthz"
)

// Error is a non-success response from the endpoint.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("remote: %d: %s", e.Status, e.Message)
}

// Client talks to the hosted endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

var _ backend.Store = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New returns a client for baseURL. apiKey may be empty for open endpoints.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) InsertSignup(ctx context.Context, row backend.Signup) error {
	row.CreatedAt = backend.Stamp(row.CreatedAt)
	return c.post(ctx, PathWaitlist, row)
}

func (c *Client) InsertReview(ctx context.Context, row backend.Review) error {
	row.CreatedAt = backend.Stamp(row.CreatedAt)
	return c.post(ctx, PathReviews, row)
}

func (c *Client) InsertFeedback(ctx context.Context, row backend.Feedback) error {
	row.CreatedAt = backend.Stamp(row.CreatedAt)
	return c.post(ctx, PathFeedback, row)
}

func (c *Client) CountSignups(ctx context.Context) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	if err := c.get(ctx, PathWaitlistCount, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, PathHealth, nil)
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")
	return c.do(req, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", req.URL.Path, err)
		}
		return nil
	}

	remote := decodeError(resp)
	if resp.StatusCode == http.StatusConflict || backend.IsConflict(remote.Code, remote.Message) {
		return fmt.Errorf("%w: %v", backend.ErrConflict, remote)
	}
	return remote
}

func decodeError(resp *http.Response) *Error {
	e := &Error{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, e); err != nil || (e.Code == "" && e.Message == "") {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
	}
	return e
}
