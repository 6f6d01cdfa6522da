package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON returns the body as raw JSON, or an error if it is empty or malformed.
func (r *Response) JSON() (json.RawMessage, error) {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	if !json.Valid(r.Body) {
		return nil, fmt.Errorf("invalid JSON response body")
	}
	return json.RawMessage(r.Body), nil
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Client sends single requests against a base URL. It never retries.
type Client struct {
	client  *http.Client
	baseURL string
}

func New(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{client: client, baseURL: baseURL}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Request performs one HTTP call to baseURL joined with path. A non-nil
// payload is sent as a JSON body. Non-2xx responses and transport failures
// are returned as *HTTPStatusError and *TransportError.
func (c *Client) Request(ctx context.Context, path string, payload any, method string, headers http.Header) (*Response, error) {
	if method == "" {
		method = http.MethodGet
	}
	url := JoinURL(c.baseURL, path)

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: truncate(data, 256)}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// JoinURL concatenates base and path with exactly one slash between them.
// Paths starting with "?" are appended as a query string.
func JoinURL(base, path string) string {
	if path == "" || strings.HasPrefix(path, "?") {
		return base + path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
