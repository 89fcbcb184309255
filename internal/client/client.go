// Package client is a typed wrapper around the describe proxy.
package client

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/models"
)

const (
	DefaultTimeout = 30 * time.Second

	describePath       = "/api/describe"
	describeStreamPath = "/api/describe/stream"
)

const (
	msgTimeout         = "Request timed out. Please check your connection and try again."
	msgBadRequest      = "Bad request - please try a different image or check image format"
	msgTooLarge        = "Image too large - please use a smaller image"
	msgTooManyRequests = "Too many requests - please wait and try again"
	msgNoDescription   = "No description received from API"
	msgMalformed       = "Malformed response from API"
	msgStreamEnded     = "Description stream ended unexpectedly"
)

// APIError is a response from the proxy that did not carry a description.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string { return e.Message }

// NetworkError means no usable response arrived: the request failed in
// transit or was aborted by the client timeout.
type NetworkError struct {
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return msgTimeout
	}
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each call; zero disables the client-side deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Description string `json:"description"`
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	Details     string `json:"details"`
}

// Describe sends one image and returns its description.
func (c *Client) Describe(ctx context.Context, req models.DescribeRequest) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.post(ctx, describePath, "application/json", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", networkError(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(resp, raw)
	}

	var result envelope
	if err := sonic.Unmarshal(raw, &result); err != nil {
		return "", &APIError{StatusCode: resp.StatusCode, Message: msgMalformed, Details: err.Error()}
	}
	switch {
	case result.Description != "":
		return result.Description, nil
	case result.Error != "":
		return "", &APIError{StatusCode: resp.StatusCode, Message: result.Error, Details: result.Details}
	default:
		return "", &APIError{StatusCode: resp.StatusCode, Message: msgNoDescription}
	}
}

// DescribeStream calls onDelta for each streamed fragment and returns the
// complete description once the server reports it is done.
func (c *Client) DescribeStream(ctx context.Context, req models.DescribeRequest, onDelta func(string) error) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.post(ctx, describeStreamPath, "text/event-stream", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", statusError(resp, raw)
	}

	reader := bufio.NewReader(resp.Body)
	event := ""

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", &APIError{StatusCode: resp.StatusCode, Message: msgStreamEnded}
			}
			return "", networkError(ctx, err)
		}

		line = strings.TrimSpace(line)
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			event = name
			continue
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}

		switch event {
		case "error":
			var e models.ErrorResponse
			if err := sonic.UnmarshalString(payload, &e); err != nil {
				return "", &APIError{StatusCode: resp.StatusCode, Message: msgMalformed, Details: payload}
			}
			return "", &APIError{StatusCode: resp.StatusCode, Message: e.Error, Details: e.Details}
		case "done":
			var chunk models.StreamChunk
			if err := sonic.UnmarshalString(payload, &chunk); err != nil {
				return "", &APIError{StatusCode: resp.StatusCode, Message: msgMalformed, Details: payload}
			}
			return chunk.Description, nil
		default:
			var chunk models.StreamChunk
			if err := sonic.UnmarshalString(payload, &chunk); err != nil {
				return "", &APIError{StatusCode: resp.StatusCode, Message: msgMalformed, Details: payload}
			}
			if chunk.Delta == "" {
				continue
			}
			if err := onDelta(chunk.Delta); err != nil {
				return "", err
			}
		}
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) post(ctx context.Context, path, accept string, req models.DescribeRequest) (*http.Response, error) {
	body, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal req: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, networkError(ctx, err)
	}
	return resp, nil
}

func networkError(ctx context.Context, err error) error {
	return &NetworkError{
		Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded),
		Err:     err,
	}
}

func statusError(resp *http.Response, raw []byte) error {
	e := &APIError{StatusCode: resp.StatusCode, Details: strings.TrimSpace(string(raw))}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		e.Message = msgBadRequest
	case http.StatusRequestEntityTooLarge:
		e.Message = msgTooLarge
	case http.StatusTooManyRequests:
		e.Message = msgTooManyRequests
	default:
		e.Message = fmt.Sprintf("API request failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return e
}
