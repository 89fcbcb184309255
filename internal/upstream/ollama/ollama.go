package ollama

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kostiantynkovalchuk/DESCRIBER/internal/config"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/upstream"
	"github.com/ollama/ollama/api"
)

const name = "ollama"

// Client wraps the Ollama API client. Ollama has no credential, so it is
// always considered configured.
type Client struct {
	client *api.Client
	model  string
}

var _ upstream.Describer = &Client{}

func New(cfg config.OllamaConfig, httpClient *http.Client) (*Client, error) {
	parsedURL, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return &Client{
		client: api.NewClient(baseURL, httpClient),
		model:  cfg.Model,
	}, nil
}

func (c *Client) Name() string { return name }

func (c *Client) Configured() error { return nil }

func (c *Client) Describe(ctx context.Context, req upstream.Request) (string, error) {
	chatReq, err := c.chatRequest(req, false)
	if err != nil {
		return "", err
	}

	var content string
	err = c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content = resp.Message.Content
		return nil
	})
	if err != nil {
		return "", wrapErr(err)
	}
	return content, nil
}

func (c *Client) DescribeStream(ctx context.Context, req upstream.Request, onDelta func(string) error) error {
	chatReq, err := c.chatRequest(req, true)
	if err != nil {
		return err
	}

	err = c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		if resp.Message.Content == "" {
			return nil
		}
		return onDelta(resp.Message.Content)
	})
	return wrapErr(err)
}

func (c *Client) chatRequest(req upstream.Request, stream bool) (*api.ChatRequest, error) {
	imgBytes, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		// Ollama wants raw bytes; report undecodable payloads the same way a
		// hosted provider rejects a malformed image.
		return nil, &upstream.StatusError{
			Provider:   name,
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("failed to decode base64 image: %v", err),
		}
	}

	return &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: req.Prompt,
				Images:  []api.ImageData{api.ImageData(imgBytes)},
			},
		},
		Stream: &stream,
		Options: map[string]any{
			"num_predict": req.MaxTokens,
		},
	}, nil
}

func wrapErr(err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		msg := se.ErrorMessage
		if msg == "" {
			msg = se.Status
		}
		return &upstream.StatusError{
			Provider:   name,
			StatusCode: se.StatusCode,
			Message:    msg,
		}
	}
	return err
}
