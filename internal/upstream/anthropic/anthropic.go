package anthropic

import (
	"context"
	"errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/config"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/upstream"
)

const name = "anthropic"

type Client struct {
	client anthropic.Client
	model  string
	apiKey string
}

var _ upstream.Describer = &Client{}

// New builds a Messages API client. SDK retries are disabled: a failed call
// is reported to the user, who decides whether to try again.
func New(cfg config.AnthropicConfig, httpClient *http.Client) *Client {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &Client{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
		apiKey: cfg.APIKey,
	}
}

func (c *Client) Name() string { return name }

func (c *Client) Configured() error {
	if c.apiKey == "" {
		return upstream.ErrMissingCredential
	}
	return nil
}

func (c *Client) Describe(ctx context.Context, req upstream.Request) (string, error) {
	msg, err := c.client.Messages.New(ctx, c.params(req))
	if err != nil {
		return "", wrapErr(err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", nil
}

func (c *Client) DescribeStream(ctx context.Context, req upstream.Request, onDelta func(string) error) error {
	stream := c.client.Messages.NewStreaming(ctx, c.params(req))
	defer stream.Close()

	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if delta.Text == "" {
					continue
				}
				if err := onDelta(delta.Text); err != nil {
					return err
				}
			}
		}
	}
	return wrapErr(stream.Err())
}

func (c *Client) params(req upstream.Request) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: req.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(req.Prompt),
				anthropic.NewImageBlockBase64(req.MediaType, req.Image),
			),
		},
	}
}

func wrapErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &upstream.StatusError{
			Provider:   name,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Error(),
		}
	}
	return err
}
