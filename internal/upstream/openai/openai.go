package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kostiantynkovalchuk/DESCRIBER/internal/config"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/upstream"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const name = "openai"

// Client talks to any OpenAI-compatible chat completions endpoint, which
// covers self-hosted vision models served behind vLLM and similar.
type Client struct {
	client    openai.Client
	modelName string
	apiKey    string
}

var _ upstream.Describer = &Client{}

func New(cfg config.OpenAIConfig, httpClient *http.Client) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &Client{
		client:    openai.NewClient(opts...),
		modelName: cfg.Model,
		apiKey:    cfg.APIKey,
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
	resp, err := c.client.Chat.Completions.New(ctx, c.buildParams(req))
	if err != nil {
		return "", wrapErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) DescribeStream(ctx context.Context, req upstream.Request, onDelta func(string) error) error {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.buildParams(req))
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := onDelta(delta); err != nil {
			return err
		}
	}
	return wrapErr(stream.Err())
}

func (c *Client) buildParams(req upstream.Request) openai.ChatCompletionNewParams {
	imageData := fmt.Sprintf("data:%s;base64,%s", req.MediaType, req.Image)

	return openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(req.Prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: imageData,
				}),
			}),
		},
		MaxCompletionTokens: openai.Int(req.MaxTokens),
	}
}

func wrapErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &upstream.StatusError{
			Provider:   name,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Error(),
		}
	}
	return err
}
