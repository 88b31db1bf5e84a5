// Package openai provides a chat Completer backed by any OpenAI-compatible
// endpoint (OpenAI, MiniMax, local gateways).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"eq-coach-service/internal/service/oracle"
)

// Client implements oracle.Completer.
type Client struct {
	client oai.Client
	model  string
}

type config struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// Option is a functional option for Client.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// New constructs a Client. Requests are never retried automatically.
func New(apiKey, model string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	switch {
	case cfg.httpClient != nil:
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	case cfg.timeout > 0:
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Client{
		client: oai.NewClient(reqOpts...),
		model:  model,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete implements oracle.Completer.
func (c *Client) Complete(ctx context.Context, p oracle.Prompt) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.buildParams(p))
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", oracle.ErrEmptyReply
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", oracle.ErrEmptyReply
	}
	return content, nil
}

func (c *Client) buildParams(p oracle.Prompt) oai.ChatCompletionNewParams {
	var messages []oai.ChatCompletionMessageParamUnion
	if p.System != "" {
		messages = append(messages, oai.SystemMessage(p.System))
	}
	messages = append(messages, oai.UserMessage(p.User))

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: messages,
	}
	if p.Temperature != 0 {
		params.Temperature = param.NewOpt(p.Temperature)
	}
	if p.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(p.MaxTokens))
	}
	if p.Schema != nil {
		name := p.SchemaName
		if name == "" {
			name = "response"
		}
		params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Schema: p.Schema,
					Strict: param.NewOpt(true),
				},
			},
		}
	}
	return params
}

// classify maps SDK errors onto oracle errors. Context errors pass through
// so callers can tell a timeout from an outage.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return &oracle.TransportError{Status: apiErr.StatusCode, Err: err}
	}
	return &oracle.TransportError{Err: err}
}
