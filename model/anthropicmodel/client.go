// Package anthropicmodel adapts model.Client onto the Anthropic Claude
// Messages API, grounded on the teacher's features/model/anthropic
// package. It is a thin translator, not a new chat-completion runtime: no
// tool use, no streaming, no thinking blocks — just the single
// system+prompt round trip the learning-loop judge needs.
package anthropicmodel

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentruntime/core/model"
)

// MessagesClient captures the subset of the Anthropic SDK used here, so
// tests can substitute a fake.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Client implements model.Client on top of Anthropic Claude Messages.
type Client struct {
	msg          MessagesClient
	defaultModel string
	maxTokens    int
}

// New builds an Anthropic-backed judge client.
func New(msg MessagesClient, defaultModel string, maxTokens int) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropicmodel: messages client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("anthropicmodel: default model is required")
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Client{msg: msg, defaultModel: defaultModel, maxTokens: maxTokens}, nil
}

// NewFromAPIKey constructs a client using the default Anthropic HTTP
// client, authenticated with apiKey (modelfactory.New passes the value of
// ANTHROPIC_API_KEY).
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropicmodel: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, defaultModel, 1024)
}

// Complete issues a single non-streaming Messages.New call.
func (c *Client) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Model:     sdk.Model(modelID),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(float64(req.Temperature))
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		if errors.Is(err, model.ErrRateLimited) {
			return model.Response{}, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return model.Response{}, fmt.Errorf("anthropicmodel: messages.new: %w", err)
	}
	return translate(msg), nil
}

func translate(msg *sdk.Message) model.Response {
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return model.Response{
		Text: text,
		Usage: model.TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}
