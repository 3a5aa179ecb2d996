// Package openaimodel adapts model.Client onto the OpenAI Chat Completions
// API via github.com/openai/openai-go, the alternate judge backend
// alongside anthropicmodel. Same narrow translator shape: system+prompt in,
// text+usage out.
package openaimodel

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	coremodel "github.com/agentruntime/core/model"
)

// ChatClient captures the subset of the OpenAI SDK used here.
type ChatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client implements coremodel.Client via OpenAI Chat Completions.
type Client struct {
	chat         ChatClient
	defaultModel string
}

// New builds an OpenAI-backed judge client.
func New(chat ChatClient, defaultModel string) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openaimodel: chat client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("openaimodel: default model is required")
	}
	return &Client{chat: chat, defaultModel: defaultModel}, nil
}

// NewFromAPIKey constructs a client using the default OpenAI HTTP client,
// authenticated with apiKey (modelfactory.New passes the value of
// OPENAI_API_KEY).
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openaimodel: api key is required")
	}
	oc := openai.NewClient(option.WithAPIKey(apiKey))
	return New(oc.Chat.Completions, defaultModel)
}

// Complete issues a single Chat Completions call.
func (c *Client) Complete(ctx context.Context, req coremodel.Request) (coremodel.Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    modelID,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		if errors.Is(err, coremodel.ErrRateLimited) {
			return coremodel.Response{}, fmt.Errorf("%w: %w", coremodel.ErrRateLimited, err)
		}
		return coremodel.Response{}, fmt.Errorf("openaimodel: chat completions: %w", err)
	}
	return translate(resp), nil
}

func translate(resp *openai.ChatCompletion) coremodel.Response {
	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	return coremodel.Response{
		Text: text,
		Usage: coremodel.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}
}
