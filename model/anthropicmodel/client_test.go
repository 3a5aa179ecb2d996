package anthropicmodel

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"

	"github.com/agentruntime/core/model"
)

type fakeMessagesClient struct {
	lastParams sdk.MessageNewParams
	response   *sdk.Message
}

func (f *fakeMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	f.lastParams = body
	return f.response, nil
}

func TestCompleteTranslatesPromptAndResponse(t *testing.T) {
	fake := &fakeMessagesClient{
		response: &sdk.Message{
			Content: []sdk.ContentBlockUnion{{Type: "text", Text: "hello there"}},
			Usage:   sdk.Usage{InputTokens: 10, OutputTokens: 5},
		},
	}
	client, err := New(fake, "claude-default", 512)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), model.Request{
		System: "You are a judge.",
		Prompt: "Evaluate this.",
	})
	require.NoError(t, err)
	require.Equal(t, "hello there", resp.Text)
	require.Equal(t, 10, resp.Usage.InputTokens)
	require.Equal(t, 5, resp.Usage.OutputTokens)
	require.Equal(t, 15, resp.Usage.TotalTokens)
	require.Equal(t, sdk.Model("claude-default"), fake.lastParams.Model)
}

func TestNewRequiresClientAndDefaultModel(t *testing.T) {
	_, err := New(nil, "model", 10)
	require.Error(t, err)

	_, err = New(&fakeMessagesClient{}, "", 10)
	require.Error(t, err)
}
