// Package anthropic adapts Anthropic's Claude API to judge.ChatModel.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cvebench/flowengine/engine/judge"
)

// ChatModel implements judge.ChatModel for Claude. It extracts system
// messages into Anthropic's separate system parameter. An *anthropicError
// returned by the client is passed through for errors.As; the default SDK
// client wraps SDK errors with fmt.Errorf and does not build one.
type ChatModel struct {
	apiKey    string
	modelName string
	client    anthropicClient
}

// anthropicClient isolates the SDK call so tests can substitute a fake.
type anthropicClient interface {
	createMessage(ctx context.Context, systemPrompt string, messages []judge.Message) (judge.ChatOut, error)
}

// NewChatModel returns a ChatModel for the given Claude model name; an
// empty modelName defaults to the current Sonnet release.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	return &ChatModel{
		apiKey:    apiKey,
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey, modelName: modelName},
	}
}

// Chat implements judge.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []judge.Message) (judge.ChatOut, error) {
	if ctx.Err() != nil {
		return judge.ChatOut{}, ctx.Err()
	}

	systemPrompt, conversationMessages := extractSystemPrompt(messages)

	out, err := m.client.createMessage(ctx, systemPrompt, conversationMessages)
	if err != nil {
		var anthropicErr *anthropicError
		if errors.As(err, &anthropicErr) {
			return judge.ChatOut{}, anthropicErr
		}
		return judge.ChatOut{}, err
	}
	return out, nil
}

// extractSystemPrompt separates system messages, which Anthropic's API
// expects as a separate parameter, from the conversation.
func extractSystemPrompt(messages []judge.Message) (string, []judge.Message) {
	var systemPrompt string
	var conversationMessages []judge.Message

	for _, msg := range messages {
		if msg.Role == judge.RoleSystem {
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
		} else {
			conversationMessages = append(conversationMessages, msg)
		}
	}
	return systemPrompt, conversationMessages
}

// defaultClient wraps the official Anthropic SDK client.
type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) createMessage(ctx context.Context, systemPrompt string, messages []judge.Message) (judge.ChatOut, error) {
	if c.apiKey == "" {
		return judge.ChatOut{}, errors.New("anthropic API key is required")
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.modelName),
		Messages:  convertMessages(messages),
		MaxTokens: 4096,
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return judge.ChatOut{}, fmt.Errorf("anthropic API error: %w", err)
	}
	return convertResponse(resp), nil
}

// convertMessages converts judge.Message to Anthropic's message format.
func convertMessages(messages []judge.Message) []anthropicsdk.MessageParam {
	result := make([]anthropicsdk.MessageParam, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case judge.RoleAssistant:
			result[i] = anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content))
		default:
			result[i] = anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content))
		}
	}
	return result
}

// convertResponse concatenates Claude's text blocks into judge.ChatOut.Text.
func convertResponse(resp *anthropicsdk.Message) judge.ChatOut {
	out := judge.ChatOut{}
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += b.Text
		}
	}
	return out
}

// anthropicError represents an Anthropic API error (authentication,
// rate-limit, overloaded, ...), preserved with its type for errors.As.
type anthropicError struct {
	Type    string
	Message string
}

func (e *anthropicError) Error() string {
	return e.Type + ": " + e.Message
}
