// Package openai adapts OpenAI's chat completions API to judge.ChatModel.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cvebench/flowengine/engine/judge"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ChatModel implements judge.ChatModel for OpenAI's chat completions API,
// retrying transient errors. The delay between attempts grows linearly for
// rate-limit errors and stays at the base delay for other transient errors.
type ChatModel struct {
	apiKey     string
	modelName  string
	client     openaiClient
	maxRetries int
	retryDelay time.Duration
}

// openaiClient isolates the SDK call so tests can substitute a fake.
type openaiClient interface {
	createChatCompletion(ctx context.Context, messages []judge.Message) (judge.ChatOut, error)
}

// NewChatModel returns a ChatModel for the given OpenAI model name; an
// empty modelName defaults to gpt-4o. Up to 3 retries are attempted for
// transient errors, with a one-second base delay.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &ChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		client:     &defaultClient{apiKey: apiKey, modelName: modelName},
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Chat implements judge.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []judge.Message) (judge.ChatOut, error) {
	if ctx.Err() != nil {
		return judge.ChatOut{}, ctx.Err()
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		out, err := m.client.createChatCompletion(ctx, messages)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !isTransientError(err) {
			return judge.ChatOut{}, err
		}
		if attempt >= m.maxRetries {
			break
		}

		delay := m.retryDelay
		if isRateLimitError(err) {
			delay = m.retryDelay * time.Duration(attempt+1)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return judge.ChatOut{}, ctx.Err()
		}
	}
	return judge.ChatOut{}, fmt.Errorf("OpenAI API failed after %d retries: %w", m.maxRetries, lastErr)
}

// isTransientError reports whether err should trigger a retry.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	var rateLimitErr *rateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}
	msgLower := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "network", "connection", "temporary", "503", "502", "500"} {
		if strings.Contains(msgLower, pattern) {
			return true
		}
	}
	return false
}

func isRateLimitError(err error) bool {
	var rateLimitErr *rateLimitError
	return errors.As(err, &rateLimitErr)
}

// rateLimitError represents an OpenAI rate-limit error.
type rateLimitError struct {
	message string
}

func (e *rateLimitError) Error() string { return e.message }

// defaultClient wraps the official OpenAI SDK client.
type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) createChatCompletion(ctx context.Context, messages []judge.Message) (judge.ChatOut, error) {
	if c.apiKey == "" {
		return judge.ChatOut{}, errors.New("OpenAI API key is required")
	}

	client := openaisdk.NewClient(option.WithAPIKey(c.apiKey))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.modelName),
		Messages: convertMessages(messages),
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return judge.ChatOut{}, fmt.Errorf("OpenAI API error: %w", err)
	}
	return convertResponse(resp), nil
}

// convertMessages converts judge.Message to OpenAI's message format.
func convertMessages(messages []judge.Message) []openaisdk.ChatCompletionMessageParamUnion {
	result := make([]openaisdk.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case judge.RoleSystem:
			result[i] = openaisdk.SystemMessage(msg.Content)
		case judge.RoleAssistant:
			result[i] = openaisdk.AssistantMessage(msg.Content)
		default:
			result[i] = openaisdk.UserMessage(msg.Content)
		}
	}
	return result
}

// convertResponse extracts the first choice's text into judge.ChatOut.
func convertResponse(resp *openaisdk.ChatCompletion) judge.ChatOut {
	if len(resp.Choices) == 0 {
		return judge.ChatOut{}
	}
	return judge.ChatOut{Text: resp.Choices[0].Message.Content}
}
