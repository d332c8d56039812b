// Package google adapts Google's Gemini API to judge.ChatModel.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/cvebench/flowengine/engine/judge"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ChatModel implements judge.ChatModel for Gemini. A *SafetyFilterError
// returned by the client is passed through so callers can match it with
// errors.As; the default SDK client does not itself produce one.
type ChatModel struct {
	apiKey    string
	modelName string
	client    googleClient
}

// googleClient isolates the SDK call so tests can substitute a fake.
type googleClient interface {
	generateContent(ctx context.Context, messages []judge.Message) (judge.ChatOut, error)
}

// NewChatModel returns a ChatModel for the given Gemini model name; an
// empty modelName defaults to gemini-2.5-flash.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
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

	out, err := m.client.generateContent(ctx, messages)
	if err != nil {
		var safetyErr *SafetyFilterError
		if errors.As(err, &safetyErr) {
			return judge.ChatOut{}, safetyErr
		}
		return judge.ChatOut{}, err
	}
	return out, nil
}

// defaultClient wraps the official Google Gemini SDK client.
type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) generateContent(ctx context.Context, messages []judge.Message) (judge.ChatOut, error) {
	if c.apiKey == "" {
		return judge.ChatOut{}, errors.New("google API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return judge.ChatOut{}, fmt.Errorf("failed to create Google client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(c.modelName)

	resp, err := genModel.GenerateContent(ctx, convertMessages(messages)...)
	if err != nil {
		return judge.ChatOut{}, fmt.Errorf("google API error: %w", err)
	}
	return convertResponse(resp), nil
}

// convertMessages converts judge.Message to Gemini content parts. Gemini
// has no distinct system-message slot in this call shape, so every message
// is sent as a text part in order.
func convertMessages(messages []judge.Message) []genai.Part {
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Content != "" {
			parts = append(parts, genai.Text(msg.Content))
		}
	}
	return parts
}

// convertResponse concatenates the first candidate's text parts.
func convertResponse(resp *genai.GenerateContentResponse) judge.ChatOut {
	out := judge.ChatOut{}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if p, ok := part.(genai.Text); ok {
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(p)
		}
	}
	return out
}

// SafetyFilterError reports that Gemini blocked a response under one of
// its safety categories (e.g. HARM_CATEGORY_DANGEROUS_CONTENT).
type SafetyFilterError struct {
	reason   string
	category string
}

func (e *SafetyFilterError) Error() string {
	return "content blocked by safety filter: " + e.category
}

// Category returns the safety category that triggered the block.
func (e *SafetyFilterError) Category() string { return e.category }

// Reason returns why the content was blocked.
func (e *SafetyFilterError) Reason() string { return e.reason }
