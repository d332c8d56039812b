package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/cvebench/flowengine/engine/judge"
)

func TestOpenAIChatModel_Construction(t *testing.T) {
	t.Run("creates model with API key", func(t *testing.T) {
		m := NewChatModel("test-api-key", "gpt-4")

		if m == nil {
			t.Fatal("expected non-nil model")
		}
	})

	t.Run("creates model with default model name", func(t *testing.T) {
		m := NewChatModel("test-api-key", "")

		if m == nil {
			t.Fatal("expected non-nil model")
		}
	})
}

func TestOpenAIChatModel_Chat(t *testing.T) {
	t.Run("sends messages and returns response", func(t *testing.T) {
		mockClient := &mockOpenAIClient{
			response: "Hello! How can I help you?",
		}

		m := &ChatModel{
			client:    mockClient,
			modelName: "gpt-4",
		}

		messages := []judge.Message{
			{Role: judge.RoleSystem, Content: "You are helpful."},
			{Role: judge.RoleUser, Content: "Hi there!"},
		}

		out, err := m.Chat(context.Background(), messages)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if out.Text != "Hello! How can I help you?" {
			t.Errorf("expected specific text, got %q", out.Text)
		}

		if mockClient.callCount != 1 {
			t.Errorf("expected 1 API call, got %d", mockClient.callCount)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		mockClient := &mockOpenAIClient{
			response: "Response",
		}

		m := &ChatModel{
			client:    mockClient,
			modelName: "gpt-4",
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		messages := []judge.Message{
			{Role: judge.RoleUser, Content: "Test"},
		}

		_, err := m.Chat(ctx, messages)
		if err == nil {
			t.Fatal("expected context.Canceled error, got nil")
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestOpenAIChatModel_ErrorHandling(t *testing.T) {
	t.Run("handles API errors", func(t *testing.T) {
		mockClient := &mockOpenAIClient{
			err: errors.New("API error: invalid request"),
		}

		m := &ChatModel{
			client:    mockClient,
			modelName: "gpt-4",
		}

		messages := []judge.Message{
			{Role: judge.RoleUser, Content: "Test"},
		}

		_, err := m.Chat(context.Background(), messages)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("handles rate limit errors", func(t *testing.T) {
		mockClient := &mockOpenAIClient{
			err: &rateLimitError{message: "rate limit exceeded"},
		}

		m := &ChatModel{
			client:    mockClient,
			modelName: "gpt-4",
		}

		messages := []judge.Message{
			{Role: judge.RoleUser, Content: "Test"},
		}

		_, err := m.Chat(context.Background(), messages)
		if err == nil {
			t.Fatal("expected rate limit error, got nil")
		}

		var rateLimitErr *rateLimitError
		if !errors.As(err, &rateLimitErr) {
			t.Errorf("expected rateLimitError type, got %T", err)
		}
	})

	t.Run("handles empty API key", func(t *testing.T) {
		m := NewChatModel("", "gpt-4")

		messages := []judge.Message{
			{Role: judge.RoleUser, Content: "Test"},
		}

		_, err := m.Chat(context.Background(), messages)
		if err == nil {
			t.Error("expected error for empty API key")
		}
	})
}

func TestOpenAIChatModel_RetryLogic(t *testing.T) {
	t.Run("retries on transient errors", func(t *testing.T) {
		mockClient := &mockOpenAIClient{
			errors: []error{
				errors.New("temporary network error"),
				errors.New("timeout"),
				nil,
			},
			response: "Success after retries",
		}

		m := &ChatModel{
			client:     mockClient,
			modelName:  "gpt-4",
			maxRetries: 3,
		}

		messages := []judge.Message{
			{Role: judge.RoleUser, Content: "Test"},
		}

		out, err := m.Chat(context.Background(), messages)
		if err != nil {
			t.Fatalf("expected success after retries, got %v", err)
		}

		if out.Text != "Success after retries" {
			t.Errorf("expected success response, got %q", out.Text)
		}

		if mockClient.callCount != 3 {
			t.Errorf("expected 3 attempts (2 retries), got %d", mockClient.callCount)
		}
	})

	t.Run("does not retry on non-transient errors", func(t *testing.T) {
		mockClient := &mockOpenAIClient{
			err: errors.New("invalid API key"),
		}

		m := &ChatModel{
			client:     mockClient,
			modelName:  "gpt-4",
			maxRetries: 3,
		}

		messages := []judge.Message{
			{Role: judge.RoleUser, Content: "Test"},
		}

		_, err := m.Chat(context.Background(), messages)
		if err == nil {
			t.Fatal("expected error, got nil")
		}

		if mockClient.callCount != 1 {
			t.Errorf("expected 1 attempt (no retries), got %d", mockClient.callCount)
		}
	})

	t.Run("respects max retries limit", func(t *testing.T) {
		mockClient := &mockOpenAIClient{
			err: &rateLimitError{message: "rate limit"},
		}

		m := &ChatModel{
			client:     mockClient,
			modelName:  "gpt-4",
			maxRetries: 2,
		}

		messages := []judge.Message{
			{Role: judge.RoleUser, Content: "Test"},
		}

		_, err := m.Chat(context.Background(), messages)
		if err == nil {
			t.Fatal("expected error after max retries, got nil")
		}

		if mockClient.callCount != 3 {
			t.Errorf("expected 3 attempts, got %d", mockClient.callCount)
		}
	})
}

func TestOpenAIChatModel_MessageConversion(t *testing.T) {
	t.Run("converts all message types", func(t *testing.T) {
		mockClient := &mockOpenAIClient{
			response: "Converted successfully",
		}

		m := &ChatModel{
			client:    mockClient,
			modelName: "gpt-4",
		}

		messages := []judge.Message{
			{Role: judge.RoleSystem, Content: "System prompt"},
			{Role: judge.RoleUser, Content: "User message"},
			{Role: judge.RoleAssistant, Content: "Assistant response"},
		}

		_, err := m.Chat(context.Background(), messages)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(mockClient.lastMessages) != 3 {
			t.Errorf("expected 3 messages sent, got %d", len(mockClient.lastMessages))
		}
	})
}

// mockOpenAIClient is a fake openaiClient for testing.
type mockOpenAIClient struct {
	response     string
	err          error
	errors       []error // drives retry-logic tests
	callCount    int
	lastMessages []judge.Message
}

func (m *mockOpenAIClient) createChatCompletion(_ context.Context, messages []judge.Message) (judge.ChatOut, error) {
	m.callCount++
	m.lastMessages = messages

	if len(m.errors) > 0 {
		if m.callCount <= len(m.errors) {
			if err := m.errors[m.callCount-1]; err != nil {
				return judge.ChatOut{}, err
			}
		}
	} else if m.err != nil {
		return judge.ChatOut{}, m.err
	}

	return judge.ChatOut{Text: m.response}, nil
}
