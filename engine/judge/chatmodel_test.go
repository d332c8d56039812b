package judge

import (
	"context"
	"errors"
	"testing"
)

func TestMessage_Construction(t *testing.T) {
	t.Run("create user message", func(t *testing.T) {
		msg := Message{Role: "user", Content: "Hello, how are you?"}
		if msg.Role != "user" {
			t.Errorf("expected Role = 'user', got %q", msg.Role)
		}
		if msg.Content != "Hello, how are you?" {
			t.Errorf("expected Content = 'Hello, how are you?', got %q", msg.Content)
		}
	})

	t.Run("create assistant message", func(t *testing.T) {
		msg := Message{Role: "assistant", Content: "I'm doing well, thank you!"}
		if msg.Role != "assistant" {
			t.Errorf("expected Role = 'assistant', got %q", msg.Role)
		}
	})

	t.Run("create system message", func(t *testing.T) {
		msg := Message{Role: "system", Content: "You are a helpful assistant."}
		if msg.Role != "system" {
			t.Errorf("expected Role = 'system', got %q", msg.Role)
		}
	})
}

func TestMessage_Roles(t *testing.T) {
	t.Run("verify role constants exist", func(t *testing.T) {
		for _, role := range []string{RoleSystem, RoleUser, RoleAssistant} {
			if role == "" {
				t.Errorf("role constant should not be empty")
			}
		}
	})

	t.Run("role constants have expected values", func(t *testing.T) {
		if RoleSystem != "system" {
			t.Errorf("expected RoleSystem = 'system', got %q", RoleSystem)
		}
		if RoleUser != "user" {
			t.Errorf("expected RoleUser = 'user', got %q", RoleUser)
		}
		if RoleAssistant != "assistant" {
			t.Errorf("expected RoleAssistant = 'assistant', got %q", RoleAssistant)
		}
	})
}

func TestMessage_Conversation(t *testing.T) {
	conversation := []Message{
		{Role: RoleSystem, Content: "You are a helpful assistant."},
		{Role: RoleUser, Content: "What is 2+2?"},
		{Role: RoleAssistant, Content: "2+2 equals 4."},
		{Role: RoleUser, Content: "Thanks!"},
	}

	if len(conversation) != 4 {
		t.Errorf("expected 4 messages, got %d", len(conversation))
	}
	if conversation[1].Role != RoleUser {
		t.Errorf("expected second message to be user, got %q", conversation[1].Role)
	}
	if conversation[2].Role != RoleAssistant {
		t.Errorf("expected third message to be assistant, got %q", conversation[2].Role)
	}
}

func TestMessage_EmptyContent(t *testing.T) {
	msg := Message{Role: RoleUser, Content: ""}
	if msg.Content != "" {
		t.Errorf("expected empty Content, got %q", msg.Content)
	}
}

func TestChatOut_Construction(t *testing.T) {
	out := ChatOut{Text: "Hello, how can I help you today?"}
	if out.Text != "Hello, how can I help you today?" {
		t.Errorf("expected Text = 'Hello, how can I help you today?', got %q", out.Text)
	}
}

func TestChatModel_Interface(t *testing.T) {
	t.Run("interface can be implemented", func(t *testing.T) {
		var _ ChatModel = &testChatModel{}
	})

	t.Run("chat method accepts messages", func(t *testing.T) {
		model := &testChatModel{response: ChatOut{Text: "Hello!"}}
		messages := []Message{{Role: RoleUser, Content: "Hi"}}

		out, err := model.Chat(context.Background(), messages)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.Text != "Hello!" {
			t.Errorf("expected Text = 'Hello!', got %q", out.Text)
		}
	})

	t.Run("chat method returns errors", func(t *testing.T) {
		expectedErr := errors.New("API error")
		model := &testChatModel{err: expectedErr}
		messages := []Message{{Role: RoleUser, Content: "Test"}}

		_, err := model.Chat(context.Background(), messages)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
	})

	t.Run("chat method respects context cancellation", func(t *testing.T) {
		model := &testChatModel{response: ChatOut{Text: "should not return"}}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		messages := []Message{{Role: RoleUser, Content: "Test"}}
		_, err := model.Chat(ctx, messages)
		if err == nil {
			t.Errorf("expected context-related error when cancelled")
		}
	})
}

// testChatModel is a simple ChatModel implementation for testing.
type testChatModel struct {
	response ChatOut
	err      error
}

func (m *testChatModel) Chat(ctx context.Context, messages []Message) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}
	if m.err != nil {
		return ChatOut{}, m.err
	}
	return m.response, nil
}
