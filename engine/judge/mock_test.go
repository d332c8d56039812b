package judge

import (
	"context"
	"errors"
	"testing"
)

func TestMockChatModel_SingleResponse(t *testing.T) {
	t.Run("returns configured response", func(t *testing.T) {
		mock := &MockChatModel{Responses: []ChatOut{{Text: "Hello, world!"}}}
		messages := []Message{{Role: RoleUser, Content: "Hi"}}

		out, err := mock.Chat(context.Background(), messages)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.Text != "Hello, world!" {
			t.Errorf("expected Text = 'Hello, world!', got %q", out.Text)
		}
	})

	t.Run("repeats last response when exhausted", func(t *testing.T) {
		mock := &MockChatModel{Responses: []ChatOut{{Text: "Only response"}}}
		messages := []Message{{Role: RoleUser, Content: "Test"}}

		out1, err := mock.Chat(context.Background(), messages)
		if err != nil {
			t.Fatalf("first call failed: %v", err)
		}
		out2, err := mock.Chat(context.Background(), messages)
		if err != nil {
			t.Fatalf("second call failed: %v", err)
		}
		if out1.Text != out2.Text {
			t.Errorf("expected same response, got %q and %q", out1.Text, out2.Text)
		}
	})

	t.Run("returns empty response when no responses configured", func(t *testing.T) {
		mock := &MockChatModel{}
		messages := []Message{{Role: RoleUser, Content: "Test"}}

		out, err := mock.Chat(context.Background(), messages)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.Text != "" {
			t.Errorf("expected empty Text, got %q", out.Text)
		}
	})
}

func TestMockChatModel_MultipleResponses(t *testing.T) {
	mock := &MockChatModel{
		Responses: []ChatOut{{Text: "First"}, {Text: "Second"}, {Text: "Third"}},
	}
	messages := []Message{{Role: RoleUser, Content: "Test"}}

	out1, err := mock.Chat(context.Background(), messages)
	if err != nil {
		t.Fatalf("call 1 failed: %v", err)
	}
	if out1.Text != "First" {
		t.Errorf("call 1: expected 'First', got %q", out1.Text)
	}

	out2, err := mock.Chat(context.Background(), messages)
	if err != nil {
		t.Fatalf("call 2 failed: %v", err)
	}
	if out2.Text != "Second" {
		t.Errorf("call 2: expected 'Second', got %q", out2.Text)
	}

	out3, err := mock.Chat(context.Background(), messages)
	if err != nil {
		t.Fatalf("call 3 failed: %v", err)
	}
	if out3.Text != "Third" {
		t.Errorf("call 3: expected 'Third', got %q", out3.Text)
	}

	out4, err := mock.Chat(context.Background(), messages)
	if err != nil {
		t.Fatalf("call 4 failed: %v", err)
	}
	if out4.Text != "Third" {
		t.Errorf("call 4: expected 'Third' (repeat), got %q", out4.Text)
	}
}

func TestMockChatModel_ErrorInjection(t *testing.T) {
	t.Run("returns configured error", func(t *testing.T) {
		expectedErr := errors.New("simulated API error")
		mock := &MockChatModel{Err: expectedErr, Responses: []ChatOut{{Text: "should not be returned"}}}
		messages := []Message{{Role: RoleUser, Content: "Test"}}

		_, err := mock.Chat(context.Background(), messages)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
	})

	t.Run("error takes precedence over responses", func(t *testing.T) {
		mock := &MockChatModel{Err: errors.New("error"), Responses: []ChatOut{{Text: "response"}}}
		messages := []Message{{Role: RoleUser, Content: "Test"}}

		_, err := mock.Chat(context.Background(), messages)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}

func TestMockChatModel_CallHistory(t *testing.T) {
	t.Run("records all calls", func(t *testing.T) {
		mock := &MockChatModel{Responses: []ChatOut{{Text: "OK"}}}
		messages1 := []Message{{Role: RoleUser, Content: "First"}}
		messages2 := []Message{{Role: RoleUser, Content: "Second"}}

		_, _ = mock.Chat(context.Background(), messages1)
		_, _ = mock.Chat(context.Background(), messages2)

		if len(mock.Calls) != 2 {
			t.Fatalf("expected 2 calls recorded, got %d", len(mock.Calls))
		}
		if mock.Calls[0].Messages[0].Content != "First" {
			t.Errorf("call 0: expected content 'First', got %q", mock.Calls[0].Messages[0].Content)
		}
		if mock.Calls[1].Messages[0].Content != "Second" {
			t.Errorf("call 1: expected content 'Second', got %q", mock.Calls[1].Messages[0].Content)
		}
	})

	t.Run("records calls even when error configured", func(t *testing.T) {
		mock := &MockChatModel{Err: errors.New("error")}
		messages := []Message{{Role: RoleUser, Content: "Test"}}

		_, _ = mock.Chat(context.Background(), messages)

		if len(mock.Calls) != 1 {
			t.Errorf("expected 1 call recorded, got %d", len(mock.Calls))
		}
	})
}

func TestMockChatModel_Reset(t *testing.T) {
	t.Run("clears call history", func(t *testing.T) {
		mock := &MockChatModel{Responses: []ChatOut{{Text: "OK"}}}
		messages := []Message{{Role: RoleUser, Content: "Test"}}

		_, _ = mock.Chat(context.Background(), messages)
		_, _ = mock.Chat(context.Background(), messages)

		if len(mock.Calls) != 2 {
			t.Fatalf("expected 2 calls before reset, got %d", len(mock.Calls))
		}

		mock.Reset()

		if len(mock.Calls) != 0 {
			t.Errorf("expected 0 calls after reset, got %d", len(mock.Calls))
		}
	})

	t.Run("resets response index", func(t *testing.T) {
		mock := &MockChatModel{Responses: []ChatOut{{Text: "First"}, {Text: "Second"}}}
		messages := []Message{{Role: RoleUser, Content: "Test"}}

		out1, _ := mock.Chat(context.Background(), messages)
		if out1.Text != "First" {
			t.Fatalf("expected 'First', got %q", out1.Text)
		}

		mock.Reset()

		out2, _ := mock.Chat(context.Background(), messages)
		if out2.Text != "First" {
			t.Errorf("expected 'First' after reset, got %q", out2.Text)
		}
	})
}

func TestMockChatModel_CallCount(t *testing.T) {
	t.Run("returns correct count", func(t *testing.T) {
		mock := &MockChatModel{Responses: []ChatOut{{Text: "OK"}}}

		if mock.CallCount() != 0 {
			t.Errorf("expected 0 calls initially, got %d", mock.CallCount())
		}

		messages := []Message{{Role: RoleUser, Content: "Test"}}
		_, _ = mock.Chat(context.Background(), messages)
		if mock.CallCount() != 1 {
			t.Errorf("expected 1 call, got %d", mock.CallCount())
		}

		_, _ = mock.Chat(context.Background(), messages)
		if mock.CallCount() != 2 {
			t.Errorf("expected 2 calls, got %d", mock.CallCount())
		}
	})

	t.Run("resets with Reset()", func(t *testing.T) {
		mock := &MockChatModel{Responses: []ChatOut{{Text: "OK"}}}
		messages := []Message{{Role: RoleUser, Content: "Test"}}

		_, _ = mock.Chat(context.Background(), messages)
		_, _ = mock.Chat(context.Background(), messages)

		if mock.CallCount() != 2 {
			t.Fatalf("expected 2 calls before reset, got %d", mock.CallCount())
		}

		mock.Reset()

		if mock.CallCount() != 0 {
			t.Errorf("expected 0 calls after reset, got %d", mock.CallCount())
		}
	})
}

func TestMockChatModel_Concurrency(t *testing.T) {
	mock := &MockChatModel{Responses: []ChatOut{{Text: "OK"}}}
	messages := []Message{{Role: RoleUser, Content: "Test"}}

	const goroutines = 10
	done := make(chan bool, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			_, _ = mock.Chat(context.Background(), messages)
			done <- true
		}()
	}
	for i := 0; i < goroutines; i++ {
		<-done
	}

	if mock.CallCount() != goroutines {
		t.Errorf("expected %d calls, got %d", goroutines, mock.CallCount())
	}
}
