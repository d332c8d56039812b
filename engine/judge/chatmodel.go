// Package judge provides an LLM-backed verdict node: it sends a prediction
// and a reference to a chat model and parses the reply into a pass/fail
// Verdict. See judge.go for the engine.Node itself; this file defines the
// minimal chat-model abstraction the adapters in anthropic/, openai/, and
// google/ implement.
package judge

import "context"

// ChatModel sends a conversation to an LLM and returns its text reply.
// Implementations translate Message/ChatOut to and from one provider's wire
// format and should respect ctx cancellation.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message) (ChatOut, error)
}

// Message is one turn in a conversation sent to a ChatModel.
type Message struct {
	// Role is one of the Role* constants.
	Role    string
	Content string
}

// Role constants for Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatOut is a ChatModel's reply. The judge node only consumes Text; it
// expects the model to have answered with a single JSON verdict object.
type ChatOut struct {
	Text string
}
