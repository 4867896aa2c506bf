package schema

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	// RoleUser marks a message written by the user.
	RoleUser MessageRole = "user"
	// RoleAssistant marks a message produced by the pipeline.
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is a single turn in a conversation thread.
type ChatMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}
