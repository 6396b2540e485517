package domain

// ChatMessageRole is the author of a chat message.
type ChatMessageRole string

const (
	ChatMessageRoleSystem    ChatMessageRole = "system"
	ChatMessageRoleDeveloper ChatMessageRole = "developer"
	ChatMessageRoleUser      ChatMessageRole = "user"
	ChatMessageRoleAssistant ChatMessageRole = "assistant"
	ChatMessageRoleTool      ChatMessageRole = "tool"
)

// IsInstruction reports whether the role carries instructions rather than a turn.
func (r ChatMessageRole) IsInstruction() bool {
	return r == ChatMessageRoleSystem || r == ChatMessageRoleDeveloper
}

// ChatMessage is one message of a conversation, reduced to its text content.
type ChatMessage struct {
	Role    ChatMessageRole `json:"role"`
	Content string          `json:"content"`
}

// ModelInfo describes one model served by the gateway.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// CompletionRequest is the dialect-independent form of a chat request.
type CompletionRequest struct {
	ID              string
	Model           string
	Messages        []ChatMessage
	Instructions    string
	Sandbox         string
	ReasoningEffort string
	NetworkAccess   *bool
	HideReasoning   *bool
}
