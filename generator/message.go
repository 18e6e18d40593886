package generator

const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a conversation. Messages are immutable once
// appended to a turn's history.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	ToolCallId string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model request to invoke a named tool.
type ToolCall struct {
	Id        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Completion is the model's reply to a Chat call. Content and ToolCalls
// are mutually exclusive in practice: a model that wants a tool leaves
// Content empty.
type Completion struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}
