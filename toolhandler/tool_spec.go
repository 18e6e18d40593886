package toolhandler

type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type ToolRequest struct {
	ThreadId  string         `json:"thread_id"`
	Arguments map[string]any `json:"arguments"`
}

type ToolResponse struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
