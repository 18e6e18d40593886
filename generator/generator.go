package generator

import (
	"context"

	toolhandler "github.com/finchat/finchat/toolhandler"
)

type Generator interface {
	// Generate produces a free-text completion for a single prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// Chat produces a completion for a message history. When tools are
	// offered, the model may answer with tool calls instead of content.
	Chat(ctx context.Context, messages []Message, tools []toolhandler.ToolSpec) (Completion, error)
}
