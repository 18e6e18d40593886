package turn

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finchat/finchat/generator"
	toolhandler "github.com/finchat/finchat/toolhandler"
)

type fakeGenerator struct {
	chat     func(messages []generator.Message, tools []toolhandler.ToolSpec) (generator.Completion, error)
	generate func(prompt string) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f.generate(prompt)
}

func (f *fakeGenerator) Chat(ctx context.Context, messages []generator.Message, tools []toolhandler.ToolSpec) (generator.Completion, error) {
	return f.chat(messages, tools)
}

type fakeTool struct {
	content string
	err     error
	calls   int
}

func (f *fakeTool) Spec() toolhandler.ToolSpec {
	return toolhandler.ToolSpec{
		Name:        "financial_data_search",
		Description: "Searches the user's financial data.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
			},
		},
	}
}

func (f *fakeTool) Invoke(ctx context.Context, req toolhandler.ToolRequest) (toolhandler.ToolResponse, error) {
	f.calls++
	if f.err != nil {
		return toolhandler.ToolResponse{}, f.err
	}
	return toolhandler.ToolResponse{Content: f.content}, nil
}

func searchCall(query string) generator.Completion {
	return generator.Completion{
		ToolCalls: []generator.ToolCall{
			{
				Id:        "call-1",
				Name:      "financial_data_search",
				Arguments: map[string]any{"query": query},
			},
		},
	}
}

func isGradePrompt(prompt string) bool {
	return strings.Contains(prompt, "grader assessing relevance")
}

func isRewritePrompt(prompt string) bool {
	return strings.Contains(prompt, "Formulate an improved question")
}

func TestDirectAnswerSkipsRetrieval(t *testing.T) {
	tool := &fakeTool{}
	gen := &fakeGenerator{
		chat: func(messages []generator.Message, tools []toolhandler.ToolSpec) (generator.Completion, error) {
			return generator.Completion{Content: "I cannot check the weather."}, nil
		},
		generate: func(prompt string) (string, error) {
			t.Fatalf("unexpected Generate call: %s", prompt)
			return "", nil
		},
	}

	machine := NewMachine(Config{Generator: gen, Tool: tool})

	result, err := machine.Run(context.Background(), nil, "What's the weather?")
	require.NoError(t, err)

	assert.Equal(t, "I cannot check the weather.", result.Answer)
	assert.Zero(t, tool.calls)

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, NodeAgent, last.Node)
}

func TestGradingGate(t *testing.T) {
	tests := []struct {
		name         string
		graderOutput string
		wantNode     Node
	}{
		{name: "exact yes generates", graderOutput: "yes", wantNode: NodeGenerate},
		{name: "uppercase yes generates", graderOutput: " YES ", wantNode: NodeGenerate},
		{name: "no rewrites", graderOutput: "no", wantNode: NodeRewrite},
		{name: "partial credit rewrites", graderOutput: "mostly yes", wantNode: NodeRewrite},
		{name: "malformed output rewrites", graderOutput: `{"binary_score": 0.7}`, wantNode: NodeRewrite},
		{name: "empty output rewrites", graderOutput: "", wantNode: NodeRewrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := &fakeTool{content: "some rows"}
			gen := &fakeGenerator{
				chat: func(messages []generator.Message, tools []toolhandler.ToolSpec) (generator.Completion, error) {
					return searchCall("query"), nil
				},
				generate: func(prompt string) (string, error) {
					switch {
					case isGradePrompt(prompt):
						return tt.graderOutput, nil
					case isRewritePrompt(prompt):
						return "improved question", nil
					default:
						return "final answer", nil
					}
				},
			}

			machine := NewMachine(Config{Generator: gen, Tool: tool, MaxRewrites: 5})

			result, err := machine.Run(context.Background(), nil, "a question")
			require.NoError(t, err)

			var after Node
			for i, step := range result.Trace {
				if step.Node == NodeRetrieve {
					after = result.Trace[i+1].Node
					break
				}
			}
			assert.Equal(t, tt.wantNode, after)
		})
	}
}

func TestTerminationBound(t *testing.T) {
	maxRewrites := 2

	tool := &fakeTool{content: "nothing useful"}
	gen := &fakeGenerator{
		chat: func(messages []generator.Message, tools []toolhandler.ToolSpec) (generator.Completion, error) {
			// always asks for retrieval, never answers directly
			return searchCall("query"), nil
		},
		generate: func(prompt string) (string, error) {
			switch {
			case isGradePrompt(prompt):
				return "no", nil
			case isRewritePrompt(prompt):
				return "still not answerable", nil
			default:
				return "best-effort answer", nil
			}
		},
	}

	machine := NewMachine(Config{Generator: gen, Tool: tool, MaxRewrites: maxRewrites})

	result, err := machine.Run(context.Background(), nil, "unanswerable question")
	require.NoError(t, err)

	rewrites := 0
	for _, step := range result.Trace {
		if step.Node == NodeRewrite {
			rewrites++
		}
	}
	assert.Equal(t, maxRewrites, rewrites)

	// the bound forces generate even though every verdict was negative
	assert.Equal(t, NodeGenerate, result.Trace[len(result.Trace)-1].Node)
	assert.Equal(t, "best-effort answer", result.Answer)
	assert.Equal(t, maxRewrites+1, tool.calls)
}

func TestRelevantRetrievalGeneratesGroundedAnswer(t *testing.T) {
	row := "Month: February\nDepartment: Marketing\nExpenses: $4,200"

	tool := &fakeTool{content: row}
	gen := &fakeGenerator{
		chat: func(messages []generator.Message, tools []toolhandler.ToolSpec) (generator.Completion, error) {
			require.Len(t, tools, 1)
			assert.Equal(t, "financial_data_search", tools[0].Name)
			return searchCall("marketing expenses February"), nil
		},
		generate: func(prompt string) (string, error) {
			if isGradePrompt(prompt) {
				assert.Contains(t, prompt, row)
				return "yes", nil
			}
			require.Contains(t, prompt, "4,200")
			return "Marketing expenses in February were $4,200.", nil
		},
	}

	machine := NewMachine(Config{Generator: gen, Tool: tool})

	result, err := machine.Run(context.Background(), nil, "What were marketing expenses in February?")
	require.NoError(t, err)

	assert.Contains(t, result.Answer, "4,200")

	nodes := make([]Node, 0, len(result.Trace))
	for _, step := range result.Trace {
		nodes = append(nodes, step.Node)
	}
	assert.Equal(t, []Node{NodeStart, NodeAgent, NodeRetrieve, NodeGenerate}, nodes)
}

func TestModelFailureFailsTheTurn(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{
			name: "agent call fails",
			gen: &fakeGenerator{
				chat: func(messages []generator.Message, tools []toolhandler.ToolSpec) (generator.Completion, error) {
					return generator.Completion{}, errors.New("timeout")
				},
				generate: func(prompt string) (string, error) { return "", nil },
			},
		},
		{
			name: "grader call fails",
			gen: &fakeGenerator{
				chat: func(messages []generator.Message, tools []toolhandler.ToolSpec) (generator.Completion, error) {
					return searchCall("query"), nil
				},
				generate: func(prompt string) (string, error) {
					return "", errors.New("timeout")
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := NewMachine(Config{Generator: tt.gen, Tool: &fakeTool{content: "rows"}})

			result, err := machine.Run(context.Background(), nil, "a question")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrModelUnavailable)
			assert.Nil(t, result)
		})
	}
}

func TestHistoryIsNotMutated(t *testing.T) {
	history := []generator.Message{
		{Role: generator.RoleHuman, Content: "earlier question"},
		{Role: generator.RoleAssistant, Content: "earlier answer"},
	}

	gen := &fakeGenerator{
		chat: func(messages []generator.Message, tools []toolhandler.ToolSpec) (generator.Completion, error) {
			return generator.Completion{Content: "new answer"}, nil
		},
		generate: func(prompt string) (string, error) { return "", nil },
	}

	machine := NewMachine(Config{Generator: gen, Tool: &fakeTool{}})

	result, err := machine.Run(context.Background(), history, "new question")
	require.NoError(t, err)

	require.Len(t, history, 2)
	assert.Len(t, result.Messages, 4)
	assert.Equal(t, "new answer", result.Messages[3].Content)
}

func TestEmptyInputIsRejected(t *testing.T) {
	machine := NewMachine(Config{
		Generator: &fakeGenerator{
			chat:     func([]generator.Message, []toolhandler.ToolSpec) (generator.Completion, error) { return generator.Completion{}, nil },
			generate: func(string) (string, error) { return "", nil },
		},
		Tool: &fakeTool{},
	})

	_, err := machine.Run(context.Background(), nil, "   ")
	require.Error(t, err)
}
