// Package turn drives one conversational turn through a small cyclic
// control graph: decide to retrieve or answer, grade the retrieval,
// rewrite the query on a negative verdict, and generate the final answer,
// with a hard bound on rewrite cycles.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/finchat/finchat/generator"
	toolhandler "github.com/finchat/finchat/toolhandler"
)

// ErrModelUnavailable wraps any language-model failure. The whole turn
// fails and the caller persists nothing for it.
var ErrModelUnavailable = errors.New("language model unavailable")

const defaultMaxRewrites = 2

// Config carries the machine's dependencies explicitly so it can be run
// against fake models and tools.
type Config struct {
	Generator     generator.Generator
	Tool          toolhandler.ToolHandler
	MaxRewrites   int
	GradePrompt   string
	RewritePrompt string
	AnswerPrompt  string
	Logger        *slog.Logger
}

type Machine struct {
	config Config
}

func NewMachine(config Config) *Machine {
	if config.Generator == nil {
		panic("generator is required")
	}

	if config.Tool == nil {
		panic("tool is required")
	}

	if config.MaxRewrites <= 0 {
		config.MaxRewrites = defaultMaxRewrites
	}

	if len(config.GradePrompt) == 0 {
		config.GradePrompt = defaultGradePrompt
	}

	if len(config.RewritePrompt) == 0 {
		config.RewritePrompt = defaultRewritePrompt
	}

	if len(config.AnswerPrompt) == 0 {
		config.AnswerPrompt = defaultAnswerPrompt
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Machine{config: config}
}

// Run executes one turn. history is the thread's prior message sequence
// and userText the incoming question; the returned Result holds the full
// updated sequence, the answer (its last message), and the per-node trace.
func (m *Machine) Run(ctx context.Context, history []generator.Message, userText string) (*Result, error) {
	question := strings.TrimSpace(userText)
	if len(question) == 0 {
		return nil, errors.New("user input is required")
	}

	state := &State{
		Messages: append(snapshot(history), generator.Message{
			Role:    generator.RoleHuman,
			Content: question,
		}),
	}

	result := &Result{}
	record := func(node Node) {
		result.Trace = append(result.Trace, Step{
			Node:     node,
			Messages: snapshot(state.Messages),
		})
	}

	record(NodeStart)

	node := NodeAgent
	for node != NodeEnd {
		current := node

		var err error
		switch current {
		case NodeAgent:
			node, err = m.agent(ctx, state)
		case NodeRetrieve:
			node, err = m.retrieve(ctx, state, question)
		case NodeRewrite:
			node, err = m.rewrite(ctx, state, question)
		case NodeGenerate:
			node, err = m.generate(ctx, state, question)
		default:
			err = fmt.Errorf("unknown node: %s", current)
		}
		if err != nil {
			return nil, err
		}

		record(current)
	}

	result.Messages = state.Messages
	result.Answer = state.Messages[len(state.Messages)-1].Content

	return result, nil
}

// agent asks the model to answer directly or request the retrieval tool.
func (m *Machine) agent(ctx context.Context, state *State) (Node, error) {
	completion, err := m.config.Generator.Chat(ctx, state.Messages, []toolhandler.ToolSpec{m.config.Tool.Spec()})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	if len(completion.ToolCalls) > 0 {
		state.Messages = append(state.Messages, generator.Message{
			Role:      generator.RoleAssistant,
			ToolCalls: completion.ToolCalls[:1],
		})
		return NodeRetrieve, nil
	}

	state.Messages = append(state.Messages, generator.Message{
		Role:    generator.RoleAssistant,
		Content: completion.Content,
	})

	return NodeEnd, nil
}

// retrieve invokes the tool the agent requested, appends the result, and
// grades it to pick the successor node.
func (m *Machine) retrieve(ctx context.Context, state *State, question string) (Node, error) {
	last := state.Messages[len(state.Messages)-1]
	if len(last.ToolCalls) == 0 {
		return "", errors.New("retrieve reached without a tool call")
	}
	call := last.ToolCalls[0]

	rsp, err := m.config.Tool.Invoke(ctx, toolhandler.ToolRequest{Arguments: call.Arguments})
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", call.Name, err)
	}

	state.Messages = append(state.Messages, generator.Message{
		Role:       generator.RoleTool,
		Content:    rsp.Content,
		ToolName:   call.Name,
		ToolCallId: call.Id,
	})

	verdict, err := m.grade(ctx, question, rsp.Content)
	if err != nil {
		return "", err
	}
	state.Verdict = verdict

	if verdict == VerdictRelevant {
		return NodeGenerate, nil
	}

	if state.Rewrites >= m.config.MaxRewrites {
		m.config.Logger.InfoContext(ctx, "rewrite bound reached, generating best-effort answer", "rewrites", state.Rewrites)
		return NodeGenerate, nil
	}

	return NodeRewrite, nil
}

// grade asks the model for a binary relevance verdict. Only an exact
// "yes" counts as relevant; malformed output routes to rewrite rather
// than failing the turn.
func (m *Machine) grade(ctx context.Context, question string, docs string) (Verdict, error) {
	raw, err := m.config.Generator.Generate(ctx, gradePrompt(m.config.GradePrompt, question, docs))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	if strings.EqualFold(strings.TrimSpace(raw), "yes") {
		return VerdictRelevant, nil
	}

	return VerdictNotRelevant, nil
}

// rewrite reformulates the original question and appends the improved
// question for the next agent pass. The failed retrieval is not shown.
func (m *Machine) rewrite(ctx context.Context, state *State, question string) (Node, error) {
	improved, err := m.config.Generator.Generate(ctx, rewritePrompt(m.config.RewritePrompt, question))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	state.Messages = append(state.Messages, generator.Message{
		Role:    generator.RoleHuman,
		Content: strings.TrimSpace(improved),
	})
	state.Rewrites++

	return NodeAgent, nil
}

// generate produces the grounded final answer from the original question
// and the latest tool result.
func (m *Machine) generate(ctx context.Context, state *State, question string) (Node, error) {
	answer, err := m.config.Generator.Generate(ctx, answerPrompt(m.config.AnswerPrompt, question, lastToolContent(state)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	state.Messages = append(state.Messages, generator.Message{
		Role:    generator.RoleAssistant,
		Content: strings.TrimSpace(answer),
	})

	return NodeEnd, nil
}

func lastToolContent(state *State) string {
	for i := len(state.Messages) - 1; i >= 0; i-- {
		if state.Messages[i].Role == generator.RoleTool {
			return state.Messages[i].Content
		}
	}
	return ""
}
