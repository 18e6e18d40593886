package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/finchat/finchat/generator"
	toolhandler "github.com/finchat/finchat/toolhandler"
)

type anthropicGenerator struct {
	options generator.Options
	client  *anthropic.Client
}

func (g *anthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	fullPrompt := prompt
	if len(g.options.PromptPrefix) > 0 {
		fullPrompt = g.options.PromptPrefix + "\n" + prompt
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.options.Model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(fullPrompt)),
		},
	}

	rsp, err := g.client.Messages.New(ctx, req)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, content := range rsp.Content {
		if text, ok := content.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}

	result := b.String()
	if len(result) == 0 {
		return "", errors.New("no response from Anthropic")
	}

	return result, nil
}

func (g *anthropicGenerator) Chat(ctx context.Context, messages []generator.Message, tools []toolhandler.ToolSpec) (generator.Completion, error) {
	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.options.Model),
		MaxTokens: 1024,
		Messages:  toMessageParams(messages),
	}

	for _, spec := range tools {
		tool := anthropic.ToolParam{
			Name:        spec.Name,
			Description: anthropic.String(spec.Description),
		}
		if props, ok := spec.InputSchema["properties"]; ok {
			tool.InputSchema = anthropic.ToolInputSchemaParam{
				Properties: props,
			}
		}
		req.Tools = append(req.Tools, anthropic.ToolUnionParam{OfTool: &tool})
	}

	rsp, err := g.client.Messages.New(ctx, req)
	if err != nil {
		return generator.Completion{}, err
	}

	var b strings.Builder
	var calls []generator.ToolCall

	for _, content := range rsp.Content {
		switch block := content.AsAny().(type) {
		case anthropic.TextBlock:
			b.WriteString(block.Text)
		case anthropic.ToolUseBlock:
			args := map[string]any{}
			raw, _ := json.Marshal(block.Input)
			if err := json.Unmarshal(raw, &args); err != nil {
				continue
			}
			calls = append(calls, generator.ToolCall{
				Id:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}

	completion := generator.Completion{
		Content:   b.String(),
		ToolCalls: calls,
	}

	if len(completion.Content) == 0 && len(completion.ToolCalls) == 0 {
		return generator.Completion{}, errors.New("no response from Anthropic")
	}

	return completion, nil
}

// toMessageParams flattens the history into alternating user/assistant
// messages. Tool results are carried as user text since the grading and
// answer steps re-prompt with the tool output directly.
func toMessageParams(messages []generator.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case generator.RoleHuman:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case generator.RoleAssistant:
			if len(msg.Content) > 0 {
				out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			}
		case generator.RoleTool:
			text := fmt.Sprintf("Result of tool %s:\n%s", msg.ToolName, msg.Content)
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
		}
	}

	return out
}

func NewGenerator(opts ...generator.Option) generator.Generator {
	options := generator.NewOptions(opts...)

	g := &anthropicGenerator{
		options: options,
	}

	client := anthropic.NewClient(
		anthropicopt.WithAPIKey(options.ApiKey),
	)

	g.client = &client

	return g
}
