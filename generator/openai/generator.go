package openai

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sashabaranov/go-openai"

	"github.com/finchat/finchat/generator"
	toolhandler "github.com/finchat/finchat/toolhandler"
)

type openAIGenerator struct {
	options generator.Options
	client  *openai.Client
}

func (g *openAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	fullPrompt := prompt
	if len(g.options.PromptPrefix) > 0 {
		fullPrompt = g.options.PromptPrefix + "\n" + prompt
	}

	req := openai.ChatCompletionRequest{
		Model: g.options.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fullPrompt,
			},
		},
	}

	rsp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}

	if len(rsp.Choices) == 0 || len(rsp.Choices[0].Message.Content) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	return rsp.Choices[0].Message.Content, nil
}

func (g *openAIGenerator) Chat(ctx context.Context, messages []generator.Message, tools []toolhandler.ToolSpec) (generator.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:    g.options.Model,
		Messages: toChatMessages(messages),
	}

	for _, spec := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.InputSchema,
			},
		})
	}

	rsp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return generator.Completion{}, err
	}

	if len(rsp.Choices) == 0 {
		return generator.Completion{}, errors.New("no response from OpenAI")
	}

	choice := rsp.Choices[0].Message

	completion := generator.Completion{
		Content: choice.Content,
	}

	for _, call := range choice.ToolCalls {
		args := map[string]any{}
		if len(call.Function.Arguments) > 0 {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				continue
			}
		}
		completion.ToolCalls = append(completion.ToolCalls, generator.ToolCall{
			Id:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}

	if len(completion.Content) == 0 && len(completion.ToolCalls) == 0 {
		return generator.Completion{}, errors.New("no response from OpenAI")
	}

	return completion, nil
}

func toChatMessages(messages []generator.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case generator.RoleHuman:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		case generator.RoleAssistant:
			converted := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, call := range msg.ToolCalls {
				argsJson, _ := json.Marshal(call.Arguments)
				converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
					ID:   call.Id,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(argsJson),
					},
				})
			}
			out = append(out, converted)
		case generator.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				Name:       msg.ToolName,
				ToolCallID: msg.ToolCallId,
			})
		}
	}

	return out
}

func NewGenerator(opts ...generator.Option) generator.Generator {
	options := generator.NewOptions(opts...)

	g := &openAIGenerator{
		options: options,
	}

	client := openai.NewClient(options.ApiKey)

	g.client = client

	return g
}
