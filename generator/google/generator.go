package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	genaiopt "google.golang.org/api/option"

	"github.com/finchat/finchat/generator"
	toolhandler "github.com/finchat/finchat/toolhandler"
)

type googleGenerator struct {
	options generator.Options
	client  *genai.Client
}

func (g *googleGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	fullPrompt := prompt
	if len(g.options.PromptPrefix) > 0 {
		fullPrompt = g.options.PromptPrefix + "\n" + prompt
	}

	model := g.client.GenerativeModel(g.options.Model)
	rsp, err := model.GenerateContent(ctx, genai.Text(fullPrompt))
	if err != nil {
		return "", err
	}

	result := collectText(rsp)
	if len(result) == 0 {
		return "", errors.New("no response from Google")
	}

	return result, nil
}

func (g *googleGenerator) Chat(ctx context.Context, messages []generator.Message, tools []toolhandler.ToolSpec) (generator.Completion, error) {
	if len(messages) == 0 {
		return generator.Completion{}, errors.New("messages are required")
	}

	model := g.client.GenerativeModel(g.options.Model)

	for _, spec := range tools {
		model.Tools = append(model.Tools, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				{
					Name:        spec.Name,
					Description: spec.Description,
					Parameters:  toSchema(spec.InputSchema),
				},
			},
		})
	}

	history := toContents(messages[:len(messages)-1])

	cs := model.StartChat()
	cs.History = history

	last := messages[len(messages)-1]
	rsp, err := cs.SendMessage(ctx, toParts(last)...)
	if err != nil {
		return generator.Completion{}, err
	}

	completion := generator.Completion{}

	if len(rsp.Candidates) == 0 || rsp.Candidates[0].Content == nil {
		return generator.Completion{}, errors.New("no response from Google")
	}

	var b strings.Builder
	for _, part := range rsp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			b.WriteString(string(p))
		case genai.FunctionCall:
			completion.ToolCalls = append(completion.ToolCalls, generator.ToolCall{
				Name:      p.Name,
				Arguments: p.Args,
			})
		}
	}
	completion.Content = b.String()

	if len(completion.Content) == 0 && len(completion.ToolCalls) == 0 {
		return generator.Completion{}, errors.New("no response from Google")
	}

	return completion, nil
}

func toContents(messages []generator.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		role := "user"
		if msg.Role == generator.RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: toParts(msg),
		})
	}

	return out
}

func toParts(msg generator.Message) []genai.Part {
	if msg.Role == generator.RoleTool {
		return []genai.Part{
			genai.Text(fmt.Sprintf("Result of tool %s:\n%s", msg.ToolName, msg.Content)),
		}
	}
	return []genai.Part{genai.Text(msg.Content)}
}

// toSchema converts the flat JSON-schema maps our tool specs use into the
// genai schema type. Only string properties are expected.
func toSchema(inputSchema map[string]any) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{},
	}

	props, ok := inputSchema["properties"].(map[string]any)
	if !ok {
		return schema
	}

	for name, raw := range props {
		prop := &genai.Schema{Type: genai.TypeString}
		if detail, ok := raw.(map[string]any); ok {
			if desc, ok := detail["description"].(string); ok {
				prop.Description = desc
			}
		}
		schema.Properties[name] = prop
	}

	if required, ok := inputSchema["required"].([]string); ok {
		schema.Required = required
	}

	return schema
}

func collectText(rsp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, candidate := range rsp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return b.String()
}

func NewGenerator(opts ...generator.Option) generator.Generator {
	options := generator.NewOptions(opts...)

	g := &googleGenerator{
		options: options,
	}

	client, err := genai.NewClient(options.Context, genaiopt.WithAPIKey(options.ApiKey))
	if err != nil {
		detail := "failed to initialize google generator"
		slog.ErrorContext(options.Context, detail, "error", err)
		panic(detail)
	}

	g.client = client

	return g
}
