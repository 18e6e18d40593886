package google

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	genaiopt "google.golang.org/api/option"

	"github.com/finchat/finchat/embedder"
)

type googleEmbedder struct {
	options embedder.Options
	client  *genai.Client
}

func (e *googleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	model := e.client.EmbeddingModel(e.options.Model)
	rsp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}

	if rsp == nil || rsp.Embedding == nil || len(rsp.Embedding.Values) == 0 {
		return nil, errors.New("no response from Google")
	}

	return rsp.Embedding.Values, nil
}

func NewEmbedder(opts ...embedder.Option) embedder.Embedder {
	options := embedder.NewOptions(opts...)

	e := &googleEmbedder{
		options: options,
	}

	client, err := genai.NewClient(options.Context, genaiopt.WithAPIKey(options.ApiKey))
	if err != nil {
		detail := "failed to initialize google embedder"
		slog.ErrorContext(options.Context, detail, "error", err)
		panic(detail)
	}

	e.client = client

	return e
}
