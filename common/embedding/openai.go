package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

type OpenAIProvider struct {
	client     openai.Client
	model      string
	dimensions int
}

func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = openai.EmbeddingModelTextEmbedding3Small
	}

	return &OpenAIProvider{
		client:     openai.NewClient(opts...),
		model:      model,
		dimensions: cfg.Dimensions,
	}, nil
}

func (p *OpenAIProvider) Name() string {
	return "openai:" + p.model
}

func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: p.model,
	}
	if p.dimensions > 0 {
		params.Dimensions = openai.Int(int64(p.dimensions))
	}

	start := time.Now()
	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: openai embeddings: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: openai returned no embedding", ErrEmbeddingFailed)
	}

	slog.DebugContext(ctx, "embedding created",
		"model", p.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens)

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, f := range raw {
		vec[i] = float32(f)
	}
	return vec, nil
}
