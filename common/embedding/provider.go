package embedding

import (
	"context"
	"errors"
)

var ErrEmbeddingFailed = errors.New("embedding failed")

// Provider turns text into a vector in the same space as the stored Context
// embeddings.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Name() string
}
