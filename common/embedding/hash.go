package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashProvider embeds text by feature hashing its lower-cased word tokens into
// a fixed number of buckets and normalizing to unit length. It needs no
// network and is deterministic, which makes it the provider for fixtures,
// tests and offline development. Texts sharing words land close together.
type HashProvider struct {
	dimensions int
}

func NewHashProvider(dimensions int) (*HashProvider, error) {
	if dimensions < 1 {
		return nil, fmt.Errorf("hash embedding dimensions must be positive, got %d", dimensions)
	}
	return &HashProvider{dimensions: dimensions}, nil
}

func (p *HashProvider) Name() string {
	return fmt.Sprintf("hash:%d", p.dimensions)
}

func (p *HashProvider) Dimensions() int {
	return p.dimensions
}

func (p *HashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	vec := make([]float32, p.dimensions)
	for _, tok := range Tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		vec[int(sum%uint32(p.dimensions))] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}

// Tokenize splits text into lower-cased runs of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
