package embedding

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// HashProviderName is the name HashProvider reports.
const HashProviderName = "local-hash"

// HashProvider is an offline embedder based on signed feature hashing of word
// unigrams and bigrams. Vectors are L2-normalized, so cosine similarity reflects
// shared vocabulary. It never fails and is meant for the Fallback tier.
type HashProvider struct {
	dims int
}

// NewHashProvider creates a hash embedder producing vectors of length dims.
func NewHashProvider(dims int) *HashProvider {
	if dims <= 0 {
		dims = 1536
	}
	return &HashProvider{dims: dims}
}

func (h *HashProvider) Name() string    { return HashProviderName }
func (h *HashProvider) Dimensions() int { return h.dims }

// GetEmbeddings embeds each text independently.
func (h *HashProvider) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(text)
	}
	return out, nil
}

// HealthCheck always reports healthy.
func (h *HashProvider) HealthCheck(context.Context) (*HealthStatus, error) {
	return &HealthStatus{
		Healthy:   true,
		Provider:  HashProviderName,
		Details:   map[string]any{"dimensions": h.dims},
		CheckedAt: time.Now(),
	}, nil
}

func (h *HashProvider) embed(text string) []float32 {
	vec := make([]float32, h.dims)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for i, tok := range tokens {
		h.add(vec, tok)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (h *HashProvider) add(vec []float32, feature string) {
	sum := xxhash.Sum64String(feature)
	idx := sum % uint64(h.dims)
	// top bit picks the sign
	if sum>>63 == 1 {
		vec[idx]--
	} else {
		vec[idx]++
	}
}
