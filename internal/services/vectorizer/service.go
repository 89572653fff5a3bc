package vectorizer

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	sentenceRe   = regexp.MustCompile(`[.!?]+\s+`)
)

// Config holds vectorizer settings
type Config struct {
	// MaxContentLength caps input text before embedding
	MaxContentLength int
	// ChunkThreshold is the length above which text is split into chunks
	// and the chunk embeddings are mean-pooled.
	ChunkThreshold int
}

// Service prepares text and produces embeddings through the configured
// embedder. Embedding failures are reported, never fatal; callers treat a
// missing vector as a degraded signal.
type Service struct {
	config   Config
	embedder interfaces.Embedder
	logger   arbor.ILogger
}

// NewService creates a vectorizer backed by the given embedder
func NewService(config Config, embedder interfaces.Embedder, logger arbor.ILogger) *Service {
	return &Service{
		config:   config,
		embedder: embedder,
		logger:   logger,
	}
}

// Dimension reports the embedding dimension of the backing model
func (s *Service) Dimension() int {
	return s.embedder.Dimension()
}

// Vectorize embeds prepared text. Text longer than the chunk threshold is
// split on sentence boundaries and the chunk vectors are averaged
// element-wise, so the result dimension is stable regardless of length.
func (s *Service) Vectorize(ctx context.Context, text string, kind models.VectorKind) ([]float32, error) {
	prepared := s.Prepare(text)
	if prepared == "" {
		return nil, fmt.Errorf("no embeddable text after preparation")
	}

	if len(prepared) <= s.config.ChunkThreshold {
		return s.embedder.Embed(ctx, prepared, kind)
	}

	chunks := s.chunk(prepared)
	s.logger.Debug().
		Str("kind", string(kind)).
		Int("text_length", len(prepared)).
		Int("chunks", len(chunks)).
		Msg("Embedding chunked text")

	var sum []float64
	embedded := 0
	for _, chunk := range chunks {
		vec, err := s.embedder.Embed(ctx, chunk, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %d of %d: %w", embedded+1, len(chunks), err)
		}
		if sum == nil {
			sum = make([]float64, len(vec))
		}
		if len(vec) != len(sum) {
			return nil, fmt.Errorf("embedder returned inconsistent dimensions: %d vs %d", len(vec), len(sum))
		}
		for i, v := range vec {
			sum[i] += float64(v)
		}
		embedded++
	}

	mean := make([]float32, len(sum))
	for i, v := range sum {
		mean[i] = float32(v / float64(embedded))
	}
	return mean, nil
}

// Prepare strips residual markup, lowercases, collapses whitespace and
// truncates to the configured maximum.
func (s *Service) Prepare(text string) string {
	cleaned := tagRe.ReplaceAllString(text, " ")
	cleaned = strings.ToLower(cleaned)
	cleaned = strings.TrimSpace(whitespaceRe.ReplaceAllString(cleaned, " "))

	if s.config.MaxContentLength > 0 && len(cleaned) > s.config.MaxContentLength {
		cleaned = cleaned[:s.config.MaxContentLength]
	}
	return cleaned
}

// chunk splits text on sentence boundaries into pieces no longer than the
// chunk threshold. A single sentence exceeding the threshold is hard-split.
func (s *Service) chunk(text string) []string {
	limit := s.config.ChunkThreshold
	if limit <= 0 {
		return []string{text}
	}

	var sentences []string
	last := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		sentences = append(sentences, text[last:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		sentences = append(sentences, text[last:])
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, sentence := range sentences {
		for len(sentence) > limit {
			flush()
			chunks = append(chunks, strings.TrimSpace(sentence[:limit]))
			sentence = sentence[limit:]
		}
		if current.Len()+len(sentence) > limit {
			flush()
		}
		current.WriteString(sentence)
	}
	flush()

	return chunks
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched dimensions or zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
