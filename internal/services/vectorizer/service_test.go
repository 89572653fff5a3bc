package vectorizer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/models"
)

// stubEmbedder returns a fixed vector and records calls
type stubEmbedder struct {
	vectors [][]float32
	calls   []string
	err     error
}

func (e *stubEmbedder) Embed(_ context.Context, text string, _ models.VectorKind) ([]float32, error) {
	e.calls = append(e.calls, text)
	if e.err != nil {
		return nil, e.err
	}
	idx := len(e.calls) - 1
	if idx >= len(e.vectors) {
		idx = len(e.vectors) - 1
	}
	return e.vectors[idx], nil
}

func (e *stubEmbedder) Dimension() int { return 3 }

func newTestService(embedder *stubEmbedder) *Service {
	return NewService(Config{
		MaxContentLength: 8000,
		ChunkThreshold:   100,
	}, embedder, arbor.NewLogger())
}

func TestVectorizeShortText(t *testing.T) {
	embedder := &stubEmbedder{vectors: [][]float32{{1, 2, 3}}}
	svc := newTestService(embedder)

	vec, err := svc.Vectorize(context.Background(), "short piece of text", models.VectorMain)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
	assert.Len(t, embedder.calls, 1)
}

func TestVectorizeChunkedMeanPooling(t *testing.T) {
	embedder := &stubEmbedder{vectors: [][]float32{{2, 0, 4}, {4, 2, 0}}}
	svc := newTestService(embedder)

	// two sentences, each ~80 chars, forcing two chunks at threshold 100
	text := strings.Repeat("alpha ", 13) + "one. " + strings.Repeat("beta ", 13) + "two."
	require.Greater(t, len(text), 100)

	vec, err := svc.Vectorize(context.Background(), text, models.VectorMain)
	require.NoError(t, err)
	require.Len(t, embedder.calls, 2)
	assert.InDelta(t, 3.0, float64(vec[0]), 0.001)
	assert.InDelta(t, 1.0, float64(vec[1]), 0.001)
	assert.InDelta(t, 2.0, float64(vec[2]), 0.001)
}

func TestVectorizeEmbedderFailure(t *testing.T) {
	embedder := &stubEmbedder{err: fmt.Errorf("quota exceeded")}
	svc := newTestService(embedder)

	_, err := svc.Vectorize(context.Background(), "some text", models.VectorMain)
	assert.Error(t, err)
}

func TestVectorizeEmptyText(t *testing.T) {
	embedder := &stubEmbedder{vectors: [][]float32{{1, 1, 1}}}
	svc := newTestService(embedder)

	_, err := svc.Vectorize(context.Background(), "   \n\t  ", models.VectorMain)
	assert.Error(t, err)
	assert.Empty(t, embedder.calls)
}

func TestPrepare(t *testing.T) {
	svc := newTestService(&stubEmbedder{vectors: [][]float32{{1}}})

	out := svc.Prepare("  <b>Hello</b>   WORLD \n today ")
	assert.Equal(t, "hello world today", out)
}

func TestPrepareTruncates(t *testing.T) {
	svc := NewService(Config{MaxContentLength: 10, ChunkThreshold: 100},
		&stubEmbedder{vectors: [][]float32{{1}}}, arbor.NewLogger())

	out := svc.Prepare(strings.Repeat("x", 50))
	assert.Len(t, out, 10)
}

func TestChunkSentenceBoundaries(t *testing.T) {
	svc := newTestService(&stubEmbedder{vectors: [][]float32{{1}}})

	first := strings.Repeat("a", 60) + ". "
	second := strings.Repeat("b", 60) + ". "
	chunks := svc.chunk(first + second)

	require.Len(t, chunks, 2)
	assert.True(t, strings.HasPrefix(chunks[0], "a"))
	assert.True(t, strings.HasPrefix(chunks[1], "b"))
}

func TestChunkOversizedSentence(t *testing.T) {
	svc := newTestService(&stubEmbedder{vectors: [][]float32{{1}}})

	chunks := svc.chunk(strings.Repeat("x", 250))
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 100)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"mismatched dims", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 2}, 0.0},
		{"empty", nil, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 0.001)
		})
	}
}
