package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/models"
)

// GeminiService produces embeddings through the Google Gemini API
type GeminiService struct {
	config    *common.GeminiConfig
	logger    arbor.ILogger
	client    *genai.Client
	limiter   *rate.Limiter
	dimension int
}

// NewGeminiService creates the Gemini embedder
func NewGeminiService(ctx context.Context, geminiConfig *common.GeminiConfig, dimension int, logger arbor.ILogger) (*GeminiService, error) {
	if geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY or gemini.api_key)")
	}

	if geminiConfig.Model == "" {
		geminiConfig.Model = "gemini-embedding-001"
	}
	if dimension <= 0 {
		dimension = 768
	}

	interval, err := time.ParseDuration(geminiConfig.RateLimit)
	if err != nil || interval <= 0 {
		interval = time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &GeminiService{
		config:    geminiConfig,
		logger:    logger,
		client:    client,
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		dimension: dimension,
	}

	logger.Debug().
		Str("model", geminiConfig.Model).
		Int("dimension", dimension).
		Dur("rate_limit", interval).
		Msg("Gemini embedding service initialized")

	return service, nil
}

// Dimension reports the configured output dimensionality
func (s *GeminiService) Dimension() int {
	return s.dimension
}

// Embed generates an embedding for the given text
func (s *GeminiService) Embed(ctx context.Context, text string, kind models.VectorKind) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait cancelled: %w", err)
	}

	outputDim := int32(s.dimension)
	embeddingConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	start := time.Now()
	result, err := s.client.Models.EmbedContent(ctx, s.config.Model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, embeddingConfig)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	var embedding []float32
	if result != nil && len(result.Embeddings) > 0 {
		embedding = result.Embeddings[0].Values
	}
	if embedding == nil {
		return nil, fmt.Errorf("no embedding returned from API")
	}
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.dimension, len(embedding))
	}

	s.logger.Debug().
		Str("kind", string(kind)).
		Int("text_length", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Embedding generated")

	return embedding, nil
}
