package classifier

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// LLMAdapter runs the language-model classifier with a bounded deadline
// and converts failures into abstentions so the ensemble can proceed.
type LLMAdapter struct {
	client  interfaces.LLMClassifier
	timeout time.Duration
	logger  arbor.ILogger
}

// NewLLMAdapter wraps an LLM client for ensemble use
func NewLLMAdapter(client interfaces.LLMClassifier, timeout time.Duration, logger arbor.ILogger) *LLMAdapter {
	return &LLMAdapter{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// Classify sends the prompt context and parses the structured verdict.
// Timeout, malformed replies and rate limits all surface as abstention.
func (a *LLMAdapter) Classify(ctx context.Context, prompt interfaces.PromptContext) models.SubResult {
	if a.client == nil {
		return models.SubResult{
			Kind:      models.ClassifierLLM,
			Verdict:   models.VerdictUnclear,
			Abstained: true,
			Reasoning: "no LLM client configured",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	verdict, err := a.client.Classify(ctx, prompt)
	if err != nil {
		a.logger.Warn().Err(err).Str("site_url", prompt.SiteURL).Msg("LLM classification failed, abstaining")
		return models.SubResult{
			Kind:      models.ClassifierLLM,
			Verdict:   models.VerdictUnclear,
			Abstained: true,
			Err:       err.Error(),
			Reasoning: "LLM call failed",
		}
	}

	return models.SubResult{
		Kind:       models.ClassifierLLM,
		Verdict:    verdict.Verdict,
		Confidence: verdict.Confidence,
		Reasoning:  verdict.Reasoning,
	}
}
