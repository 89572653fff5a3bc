package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

const systemPrompt = `You are a website defacement analyst. You receive a description of how a monitored page changed and decide whether the change is a defacement.

Reply with a single JSON object and nothing else:
{"verdict": "benign" | "suspicious" | "defacement" | "unclear", "confidence": <0.0-1.0>, "reasoning": "<one or two sentences>"}

Defacement indicators: attacker handles, hacktivist slogans, destroyed layout, replaced titles, threats. Benign indicators: product updates, redesigns, content refreshes, maintenance notices.`

// ClaudeService classifies changed pages through the Anthropic API
type ClaudeService struct {
	config  *common.ClaudeConfig
	logger  arbor.ILogger
	client  *anthropic.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewClaudeService creates the Claude-backed classifier
func NewClaudeService(claudeConfig *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if claudeConfig.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY or claude.api_key)")
	}

	if claudeConfig.Model == "" {
		claudeConfig.Model = "claude-sonnet-4-20250514"
	}

	timeout, err := time.ParseDuration(claudeConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", claudeConfig.Timeout, err)
	}

	interval, err := time.ParseDuration(claudeConfig.RateLimit)
	if err != nil || interval <= 0 {
		interval = time.Second
	}

	client := anthropic.NewClient(
		option.WithAPIKey(claudeConfig.APIKey),
	)

	service := &ClaudeService{
		config:  claudeConfig,
		logger:  logger,
		client:  &client,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		timeout: timeout,
	}

	logger.Debug().
		Str("model", claudeConfig.Model).
		Dur("timeout", timeout).
		Dur("rate_limit", interval).
		Msg("Claude classifier service initialized")

	return service, nil
}

// Classify sends the prompt context and parses the structured verdict
func (s *ClaudeService) Classify(ctx context.Context, prompt interfaces.PromptContext) (*interfaces.LLMVerdict, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait cancelled: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	raw, err := s.generateCompletion(timeoutCtx, buildUserPrompt(prompt))
	if err != nil {
		s.logger.Error().Err(err).Str("site_url", prompt.SiteURL).Msg("Claude classification failed")
		return nil, err
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("raw", truncate(raw, 200)).Msg("Claude reply was not parseable")
		return nil, err
	}

	s.logger.Debug().
		Str("site_url", prompt.SiteURL).
		Str("verdict", string(verdict.Verdict)).
		Float64("confidence", verdict.Confidence).
		Dur("duration", time.Since(start)).
		Msg("Claude classification completed")

	return &verdict, nil
}

func (s *ClaudeService) generateCompletion(ctx context.Context, userPrompt string) (string, error) {
	maxTokens := s.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}
	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Claude API")
	}
	return response.String(), nil
}

// HealthCheck verifies the client is initialized
func (s *ClaudeService) HealthCheck(_ context.Context) error {
	if s.client == nil {
		return fmt.Errorf("Claude client is not initialized")
	}
	return nil
}

// Close releases the client
func (s *ClaudeService) Close() error {
	s.client = nil
	return nil
}

func buildUserPrompt(prompt interfaces.PromptContext) string {
	var sb strings.Builder
	sb.WriteString("Site: ")
	sb.WriteString(prompt.SiteURL)
	sb.WriteString("\n")
	if prompt.Title != "" {
		sb.WriteString("Current page title: ")
		sb.WriteString(prompt.Title)
		sb.WriteString("\n")
	}
	if prompt.PriorVerdict != "" {
		sb.WriteString("Previous verdict for this site: ")
		sb.WriteString(string(prompt.PriorVerdict))
		sb.WriteString("\n")
	}
	for _, line := range prompt.StaticContext {
		sb.WriteString("Site context: ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if len(prompt.ChangedExcerpts) > 0 {
		sb.WriteString("\nChanged content excerpts:\n")
		for _, excerpt := range prompt.ChangedExcerpts {
			sb.WriteString("---\n")
			sb.WriteString(excerpt)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

type verdictReply struct {
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// parseVerdict extracts the JSON object from the reply, tolerating code
// fences and surrounding prose.
func parseVerdict(raw string) (interfaces.LLMVerdict, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return interfaces.LLMVerdict{}, fmt.Errorf("reply contains no JSON object")
	}

	var reply verdictReply
	if err := json.Unmarshal([]byte(raw[start:end+1]), &reply); err != nil {
		return interfaces.LLMVerdict{}, fmt.Errorf("failed to parse verdict JSON: %w", err)
	}

	verdict := models.Verdict(strings.ToLower(strings.TrimSpace(reply.Verdict)))
	switch verdict {
	case models.VerdictBenign, models.VerdictSuspicious, models.VerdictDefacement, models.VerdictUnclear:
	default:
		return interfaces.LLMVerdict{}, fmt.Errorf("unknown verdict %q in reply", reply.Verdict)
	}

	confidence := reply.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return interfaces.LLMVerdict{
		Verdict:    verdict,
		Confidence: confidence,
		Reasoning:  strings.TrimSpace(reply.Reasoning),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
