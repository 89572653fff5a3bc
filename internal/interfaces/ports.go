package interfaces

import (
	"context"

	"github.com/ternarybob/vigil/internal/models"
)

// Notifier is the outbound alert port. Emit is fire-and-forget with
// best-effort delivery; the core never blocks on it. Routing, retries,
// rate-limiting, and deduplication belong to implementations.
type Notifier interface {
	Emit(alert *models.Alert)
}

// Embedder produces fixed-dimension semantic embeddings. Deterministic for a
// fixed model; callers must tolerate errors by proceeding without vectors.
type Embedder interface {
	Embed(ctx context.Context, text string, kind models.VectorKind) ([]float32, error)
	Dimension() int
}

// LLMVerdict is the parsed structured reply from the LLM classifier
type LLMVerdict struct {
	Verdict    models.Verdict
	Confidence float64
	Reasoning  string
}

// PromptContext carries everything the LLM classifier needs to adjudicate
type PromptContext struct {
	SiteURL         string
	ChangedExcerpts []string
	StaticContext   []string
	PriorVerdict    models.Verdict
	Title           string
}

// LLMClassifier adjudicates suspicious changes via a language model.
// Errors (timeout, malformed reply, rate limit) are returned to the caller,
// which treats them as abstention.
type LLMClassifier interface {
	Classify(ctx context.Context, prompt PromptContext) (*LLMVerdict, error)
}

// FetchOutcome is the result of rendering a page in the browser pool
type FetchOutcome struct {
	RawHTML    string
	HTTPStatus int
	FinalURL   string
	Title      string
	Elapsed    int64 // Milliseconds spent navigating and rendering
}

// Fetcher renders pages via the browser pool
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchOutcome, error)
}
