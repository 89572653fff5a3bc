package browser

import (
	"context"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/interfaces"
)

// FetcherConfig holds per-fetch settings
type FetcherConfig struct {
	NavigationTimeout  time.Duration
	JavaScriptWaitTime time.Duration
	UserAgents         []string
	BlockedResources   []string
}

// Fetcher renders pages through the browser pool. One fetch checks out
// one session for its whole duration.
type Fetcher struct {
	config FetcherConfig
	pool   *Pool
	mu     sync.Mutex
	rng    *rand.Rand
	logger arbor.ILogger
}

// NewFetcher creates a pool-backed page fetcher
func NewFetcher(config FetcherConfig, pool *Pool, logger arbor.ILogger) *Fetcher {
	if config.NavigationTimeout <= 0 {
		config.NavigationTimeout = 30 * time.Second
	}
	return &Fetcher{
		config: config,
		pool:   pool,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger,
	}
}

// Fetch navigates to the URL and returns the rendered page. Failures are
// returned as *NavError so callers can decide on retries.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*interfaces.FetchOutcome, error) {
	session, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, &NavError{Kind: NavErrTimeout, URL: url, Err: err}
	}

	outcome, navErr := f.fetchWithSession(ctx, session, url)

	// Timeouts and render failures can leave the tab wedged
	poisoned := navErr != nil && (navErr.Kind == NavErrTimeout || navErr.Kind == NavErrRender)
	f.pool.Release(session, poisoned)

	if navErr != nil {
		f.logger.Warn().
			Str("url", url).
			Str("error_kind", string(navErr.Kind)).
			Err(navErr.Err).
			Msg("Page fetch failed")
		return nil, navErr
	}
	return outcome, nil
}

func (f *Fetcher) fetchWithSession(ctx context.Context, session *Session, url string) (*interfaces.FetchOutcome, *NavError) {
	start := time.Now()

	// The session context owns the tab; the caller context and the
	// navigation timeout both bound the run.
	runCtx, cancel := context.WithTimeout(session.Context(), f.config.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var (
		statusMu   sync.Mutex
		httpStatus int
		finalURL   = url
	)

	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		statusMu.Lock()
		if httpStatus == 0 {
			httpStatus = int(resp.Response.Status)
			finalURL = resp.Response.URL
		}
		statusMu.Unlock()
	})

	tasks := chromedp.Tasks{
		network.Enable(),
	}
	if len(f.config.BlockedResources) > 0 {
		tasks = append(tasks, network.SetBlockedURLs(f.blockedPatterns()))
	}
	tasks = append(tasks,
		emulation.SetUserAgentOverride(f.pickUserAgent()),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(url),
	)
	if f.config.JavaScriptWaitTime > 0 {
		tasks = append(tasks, chromedp.Sleep(f.config.JavaScriptWaitTime))
	}

	var rawHTML, title string
	tasks = append(tasks,
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &rawHTML),
	)

	if err := chromedp.Run(runCtx, tasks); err != nil {
		return nil, classifyNavError(url, err)
	}

	statusMu.Lock()
	status := httpStatus
	resolved := finalURL
	statusMu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	if status >= 400 {
		return nil, &NavError{Kind: NavErrHTTP, URL: url, HTTPStatus: status}
	}

	elapsed := time.Since(start)
	f.logger.Debug().
		Str("url", url).
		Int("http_status", status).
		Int("html_bytes", len(rawHTML)).
		Dur("elapsed", elapsed).
		Msg("Page fetched")

	return &interfaces.FetchOutcome{
		RawHTML:    rawHTML,
		HTTPStatus: status,
		FinalURL:   resolved,
		Title:      title,
		Elapsed:    elapsed.Milliseconds(),
	}, nil
}

// pickUserAgent rotates through the configured user agents at random
func (f *Fetcher) pickUserAgent() string {
	if len(f.config.UserAgents) == 0 {
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config.UserAgents[f.rng.Intn(len(f.config.UserAgents))]
}

// blockedPatterns converts resource categories into URL patterns Chrome
// understands.
func (f *Fetcher) blockedPatterns() []string {
	var patterns []string
	for _, resource := range f.config.BlockedResources {
		switch strings.ToLower(resource) {
		case "image", "images":
			patterns = append(patterns, "*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.ico")
		case "font", "fonts":
			patterns = append(patterns, "*.woff", "*.woff2", "*.ttf", "*.otf", "*.eot")
		case "media", "video":
			patterns = append(patterns, "*.mp4", "*.webm", "*.mp3", "*.avi")
		default:
			patterns = append(patterns, resource)
		}
	}
	return patterns
}
