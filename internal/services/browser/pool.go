package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// Session is one pooled browser context. Sessions are checked out
// exclusively; a session that misbehaved is marked poisoned on release
// and replaced rather than returned to the pool.
type Session struct {
	ctx             context.Context
	cancel          context.CancelFunc
	allocatorCancel context.CancelFunc
	index           int
}

// Context returns the chromedp browser context for running tasks
func (s *Session) Context() context.Context {
	return s.ctx
}

// PoolConfig holds browser pool settings
type PoolConfig struct {
	PoolSize  int
	Headless  bool
	NoSandbox bool
	UserAgent string
}

// Pool manages a fixed set of Chrome browser contexts handed out in FIFO
// order. Acquisition blocks until a session frees up or the caller's
// context expires.
type Pool struct {
	config   PoolConfig
	sessions chan *Session
	mu       sync.Mutex
	created  int
	closed   bool
	logger   arbor.ILogger
}

// NewPool creates an uninitialized browser pool
func NewPool(config PoolConfig, logger arbor.ILogger) *Pool {
	if config.PoolSize <= 0 {
		config.PoolSize = 3
	}
	return &Pool{
		config:   config,
		sessions: make(chan *Session, config.PoolSize),
		logger:   logger,
	}
}

// Start launches the browser instances. Partial startup is tolerated as
// long as at least one session comes up.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.created > 0 {
		return fmt.Errorf("browser pool already started")
	}

	p.logger.Info().
		Int("pool_size", p.config.PoolSize).
		Bool("headless", p.config.Headless).
		Msg("Starting browser pool")

	var lastErr error
	for i := 0; i < p.config.PoolSize; i++ {
		session, err := p.newSession(ctx, i)
		if err != nil {
			lastErr = err
			p.logger.Warn().Err(err).Int("session_index", i).Msg("Failed to create browser session")
			continue
		}
		p.sessions <- session
		p.created++
	}

	if p.created == 0 {
		return fmt.Errorf("failed to create any browser sessions: %w", lastErr)
	}
	if p.created < p.config.PoolSize {
		p.logger.Warn().
			Int("requested", p.config.PoolSize).
			Int("created", p.created).
			Msg("Browser pool started with fewer sessions than requested")
	}

	return nil
}

// newSession creates and smoke-tests one browser instance
func (p *Pool) newSession(ctx context.Context, index int) (*Session, error) {
	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.config.Headless),
		chromedp.Flag("no-sandbox", p.config.NoSandbox),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if p.config.UserAgent != "" {
		allocatorOpts = append(allocatorOpts, chromedp.UserAgent(p.config.UserAgent))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("browser session failed startup test: %w", err)
	}

	select {
	case <-ctx.Done():
		browserCancel()
		allocatorCancel()
		return nil, ctx.Err()
	default:
	}

	return &Session{
		ctx:             browserCtx,
		cancel:          browserCancel,
		allocatorCancel: allocatorCancel,
		index:           index,
	}, nil
}

// Acquire checks out a session, blocking until one is free or ctx expires
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("browser pool is closed")
	}
	p.mu.Unlock()

	select {
	case session := <-p.sessions:
		return session, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for browser session: %w", ctx.Err())
	}
}

// Release returns a session to the pool. A poisoned session is torn down
// and replaced with a fresh one so pool capacity does not shrink.
func (p *Pool) Release(session *Session, poisoned bool) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed {
		session.cancel()
		session.allocatorCancel()
		return
	}

	if !poisoned {
		p.sessions <- session
		return
	}

	p.logger.Warn().Int("session_index", session.index).Msg("Replacing poisoned browser session")
	session.cancel()
	session.allocatorCancel()

	replacement, err := p.newSession(context.Background(), session.index)
	if err != nil {
		p.logger.Error().Err(err).Int("session_index", session.index).Msg("Failed to replace poisoned session, pool capacity reduced")
		p.mu.Lock()
		p.created--
		p.mu.Unlock()
		return
	}
	p.sessions <- replacement
}

// Shutdown drains and tears down all sessions, bounded by the given
// timeout. Sessions still checked out when the deadline hits are
// abandoned to their owner's cancel.
func (p *Pool) Shutdown(timeout time.Duration) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	remaining := p.created
	p.mu.Unlock()

	deadline := time.After(timeout)
	for remaining > 0 {
		select {
		case session := <-p.sessions:
			session.cancel()
			session.allocatorCancel()
			remaining--
		case <-deadline:
			p.logger.Warn().Int("abandoned", remaining).Msg("Browser pool shutdown deadline reached")
			return
		}
	}

	p.logger.Info().Msg("Browser pool shut down")
}
