// Package gateway guards every call to the multimodal model with a quota
// circuit breaker, a sliding-window rate limit, a response cache, a single
// transient retry and malformed-JSON recovery.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/domain"
	"github.com/satriahrh/fixit/server/domain/entities"
	"github.com/satriahrh/fixit/server/domain/repositories"
	"github.com/satriahrh/fixit/server/internal/jsonrepair"
)

const (
	defaultCallsPerMinute = 5
	defaultWindow         = 60 * time.Second
	defaultCacheTTL       = 5 * time.Minute
	defaultCacheSize      = 256
	defaultRetryBackoff   = 2 * time.Second
	defaultCallTimeout    = 60 * time.Second
	defaultDailyBudget    = 1500
	maxRetries            = 1
	lowBudgetWarning      = 5
)

// Config tunes the gateway. Zero values fall back to defaults.
type Config struct {
	CallsPerMinute int
	Window         time.Duration
	CacheTTL       time.Duration
	CacheSize      int
	RetryBackoff   time.Duration
	CallTimeout    time.Duration
	DailyBudget    int

	// Now and Sleep are replaced in tests
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// ValidateConfig validates the gateway Config
func ValidateConfig(config Config) error {
	if config.CallsPerMinute < 0 {
		return fmt.Errorf("calls per minute must be positive, got %d", config.CallsPerMinute)
	}
	if config.CacheSize < 0 {
		return fmt.Errorf("cache size must be positive, got %d", config.CacheSize)
	}
	if config.Window < 0 || config.CacheTTL < 0 || config.RetryBackoff < 0 || config.CallTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if config.DailyBudget < 0 {
		return fmt.Errorf("daily budget must be positive, got %d", config.DailyBudget)
	}
	return nil
}

// Gateway is the process-wide guarded model client. The breaker, the window
// and the counters share one mutex; the cache is internally synchronized.
type Gateway struct {
	model  repositories.MultimodalModel
	logger *zap.Logger

	retryBackoff time.Duration
	callTimeout  time.Duration
	dailyBudget  int
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	breakerOpen bool
	window      *slidingWindow
	totalCalls  int
	dailyCalls  int
	day         string

	cache *responseCache
}

var _ repositories.ModelGateway = (*Gateway)(nil)

// New creates a gateway around the model client
func New(model repositories.MultimodalModel, config Config, logger *zap.Logger) (*Gateway, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	calls := config.CallsPerMinute
	if calls == 0 {
		calls = defaultCallsPerMinute
		logger.Info("Using default calls per minute", zap.Int("callsPerMinute", calls))
	}
	window := config.Window
	if window == 0 {
		window = defaultWindow
	}
	ttl := config.CacheTTL
	if ttl == 0 {
		ttl = defaultCacheTTL
		logger.Info("Using default cache TTL", zap.Duration("cacheTTL", ttl))
	}
	size := config.CacheSize
	if size == 0 {
		size = defaultCacheSize
	}
	backoff := config.RetryBackoff
	if backoff == 0 {
		backoff = defaultRetryBackoff
	}
	timeout := config.CallTimeout
	if timeout == 0 {
		timeout = defaultCallTimeout
		logger.Info("Using default call timeout", zap.Duration("callTimeout", timeout))
	}
	budget := config.DailyBudget
	if budget == 0 {
		budget = defaultDailyBudget
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	sleep := config.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	cache, err := newResponseCache(size, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}

	return &Gateway{
		model:        model,
		logger:       logger,
		retryBackoff: backoff,
		callTimeout:  timeout,
		dailyBudget:  budget,
		now:          now,
		sleep:        sleep,
		window:       newSlidingWindow(calls, window),
		day:          now().Format(time.DateOnly),
		cache:        cache,
	}, nil
}

// Invoke sends one prompt through breaker, cache, limiter and retry, and
// recovers the reply as JSON when the request expects it
func (g *Gateway) Invoke(ctx context.Context, req entities.ModelRequest) (*entities.ModelResult, error) {
	if g.BreakerOpen() {
		g.logger.Error("Circuit breaker active, model call skipped", zap.String("purpose", req.Purpose))
		return nil, domain.ErrUnavailable
	}

	key := CacheKey(req)
	if cached, ok := g.cache.get(key, g.now()); ok {
		g.logger.Info("Cache hit", zap.String("purpose", req.Purpose))
		cached.Cached = true
		return &cached, nil
	}

	if err := g.admit(req.Purpose); err != nil {
		return nil, err
	}

	out, err := g.generate(ctx, req)
	if err != nil {
		return nil, err
	}

	result, err := g.parse(req, out.Text)
	if err != nil {
		return nil, err
	}

	g.cache.put(key, *result, g.now())
	return result, nil
}

// InvokeGrounded runs a web-search grounded call. It is rate limited and
// guarded by the breaker but never cached or retried.
func (g *Gateway) InvokeGrounded(ctx context.Context, req entities.ModelRequest) (*entities.GroundingResult, error) {
	if g.BreakerOpen() {
		return nil, domain.ErrUnavailable
	}
	if err := g.admit(req.Purpose); err != nil {
		return nil, err
	}

	req.WebSearch = true
	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	out, err := g.model.Generate(callCtx, req)
	if err != nil {
		g.logger.Warn("Grounded call failed", zap.String("purpose", req.Purpose), zap.Error(err))
		if isQuotaError(err) {
			g.tripBreaker()
			return nil, domain.ErrUnavailable.Wrap(err)
		}
		return nil, domain.ErrUpstream.Wrap(err)
	}

	result := BuildGroundingResult(out)
	g.logger.Info("Grounding complete",
		zap.Int("sources", len(result.Sources)),
		zap.Int("supports", len(result.Supports)))
	return result, nil
}

// BreakerOpen reports whether model calls are currently disabled
func (g *Gateway) BreakerOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.breakerOpen
}

// ResetBreaker re-enables model calls after a quota trip
func (g *Gateway) ResetBreaker() {
	g.mu.Lock()
	g.breakerOpen = false
	g.mu.Unlock()
	g.logger.Warn("Circuit breaker manually reset")
}

// QuotaStatus snapshots the counters
func (g *Gateway) QuotaStatus() entities.QuotaStatus {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollDay(now)

	status := "active"
	if g.breakerOpen {
		status = "disabled"
	}
	remaining := g.dailyBudget - g.dailyCalls
	if remaining < 0 {
		remaining = 0
	}
	return entities.QuotaStatus{
		CircuitBreakerActive:  g.breakerOpen,
		TotalCallsThisSession: g.totalCalls,
		CallsInLastMinute:     g.window.count(now),
		RateLimitRemaining:    g.window.remaining(now),
		RPDConsumed:           g.dailyCalls,
		RPDRemaining:          remaining,
		RPDBudgetPercent:      g.dailyCalls * 100 / g.dailyBudget,
		CacheSize:             g.cache.len(),
		Status:                status,
	}
}

// admit applies the rate limit and records the call
func (g *Gateway) admit(purpose string) error {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.window.allow(now) {
		g.logger.Warn("Local rate limit exceeded",
			zap.String("purpose", purpose),
			zap.Int("calls", g.window.count(now)))
		return domain.ErrRateLimited
	}

	g.rollDay(now)
	g.window.record(now)
	g.totalCalls++
	g.dailyCalls++

	remaining := g.dailyBudget - g.dailyCalls
	g.logger.Info("Model call",
		zap.String("purpose", purpose),
		zap.Int("call", g.totalCalls),
		zap.Int("inWindow", g.window.count(now)),
		zap.Int("dailyRemaining", remaining))
	if remaining <= lowBudgetWarning {
		g.logger.Warn("Low daily request budget", zap.Int("remaining", remaining))
	}
	return nil
}

func (g *Gateway) rollDay(now time.Time) {
	if day := now.Format(time.DateOnly); day != g.day {
		g.day = day
		g.dailyCalls = 0
	}
}

func (g *Gateway) tripBreaker() {
	g.mu.Lock()
	g.breakerOpen = true
	total := g.totalCalls
	g.mu.Unlock()
	g.logger.Error("Quota exhausted, circuit breaker activated", zap.Int("totalCalls", total))
}

func (g *Gateway) generate(ctx context.Context, req entities.ModelRequest) (*entities.ModelOutput, error) {
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
		out, err := g.model.Generate(callCtx, req)
		cancel()
		if err == nil {
			return out, nil
		}

		g.logger.Error("Model call failed",
			zap.String("purpose", req.Purpose),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if isQuotaError(err) {
			g.tripBreaker()
			return nil, domain.ErrUnavailable.Wrap(err)
		}
		if attempt < maxRetries && ctx.Err() == nil && isTransientError(err) {
			g.logger.Info("Transient error, retrying once", zap.Duration("backoff", g.retryBackoff))
			if serr := g.sleep(ctx, g.retryBackoff); serr != nil {
				return nil, domain.ErrUpstream.Wrap(serr)
			}
			continue
		}
		return nil, domain.ErrUpstream.Wrap(err)
	}
}

func (g *Gateway) parse(req entities.ModelRequest, text string) (*entities.ModelResult, error) {
	if req.Schema == nil && !req.ExpectJSON {
		return &entities.ModelResult{Text: text}, nil
	}

	raw, layer, err := jsonrepair.Parse(text)
	if err != nil {
		g.logger.Error("Model reply is not recoverable JSON",
			zap.String("purpose", req.Purpose),
			zap.Int("length", len(text)),
			zap.Error(err))
		return nil, domain.ErrMalformedOutput.Wrap(err)
	}
	if layer != jsonrepair.LayerDirect {
		g.logger.Info("Recovered malformed JSON", zap.String("purpose", req.Purpose), zap.String("layer", string(layer)))
	}
	return &entities.ModelResult{Raw: raw, Text: text, RecoveredBy: string(layer)}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
