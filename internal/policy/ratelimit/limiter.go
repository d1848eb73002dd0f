// Package ratelimit implements the token-bucket politeness delay applied before every outbound request.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/doc-harvester/internal/metrics"
)

// Scope controls whether pacing is shared across all hosts or tracked per host.
type Scope string

// Supported scopes.
const (
	ScopeGlobal Scope = "global"
	ScopeHost   Scope = "host"
)

const globalKey = "*"

// Config holds rate limiter configuration.
type Config struct {
	// Delay is the minimum interval between requests; zero disables pacing.
	Delay time.Duration
	// Scope selects a single global bucket or independent per-host buckets.
	Scope Scope
}

// Limiter paces outbound requests. It is safe for concurrent use by fetch workers.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	scope    Scope
}

// ParseScope validates a configured scope name.
func ParseScope(raw string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(raw))) {
	case ScopeGlobal, "":
		return ScopeGlobal, nil
	case ScopeHost:
		return ScopeHost, nil
	default:
		return "", fmt.Errorf("unknown rate scope %q", raw)
	}
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	scope := cfg.Scope
	if scope == "" {
		scope = ScopeGlobal
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		scope:    scope,
	}
}

// Wait blocks until a request to rawURL may be issued, respecting the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	key := l.key(rawURL)
	l.mu.Lock()
	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(l.limit, 1)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(string(l.scope), waited)
	}
	return nil
}

func (l *Limiter) key(rawURL string) string {
	if l.scope != ScopeHost {
		return globalKey
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
