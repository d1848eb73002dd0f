// Package policy composes robots enforcement, host deny rules, and request pacing
// into the single gate every outbound fetch passes through.
package policy

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"
)

// RobotsPolicy decides whether a URL may be fetched under the host's crawl policy.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Pacer blocks until the next request may be issued.
type Pacer interface {
	Wait(ctx context.Context, rawURL string) error
}

// Gate answers "may I fetch this?" and enforces the politeness delay before each request.
type Gate struct {
	robots RobotsPolicy
	pacer  Pacer
	deny   *hostDenylist
	logger *zap.Logger
}

// NewGate builds a Gate. robots and pacer may be nil to disable either concern.
func NewGate(robots RobotsPolicy, pacer Pacer, denyDomains []string, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		robots: robots,
		pacer:  pacer,
		deny:   newHostDenylist(denyDomains),
		logger: logger,
	}
}

// Allowed reports whether rawURL may be fetched.
func (g *Gate) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		g.logger.Debug("rejecting unparseable url", zap.String("url", rawURL))
		return false
	}
	if g.deny.IsDenied(u.Hostname()) {
		g.logger.Info("host is deny-listed", zap.String("url", rawURL))
		return false
	}
	if g.robots == nil {
		return true
	}
	return g.robots.Allowed(ctx, rawURL)
}

// Wait blocks for the politeness delay before a request to rawURL.
func (g *Gate) Wait(ctx context.Context, rawURL string) error {
	if g.pacer == nil {
		return nil
	}
	if err := g.pacer.Wait(ctx, rawURL); err != nil {
		return fmt.Errorf("politeness wait: %w", err)
	}
	return nil
}
