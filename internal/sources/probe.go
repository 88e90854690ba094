package sources

import (
	"context"
	"sync"
)

// CachedProbe runs an availability check once and serves the cached answer to every
// later caller. An answer obtained while the caller's context was done is not cached.
// The zero value is not usable; use NewCachedProbe.
type CachedProbe struct {
	mu    sync.Mutex
	done  bool
	check func(ctx context.Context) bool
	ok    bool
}

// NewCachedProbe wraps check.
func NewCachedProbe(check func(ctx context.Context) bool) *CachedProbe {
	return &CachedProbe{check: check}
}

// Available returns the cached probe result, running the check on first use.
// Concurrent first callers block until the running check completes.
func (p *CachedProbe) Available(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return p.ok
	}
	if ctx.Err() != nil {
		return false
	}

	ok := p.check(ctx)
	if ctx.Err() != nil {
		return false
	}
	p.ok, p.done = ok, true
	return ok
}
