package polymind

import (
	"context"
	"time"
)

// ============================================================================
// Identity Gate
// ============================================================================

// IdentityProvider supplies the identity issued by the hosting environment
// (Telegram init-data and the numeric user id behind it). Initialized reports
// whether the asynchronous handshake with the host has completed; InitData
// may legitimately return "" even after initialization when the app runs
// outside the authenticating host.
type IdentityProvider interface {
	InitData() string
	UserID() string
	Initialized() bool
}

// StaticIdentity is an IdentityProvider with fixed values, always
// initialized. Useful for CLIs and tests where the token is known up front.
// The zero value is an initialized, anonymous identity.
type StaticIdentity struct {
	Token string
	User  string
}

func (s StaticIdentity) InitData() string  { return s.Token }
func (s StaticIdentity) UserID() string    { return s.User }
func (s StaticIdentity) Initialized() bool { return true }

// DefaultReadyTimeout bounds how long callers wait for the identity
// handshake before degrading to cache-only behavior.
const DefaultReadyTimeout = 5 * time.Second

const readyPollInterval = 100 * time.Millisecond

// Gate wraps the asynchronous availability of an IdentityProvider so callers
// do not race ahead of authentication.
type Gate struct {
	provider IdentityProvider
	interval time.Duration
}

// NewGate creates a gate over the given provider.
func NewGate(provider IdentityProvider) *Gate {
	return &Gate{provider: provider, interval: readyPollInterval}
}

// WaitUntilReady polls the provider until it reports initialized or the
// timeout elapses, and returns whether initialization succeeded. A timeout
// of zero or less means DefaultReadyTimeout. Each call owns its own ticker,
// so any number of in-flight requests may wait concurrently. Context
// cancellation ends the wait early with false.
func (g *Gate) WaitUntilReady(ctx context.Context, timeout time.Duration) bool {
	if g == nil || g.provider == nil {
		return false
	}
	if g.provider.Initialized() {
		return true
	}
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return g.provider.Initialized()
		case <-ticker.C:
			if g.provider.Initialized() {
				return true
			}
		}
	}
}
