package polymind

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flipIdentity is an IdentityProvider whose handshake completes on demand.
type flipIdentity struct {
	mu    sync.Mutex
	ready bool
	token string
	user  string
}

func (f *flipIdentity) InitData() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *flipIdentity) UserID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user
}

func (f *flipIdentity) Initialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *flipIdentity) set(ready bool, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = ready
	f.token = token
}

func TestGateWaitUntilReady(t *testing.T) {
	t.Run("AlreadyInitialized", func(t *testing.T) {
		gate := NewGate(StaticIdentity{})
		start := time.Now()
		assert.True(t, gate.WaitUntilReady(context.Background(), time.Second))
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("BecomesReadyWhileWaiting", func(t *testing.T) {
		id := &flipIdentity{}
		gate := NewGate(id)
		gate.interval = 5 * time.Millisecond

		go func() {
			time.Sleep(20 * time.Millisecond)
			id.set(true, "token")
		}()

		require.True(t, gate.WaitUntilReady(context.Background(), time.Second))
	})

	t.Run("Timeout", func(t *testing.T) {
		gate := NewGate(&flipIdentity{})
		gate.interval = 5 * time.Millisecond
		assert.False(t, gate.WaitUntilReady(context.Background(), 30*time.Millisecond))
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		gate := NewGate(&flipIdentity{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.False(t, gate.WaitUntilReady(ctx, time.Second))
	})

	t.Run("NilGate", func(t *testing.T) {
		var gate *Gate
		assert.False(t, gate.WaitUntilReady(context.Background(), time.Second))
	})

	t.Run("ConcurrentWaiters", func(t *testing.T) {
		id := &flipIdentity{}
		gate := NewGate(id)
		gate.interval = 5 * time.Millisecond

		go func() {
			time.Sleep(20 * time.Millisecond)
			id.set(true, "token")
		}()

		var wg sync.WaitGroup
		results := make([]bool, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = gate.WaitUntilReady(context.Background(), time.Second)
			}(i)
		}
		wg.Wait()
		for _, ok := range results {
			assert.True(t, ok)
		}
	})
}
