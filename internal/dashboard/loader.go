package dashboard

import (
	"context"
	"sync"
	"time"

	pkgerrors "pulse/pkg/errors"
	"pulse/pkg/metrics"
)

// ErrStale is returned for a reload that finished after a newer reload of
// the same view had started.
var ErrStale = pkgerrors.ErrConflict.WithMessage("superseded by a newer reload")

// Loader orders overlapping reloads of the same view. Every reload gets a
// generation number; starting a new one cancels the previous context and
// only the latest generation may deliver its result.
type Loader struct {
	mu      sync.Mutex
	current map[string]*generation
	seq     uint64
}

type generation struct {
	n      uint64
	cancel context.CancelFunc
}

func NewLoader() *Loader {
	return &Loader{current: make(map[string]*generation)}
}

type ticket struct {
	key string
	n   uint64
}

func (l *Loader) begin(ctx context.Context, key string) (context.Context, ticket) {
	ctx, cancel := context.WithCancel(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	if prev, ok := l.current[key]; ok {
		prev.cancel()
	}
	l.seq++
	l.current[key] = &generation{n: l.seq, cancel: cancel}

	return ctx, ticket{key: key, n: l.seq}
}

// finish releases t and reports whether it was still the latest
// generation of its key.
func (l *Loader) finish(t ticket) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	gen, ok := l.current[t.key]
	if !ok || gen.n != t.n {
		return false
	}
	gen.cancel()
	delete(l.current, t.key)
	return true
}

// Pending returns the number of reloads in flight.
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.current)
}

// Load runs fn as the newest reload of key. The result of a reload that was
// superseded while running is discarded and ErrStale is returned instead.
func Load[T any](ctx context.Context, l *Loader, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	loadCtx, t := l.begin(ctx, key)

	result, err := fn(loadCtx)

	if !l.finish(t) {
		metrics.ObserveTrafficLoad(time.Since(start), "stale")
		var zero T
		return zero, ErrStale
	}
	if err != nil {
		metrics.ObserveTrafficLoad(time.Since(start), "error")
		var zero T
		return zero, err
	}

	metrics.ObserveTrafficLoad(time.Since(start), "success")
	return result, nil
}
