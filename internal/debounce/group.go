package debounce

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned by Do when a newer call for the same key arrived
// before the delay elapsed.
var ErrSuperseded = errors.New("debounce: superseded")

// Group debounces independent streams of calls identified by key, such as the
// live search of one browser session.
type Group struct {
	delay        time.Duration
	onSuperseded func(key string)

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	timer  *Timer
	waiter *waiter
}

type waiter struct {
	ready      chan struct{}
	superseded chan struct{}
}

// GroupOption customises a Group.
type GroupOption func(*Group)

// OnSuperseded registers a hook called whenever a pending call is replaced.
func OnSuperseded(fn func(key string)) GroupOption {
	return func(g *Group) { g.onSuperseded = fn }
}

// NewGroup returns a Group that waits delay before running the latest call.
func NewGroup(delay time.Duration, opts ...GroupOption) *Group {
	g := &Group{delay: delay, entries: make(map[string]*entry)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do waits for the delay and then runs fn, unless a newer Do for key arrives
// first (ErrSuperseded) or ctx ends (ctx.Err()). Two calls whose delays have
// already elapsed may run fn concurrently.
func (g *Group) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	w := &waiter{ready: make(chan struct{}), superseded: make(chan struct{})}

	g.mu.Lock()
	e, ok := g.entries[key]
	if !ok {
		e = &entry{timer: NewTimer(g.delay)}
		g.entries[key] = e
	}
	if e.waiter != nil {
		close(e.waiter.superseded)
		if g.onSuperseded != nil {
			g.onSuperseded(key)
		}
	}
	e.waiter = w
	e.timer.Schedule(func() { g.fire(key, w) })
	g.mu.Unlock()

	select {
	case <-w.ready:
		return fn(ctx)
	case <-w.superseded:
		return ErrSuperseded
	case <-ctx.Done():
		g.drop(key, w)
		return ctx.Err()
	}
}

// Pending reports how many keys have a call waiting.
func (g *Group) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func (g *Group) fire(key string, w *waiter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[key]
	if !ok || e.waiter != w {
		return
	}
	delete(g.entries, key)
	close(w.ready)
}

func (g *Group) drop(key string, w *waiter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[key]
	if !ok || e.waiter != w {
		return
	}
	e.timer.Stop()
	delete(g.entries, key)
}
