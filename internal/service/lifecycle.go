package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
)

// EventHandler receives session lifecycle events.
type EventHandler func(ctx context.Context, ev oauth.Event)

type subscription struct {
	id      uint64
	handler EventHandler
}

// Notifier fans lifecycle events out to subscribers synchronously, in subscription order.
// There is no replay: a subscriber only sees events emitted after it subscribed.
type Notifier struct {
	logger *slog.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

// NewNotifier constructs a Notifier. A nil logger falls back to slog.Default().
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{logger: logger.With("component", "session_events")}
}

// Subscribe registers h and returns a function that removes it. Calling the returned func twice is a no-op.
func (n *Notifier) Subscribe(h EventHandler) func() {
	if h == nil {
		return func() {}
	}

	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscription{id: id, handler: h})
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(id) })
	}
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.subs {
		if s.id == id {
			// Copy rather than reslice in place so a concurrent Emit snapshot is untouched.
			next := make([]subscription, 0, len(n.subs)-1)
			next = append(next, n.subs[:i]...)
			n.subs = append(next, n.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers ev to every current subscriber before returning.
func (n *Notifier) Emit(ctx context.Context, ev oauth.Event) {
	n.mu.RLock()
	subs := n.subs
	n.mu.RUnlock()

	for _, s := range subs {
		n.deliver(ctx, s, ev)
	}
}

func (n *Notifier) deliver(ctx context.Context, s subscription, ev oauth.Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.ErrorContext(ctx, "session event subscriber panicked",
				"event", string(ev.Type),
				"session_id", ev.SessionID,
				"panic", r,
			)
		}
	}()
	s.handler(ctx, ev)
}

// Len reports the number of active subscriptions.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}
