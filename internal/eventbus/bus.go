// Package eventbus implements the synchronous publish-subscribe bus tying
// together the scraper, clustering engine, report builder, and monitor
// service (§4.8).
package eventbus

import (
	"strings"
	"sync"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/logging"
)

// subscriberID identifies a registered handler for Unsubscribe.
type subscriberID uint64

type subscriber struct {
	id      subscriberID
	matches func(Event) bool
	invoke  func(Event)
}

// Bus is a synchronous, in-process publish-subscribe dispatcher. Publish
// never returns an error and never panics out to the caller: a subscriber
// that panics is logged and skipped, the remaining subscribers still run.
// Posting to a type with no subscribers is a silent no-op.
type Bus struct {
	mu     sync.Mutex
	nextID subscriberID
	subs   []subscriber
	logger logging.Logger
}

// New creates an empty Bus. A nil logger is replaced with a dev-null logger.
func New(logger logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NewDevNullLogger()
	}
	return &Bus{logger: logger}
}

// Subscribe registers handler for every published event assignable to T.
// T may be a concrete event struct (exact-type subscription) or an
// interface such as AgentStreamEvent (an "ancestor" subscription matching
// every event that implements it). Returns an id for Unsubscribe.
func Subscribe[T Event](b *Bus, handler func(T)) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{
		id: id,
		matches: func(e Event) bool {
			_, ok := e.(T)
			return ok
		},
		invoke: func(e Event) {
			if v, ok := e.(T); ok {
				handler(v)
			}
		},
	})
	return int(id)
}

// Unsubscribe stops further delivery to the handler registered under id.
// Takes effect immediately; a Publish already in progress for other
// subscribers is unaffected.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == subscriberID(id) {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish dispatches event, in registration order, to every subscriber
// whose declared type matches. A single producer's successive Publish
// calls reach each matching subscriber in posting order because dispatch
// itself is synchronous on the calling goroutine.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	if le, ok := event.(LogEvent); ok {
		logging.RouteBySeverity(b.logger, string(le.Severity), le.Message)
	} else if !strings.Contains(event.EventType(), "AgentToken") {
		b.logger.Debug("event published", "type", event.EventType())
	}

	for _, s := range subs {
		if !s.matches(event) {
			continue
		}
		b.dispatchSafely(s, event)
	}
}

func (b *Bus) dispatchSafely(s subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked", "type", event.EventType(), "recover", r)
		}
	}()
	s.invoke(event)
}
