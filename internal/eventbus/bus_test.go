package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/logging"
)

type spyLogger struct {
	errors []string
	warns  []string
	infos  []string
}

func (l *spyLogger) Debug(msg string, keysAndValues ...any) {}
func (l *spyLogger) Info(msg string, keysAndValues ...any)  { l.infos = append(l.infos, msg) }
func (l *spyLogger) Warn(msg string, keysAndValues ...any)  { l.warns = append(l.warns, msg) }
func (l *spyLogger) Error(msg string, keysAndValues ...any) { l.errors = append(l.errors, msg) }
func (l *spyLogger) With(keysAndValues ...any) logging.Logger { return l }

func TestPublishDeliversToMatchingSubscribers(t *testing.T) {
	bus := New(nil)
	var got []string
	Subscribe(bus, func(e LogEvent) {
		got = append(got, e.Message)
	})
	bus.Publish(NewLogEvent("first"))
	bus.Publish(NewLogEvent("second"))
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestPublishIgnoresNonMatchingSubscribers(t *testing.T) {
	bus := New(nil)
	called := false
	Subscribe(bus, func(e LogEvent) { called = true })
	bus.Publish(AgentStatusEvent{Status: "thinking"})
	assert.False(t, called)
}

func TestAncestorSubscriptionReceivesAllStreamEvents(t *testing.T) {
	bus := New(nil)
	var types []string
	Subscribe(bus, func(e AgentStreamEvent) {
		types = append(types, e.EventType())
	})
	bus.Publish(AgentStreamStartEvent{})
	bus.Publish(AgentTokenEvent{Token: "hi"})
	bus.Publish(AgentStreamEndEvent{FullText: "hi"})
	bus.Publish(NewLogEvent("not a stream event"))
	assert.Equal(t, []string{"AgentStreamStartEvent", "AgentTokenEvent", "AgentStreamEndEvent"}, types)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New(nil)
	count := 0
	id := Subscribe(bus, func(e LogEvent) { count++ })
	bus.Publish(NewLogEvent("one"))
	bus.Unsubscribe(id)
	bus.Publish(NewLogEvent("two"))
	assert.Equal(t, 1, count)
}

func TestPublishNeverPanicsOnSubscriberPanic(t *testing.T) {
	bus := New(nil)
	Subscribe(bus, func(e LogEvent) { panic("boom") })
	secondCalled := false
	Subscribe(bus, func(e LogEvent) { secondCalled = true })
	assert.NotPanics(t, func() {
		bus.Publish(NewLogEvent("x"))
	})
	assert.True(t, secondCalled)
}

func TestPublishWithNoSubscribersIsNoOp(t *testing.T) {
	bus := New(nil)
	assert.NotPanics(t, func() {
		bus.Publish(NewLogEvent("nobody listening"))
	})
}

func TestPublishRoutesLogEventThroughLoggerAtMatchingSeverity(t *testing.T) {
	spy := &spyLogger{}
	bus := New(spy)

	bus.Publish(LogEvent{Message: "ok", Severity: SeverityInfo})
	bus.Publish(LogEvent{Message: "careful", Severity: SeverityWarn})
	bus.Publish(LogEvent{Message: "boom", Severity: SeverityError})

	assert.Equal(t, []string{"ok"}, spy.infos)
	assert.Equal(t, []string{"careful"}, spy.warns)
	assert.Equal(t, []string{"boom"}, spy.errors)
}
