package llmgateway

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopedMemorySlidingWindowCapsAtTwenty(t *testing.T) {
	m := newScopedMemory()
	var last []ChatMessage
	for i := 0; i < 25; i++ {
		last = m.Append("scope-a", ChatMessage{Role: "user", Content: fmt.Sprintf("msg-%d", i)})
	}
	assert.Len(t, last, maxScopeMessages)
	assert.Equal(t, "msg-24", last[len(last)-1].Content)
	assert.Equal(t, "msg-5", last[0].Content)
}

func TestScopedMemoryIsolatesScopes(t *testing.T) {
	m := newScopedMemory()
	m.Append("a", ChatMessage{Role: "user", Content: "hello a"})
	history := m.Append("b", ChatMessage{Role: "user", Content: "hello b"})
	assert.Len(t, history, 1)
	assert.Equal(t, "hello b", history[0].Content)
}

func TestScopedMemoryResetClearsHistory(t *testing.T) {
	m := newScopedMemory()
	m.Append("a", ChatMessage{Role: "user", Content: "hello"})
	m.Reset("a")
	history := m.Append("a", ChatMessage{Role: "user", Content: "fresh"})
	assert.Len(t, history, 1)
	assert.Equal(t, "fresh", history[0].Content)
}
