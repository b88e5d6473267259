package llmgateway

import "sync"

const maxScopeMessages = 20

// scopedMemory holds one conversation's sliding message window, isolated
// per scope id (§4.4: "scopes isolate conversation memory").
type scopedMemory struct {
	mu     sync.Mutex
	scopes map[string][]ChatMessage
}

func newScopedMemory() *scopedMemory {
	return &scopedMemory{scopes: make(map[string][]ChatMessage)}
}

// Append adds msg to scopeID's history and returns a copy of the window
// (at most maxScopeMessages entries, oldest dropped first) to send as
// context on the next request.
func (m *scopedMemory) Append(scopeID string, msg ChatMessage) []ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.scopes[scopeID], msg)
	if len(history) > maxScopeMessages {
		history = history[len(history)-maxScopeMessages:]
	}
	m.scopes[scopeID] = history

	out := make([]ChatMessage, len(history))
	copy(out, history)
	return out
}

// Reset clears scopeID's history.
func (m *scopedMemory) Reset(scopeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scopes, scopeID)
}
