package authclient

// EventType identifies a broadcast auth event.
type EventType string

const (
	// EventSignedIn fires after a successful login established a session.
	EventSignedIn EventType = "signed_in"
	// EventTokenRefreshed fires after every successful refresh rotation.
	EventTokenRefreshed EventType = "token_refreshed"
	// EventSessionRevoked fires when the server definitively rejected the session.
	EventSessionRevoked EventType = "session_revoked"
	// EventSignedOut fires on explicit logout.
	EventSignedOut EventType = "signed_out"
	// EventStateChanged fires on every state machine transition.
	EventStateChanged EventType = "state_changed"
)

// Event is a typed auth notification delivered to subscribers (tabs, UI stores).
type Event struct {
	Type  EventType
	State State
	User  *User
}

// Subscribe registers a listener channel with the given buffer size. Events are
// delivered with a non-blocking send: a subscriber that falls behind drops
// events rather than stalling the manager.
func (m *Manager) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (m *Manager) Unsubscribe(ch <-chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sub := range m.subs {
		if sub == ch {
			delete(m.subs, sub)
			close(sub)
			return
		}
	}
}

// publish delivers e to every subscriber without blocking. Callers must not hold m.mu.
func (m *Manager) publish(e Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for sub := range m.subs {
		select {
		case sub <- e:
		default:
			// Subscriber buffer full; drop rather than block the auth path.
		}
	}
}
