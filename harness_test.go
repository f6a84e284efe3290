package main

import (
	"sync"
	"testing"
	"time"
)

// recorder captures every notification a lobby or game emits so tests can
// assert on the wire traffic without a websocket in sight.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	scope     string // lobby code for broadcasts, connection id for unicasts
	event     string
	payload   any
	broadcast bool
}

func (r *recorder) broadcast(lobbyCode string, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{scope: lobbyCode, event: event, payload: payload, broadcast: true})
}

func (r *recorder) unicast(participantID string, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{scope: participantID, event: event, payload: payload})
}

// lastBroadcast returns the payload of the most recent broadcast of event,
// or nil when none was recorded.
func (r *recorder) lastBroadcast(event string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].broadcast && r.events[i].event == event {
			return r.events[i].payload
		}
	}
	return nil
}

func (r *recorder) countBroadcasts(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.broadcast && e.event == event {
			n++
		}
	}
	return n
}

// lastUnicast returns the payload of the most recent unicast of event sent
// to the given connection id.
func (r *recorder) lastUnicast(connID, event string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		e := r.events[i]
		if !e.broadcast && e.scope == connID && e.event == event {
			return e.payload
		}
	}
	return nil
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func testConfig() *Config {
	return &Config{
		lobbyLinger:    2 * time.Minute,
		reconnectGrace: 5 * time.Minute,
	}
}

// newTestLobby builds a lobby with the named players already seated. The
// first name is the host. Connection ids are "conn-<name>" and persistent
// ids "pid-<name>" so tests can address either directly.
func newTestLobby(t *testing.T, names ...string) (*Lobby, *recorder) {
	t.Helper()

	rec := &recorder{}
	l := newLobby(testConfig(), rec, newSessionRegistry(), "TEST01")

	l.mu.Lock()
	defer l.mu.Unlock()
	for i, name := range names {
		p := &Participant{
			ID:           "conn-" + name,
			PersistentID: "pid-" + name,
			Name:         name,
			LobbyCode:    l.code,
			IsHost:       i == 0,
			Connected:    true,
		}
		if err := l.addPlayer(p); err != nil {
			t.Fatalf("seating %q: %v", name, err)
		}
	}

	rec.reset()
	return l, rec
}

func participant(l *Lobby, name string) *Participant {
	return l.participantByPersistentID("pid-" + name)
}

// locked runs fn with the lobby mutex held, the way the dispatch loop and
// the phase clock do in production.
func locked(l *Lobby, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}
