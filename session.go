package main

import (
	"sync"
	"time"
)

// session is the reconnect metadata that outlives a participant's
// connection: enough to put them back in their lobby with the right name
// and host flag, nothing more.
type session struct {
	lobbyCode      string
	playerName     string
	isHost         bool
	disconnectedAt time.Time // zero while connected
}

type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{
		sessions: make(map[string]*session),
	}
}

func (r *sessionRegistry) put(persistentID, lobbyCode, playerName string, isHost bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[persistentID] = &session{
		lobbyCode:  lobbyCode,
		playerName: playerName,
		isHost:     isHost,
	}
}

func (r *sessionRegistry) get(persistentID string) (session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[persistentID]
	if !ok {
		return session{}, false
	}
	return *s, true
}

func (r *sessionRegistry) markDisconnected(persistentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[persistentID]; ok {
		s.disconnectedAt = time.Now()
	}
}

func (r *sessionRegistry) markConnected(persistentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[persistentID]; ok {
		s.disconnectedAt = time.Time{}
	}
}

func (r *sessionRegistry) setHost(persistentID string, isHost bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[persistentID]; ok {
		s.isHost = isHost
	}
}

func (r *sessionRegistry) delete(persistentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, persistentID)
}

// dropLobby removes every session bound to a torn-down lobby.
func (r *sessionRegistry) dropLobby(lobbyCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		if s.lobbyCode == lobbyCode {
			delete(r.sessions, id)
		}
	}
}

func (r *sessionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

type expiredSession struct {
	persistentID string
	lobbyCode    string
}

// purgeExpired removes and returns every session whose disconnect
// timestamp is older than the grace window. Participants belonging to the
// returned sessions are past reclaiming their seat.
func (r *sessionRegistry) purgeExpired(grace time.Duration) []expiredSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-grace)

	var expired []expiredSession
	for id, s := range r.sessions {
		if !s.disconnectedAt.IsZero() && s.disconnectedAt.Before(cutoff) {
			expired = append(expired, expiredSession{persistentID: id, lobbyCode: s.lobbyCode})
			delete(r.sessions, id)
		}
	}
	return expired
}
