package main

import (
	"encoding/json"
	"fmt"
	"time"
)

type GameType string

const (
	GameSpyfall   GameType = "spyfall"
	GameMafia     GameType = "mafia"
	GameObjection GameType = "objection"
	GameCodenames GameType = "codenames"
)

// minPlayers maps each game to the smallest connected headcount it supports.
var minPlayers = map[GameType]int{
	GameSpyfall:   3,
	GameObjection: 3,
	GameMafia:     4,
	GameCodenames: 4,
}

// allGames is the fixed presentation order for vote ballots.
var allGames = []GameType{GameSpyfall, GameObjection, GameMafia, GameCodenames}

// notifier is the single outbound primitive: send a payload to every
// connected member of a lobby, or to exactly one participant. The live
// implementation is the GameServer; tests substitute a recorder.
type notifier interface {
	broadcast(lobbyCode string, event string, payload any)
	unicast(participantID string, event string, payload any)
}

// Game is the shared lifecycle contract of the four mini-games.
//
// Every method requires the owning lobby's mutex to be held. The lobby
// serializes all mutation of its state, so game code never races client
// input against timer callbacks or departures.
type Game interface {
	Type() GameType

	// Start assigns roles/teams/topics/grids, enters the initial phase
	// and pushes the first state broadcast, which may be asymmetric
	// (secret roles go out as unicasts).
	Start()

	// HandleAction validates and applies one participant action.
	// Illegal actions return an error delivered to the actor alone and
	// leave shared state untouched.
	HandleAction(p *Participant, action string, payload json.RawMessage) error

	// HandleDeparture removes a participant from live accounting and
	// re-evaluates win/continuation conditions. Safe to call more than
	// once for the same participant.
	HandleDeparture(p *Participant)

	// HandleReconnect re-sends the participant's private view and the
	// current shared state after an identity-preserving reconnect.
	HandleReconnect(p *Participant)

	// Finished reports whether the game has resolved.
	Finished() bool
}

// Participant is one client identity within a lobby. The persistent id is
// the client-held reconnect token and is never included in roster
// broadcasts; only its owner learns it, in the create/join acknowledgment.
type Participant struct {
	ID           string `json:"id"`
	PersistentID string `json:"-"`
	Name         string `json:"name"`
	LobbyCode    string `json:"lobbyCode"`
	IsHost       bool   `json:"isHost"`
	Connected    bool   `json:"connected"`
}

// historyEntry is one line of the human-readable event log that games
// accumulate and include in their terminal result.
type historyEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
}

type history []historyEntry

func (h *history) add(format string, args ...any) {
	*h = append(*h, historyEntry{
		Timestamp: time.Now(),
		Event:     fmt.Sprintf(format, args...),
	})
}

// tail returns the most recent n entries, for state snapshots that only
// need a short scrollback.
func (h history) tail(n int) []historyEntry {
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}
