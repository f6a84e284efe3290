package main

import (
	"encoding/json"
)

// Wire envelope, both directions: {"type": ..., "payload": ...}.

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Inbound payloads handled at the lobby level. Per-game action payloads
// live next to their game.

type createLobbyRequest struct {
	PlayerName   string `json:"playerName"`
	PersistentID string `json:"persistentId,omitempty"`
}

type joinLobbyRequest struct {
	LobbyCode    string `json:"lobbyCode"`
	PlayerName   string `json:"playerName"`
	PersistentID string `json:"persistentId,omitempty"`
}

type reconnectRequest struct {
	PersistentID string `json:"persistentId"`
	PlayerName   string `json:"playerName"`
}

type startGameRequest struct {
	GameType GameType `json:"gameType"`
}

type gameVoteRequest struct {
	GameType GameType `json:"gameType"`
}

// Outbound payloads.

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type lobbyAckPayload struct {
	LobbyCode    string       `json:"lobbyCode"`
	Player       *Participant `json:"player"`
	PersistentID string       `json:"persistentId"`
}

type noticePayload struct {
	PlayerName string `json:"playerName"`
	Message    string `json:"message"`
}

type newHostPayload struct {
	NewHost string `json:"newHost"`
	Message string `json:"message"`
}

type lobbyPhasePayload struct {
	Phase lobbyPhase `json:"phase"`
}

type votingStartedPayload struct {
	Options       []GameType `json:"options"`
	TimeRemaining int        `json:"timeRemaining"`
}

type gameVoteUpdatePayload struct {
	Tally         map[GameType]int `json:"tally"`
	VotesReceived int              `json:"votesReceived"`
	TotalPlayers  int              `json:"totalPlayers"`
}

type yourVotePayload struct {
	GameType GameType `json:"gameType"`
}

type votingResolvedPayload struct {
	Winner    GameType         `json:"winner"`
	Tally     map[GameType]int `json:"tally"`
	TieBroken bool             `json:"tieBroken"`
	// Random marks a zero-ballot resolution picked uniformly from the
	// available list.
	Random bool `json:"random"`
}

type gameStartedPayload struct {
	GameType GameType `json:"gameType"`
}

type timerUpdatePayload struct {
	TimeRemaining int `json:"timeRemaining"`
}

type reconnectionPayload struct {
	LobbyCode   string         `json:"lobbyCode"`
	Player      *Participant   `json:"player"`
	Phase       lobbyPhase     `json:"phase"`
	CurrentGame GameType       `json:"currentGame,omitempty"`
	Players     []*Participant `json:"players"`
}
