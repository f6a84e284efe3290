package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const lobbyCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GameServer owns the process-scoped registries: lobby code -> Lobby,
// live connection -> participant, and the session registry for
// reconnects. It is also the live notifier implementation.
//
// Lock ordering: a lobby's mutex may be held while taking s.mu (broadcasts
// do this), never the other way around.
type GameServer struct {
	cfg      *Config
	sessions *sessionRegistry

	mu      sync.Mutex
	lobbies map[string]*Lobby
	conns   map[*client]*Participant // nil value until the client binds
	clients map[string]*client       // participant connection id -> client
}

func newGameServer(cfg *Config) *GameServer {
	return &GameServer{
		cfg:      cfg,
		sessions: newSessionRegistry(),
		lobbies:  make(map[string]*Lobby),
		conns:    make(map[*client]*Participant),
		clients:  make(map[string]*client),
	}
}

// broadcast sends one payload to every connected member of a lobby.
func (s *GameServer) broadcast(lobbyCode, event string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c, p := range s.conns {
		if p != nil && p.LobbyCode == lobbyCode && p.Connected {
			c.enqueue(outboundMessage{Type: event, Payload: payload})
		}
	}
}

// unicast sends one payload to a single participant, addressed by their
// connection-scoped id.
func (s *GameServer) unicast(participantID, event string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[participantID]; ok {
		c.enqueue(outboundMessage{Type: event, Payload: payload})
	}
}

// sendTo delivers straight to a connection, bound or not. Used for errors
// and reconnection verdicts.
func (s *GameServer) sendTo(c *client, event string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conns[c]; !ok {
		return
	}
	c.enqueue(outboundMessage{Type: event, Payload: payload})
}

func (s *GameServer) fail(c *client, err error) {
	s.sendTo(c, "error", errorPayload{Code: errorCode(err), Message: err.Error()})
}

func (s *GameServer) lobby(code string) *Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lobbies[code]
}

func (s *GameServer) counts() (lobbies, players, sessions int) {
	s.mu.Lock()
	lobbies = len(s.lobbies)
	for _, p := range s.conns {
		if p != nil {
			players++
		}
	}
	s.mu.Unlock()

	return lobbies, players, s.sessions.count()
}

// register adds a fresh, not-yet-bound connection.
func (s *GameServer) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conns[c] = nil
}

// newLobbyCode allocates a short human-typeable code, collision-checked
// against live lobbies. With 36^6 of space exhaustion is practically
// unreachable, but the loop is bounded so a pathological state surfaces as
// an error rather than a hang.
func (s *GameServer) newLobbyCode() (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		buf := make([]byte, 6)
		if _, err := rand.Read(buf); err != nil {
			return "", errInternal("Failed to generate lobby code")
		}

		out := make([]byte, 6)
		for i := range out {
			out[i] = lobbyCodeAlphabet[int(buf[i])%len(lobbyCodeAlphabet)]
		}
		code := string(out)

		s.mu.Lock()
		_, exists := s.lobbies[code]
		s.mu.Unlock()

		if !exists {
			return code, nil
		}
	}
	return "", errInternal("Failed to allocate a free lobby code")
}

// dispatch routes one inbound message. Lobby-level actions are handled
// here; anything else goes to the lobby's active game. Every rejection is
// a unicast error to the sender; nothing here can take a lobby down.
func (s *GameServer) dispatch(c *client, msg inboundMessage) {
	var err error

	switch msg.Type {
	case "createLobby":
		err = s.createLobby(c, msg.Payload)
	case "joinLobby":
		err = s.joinLobby(c, msg.Payload)
	case "attemptReconnection":
		s.attemptReconnection(c, msg.Payload)
	case "startVoting":
		err = s.withLobby(c, func(l *Lobby, p *Participant) error {
			return l.startVoting(p)
		})
	case "voteForGame":
		var req gameVoteRequest
		if err = json.Unmarshal(msg.Payload, &req); err != nil {
			err = errInvalidInput("Malformed vote")
			break
		}
		err = s.withLobby(c, func(l *Lobby, p *Participant) error {
			return l.castGameVote(p, req.GameType)
		})
	case "endVotingEarly":
		err = s.withLobby(c, func(l *Lobby, p *Participant) error {
			return l.endVotingEarly(p)
		})
	case "startGame":
		var req startGameRequest
		if err = json.Unmarshal(msg.Payload, &req); err != nil {
			err = errInvalidInput("Malformed game choice")
			break
		}
		err = s.withLobby(c, func(l *Lobby, p *Participant) error {
			return l.startGameDirect(p, req.GameType)
		})
	default:
		err = s.withLobby(c, func(l *Lobby, p *Participant) error {
			if l.game == nil {
				return errInvalidState("No game in progress")
			}
			return l.game.HandleAction(p, msg.Type, msg.Payload)
		})
	}

	if err != nil {
		s.fail(c, err)
	}
}

// withLobby resolves the sender to their participant and lobby, then runs
// fn under the lobby's mutex.
func (s *GameServer) withLobby(c *client, fn func(l *Lobby, p *Participant) error) error {
	s.mu.Lock()
	p := s.conns[c]
	s.mu.Unlock()

	if p == nil {
		return errNotFound("Not in a lobby")
	}

	l := s.lobby(p.LobbyCode)
	if l == nil {
		return errNotFound("Lobby not found")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return fn(l, p)
}

func cleanPlayerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errInvalidInput("A display name is required")
	}
	if len(name) > 24 {
		return "", errInvalidInput("Display names are capped at 24 characters")
	}
	return name, nil
}

func (s *GameServer) createLobby(c *client, payload json.RawMessage) error {
	var req createLobbyRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errInvalidInput("Malformed request")
	}

	name, err := cleanPlayerName(req.PlayerName)
	if err != nil {
		return err
	}

	s.mu.Lock()
	bound := s.conns[c] != nil
	s.mu.Unlock()
	if bound {
		return errInvalidState("Already in a lobby")
	}

	code, err := s.newLobbyCode()
	if err != nil {
		return err
	}

	persistentID := req.PersistentID
	if persistentID == "" {
		persistentID = uuid.NewString()
	}

	l := newLobby(s.cfg, s, s.sessions, code)
	p := &Participant{
		ID:           c.id,
		PersistentID: persistentID,
		Name:         name,
		LobbyCode:    code,
		IsHost:       true,
		Connected:    true,
	}

	s.mu.Lock()
	s.lobbies[code] = l
	s.mu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.addPlayer(p); err != nil {
		// A fresh lobby with one member cannot conflict; treat any
		// failure here as construction gone wrong and release the code.
		s.mu.Lock()
		delete(s.lobbies, code)
		s.mu.Unlock()
		return errInternal("Failed to create lobby")
	}

	s.mu.Lock()
	s.conns[c] = p
	s.clients[c.id] = c
	s.mu.Unlock()

	// The roster broadcast in addPlayer ran before this connection was
	// bound, so send the creator their own seating now.
	l.broadcastRoster()

	s.unicast(p.ID, "lobbyCreated", lobbyAckPayload{
		LobbyCode:    code,
		Player:       p,
		PersistentID: persistentID,
	})

	logf(s.cfg, "GAMES: Lobby %s created by %q", code, name)

	return nil
}

func (s *GameServer) joinLobby(c *client, payload json.RawMessage) error {
	var req joinLobbyRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errInvalidInput("Malformed request")
	}

	name, err := cleanPlayerName(req.PlayerName)
	if err != nil {
		return err
	}

	s.mu.Lock()
	bound := s.conns[c] != nil
	s.mu.Unlock()
	if bound {
		return errInvalidState("Already in a lobby")
	}

	code := strings.ToUpper(strings.TrimSpace(req.LobbyCode))
	l := s.lobby(code)
	if l == nil {
		return errNotFound("Lobby not found")
	}

	persistentID := req.PersistentID
	if persistentID == "" {
		persistentID = uuid.NewString()
	}

	p := &Participant{
		ID:           c.id,
		PersistentID: persistentID,
		Name:         name,
		LobbyCode:    code,
		Connected:    true,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.addPlayer(p); err != nil {
		return err
	}

	s.mu.Lock()
	s.conns[c] = p
	s.clients[c.id] = c
	s.mu.Unlock()

	s.unicast(p.ID, "lobbyJoined", lobbyAckPayload{
		LobbyCode:    code,
		Player:       p,
		PersistentID: persistentID,
	})

	return nil
}

// attemptReconnection reclaims a session within the grace window: the
// participant's identity is rebound to the new connection and their full
// room/game state is restored. Failures are reported without mutating any
// room. Verdicts go out as dedicated events rather than errors, since the
// client acts on them differently.
func (s *GameServer) attemptReconnection(c *client, payload json.RawMessage) {
	var req reconnectRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendTo(c, "reconnectionFailed", noticePayload{Message: "Malformed request"})
		return
	}

	sess, ok := s.sessions.get(req.PersistentID)
	if !ok {
		s.sendTo(c, "reconnectionFailed", noticePayload{Message: "Session not found or expired"})
		return
	}

	l := s.lobby(sess.lobbyCode)
	if l == nil {
		s.sessions.delete(req.PersistentID)
		s.sendTo(c, "reconnectionFailed", noticePayload{Message: "Lobby no longer exists"})
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.participantByPersistentID(req.PersistentID)
	if p == nil {
		s.sendTo(c, "reconnectionFailed", noticePayload{Message: "Player not found in lobby"})
		return
	}

	oldConnID := p.ID
	p.ID = c.id

	s.mu.Lock()
	if old, ok := s.clients[oldConnID]; ok {
		// A lingering previous connection is superseded; its eventual
		// close must not count as this participant disconnecting.
		delete(s.clients, oldConnID)
		delete(s.conns, old)
		old.close()
	}
	s.conns[c] = p
	s.clients[c.id] = c
	s.mu.Unlock()

	l.handleReconnect(p)

	s.unicast(p.ID, "reconnectionSuccessful", reconnectionPayload{
		LobbyCode:   l.code,
		Player:      p,
		Phase:       l.phase,
		CurrentGame: l.gameType,
		Players:     l.players,
	})
}

// disconnect reconciles a dropped connection: the bound participant, if
// any, turns transiently-away and their lobby decides what that means.
func (s *GameServer) disconnect(c *client) {
	s.mu.Lock()
	p, registered := s.conns[c]
	delete(s.conns, c)
	if p != nil && s.clients[p.ID] == c {
		delete(s.clients, p.ID)
	}
	c.close()
	s.mu.Unlock()

	if !registered || p == nil {
		return
	}

	l := s.lobby(p.LobbyCode)
	if l == nil {
		return
	}

	l.mu.Lock()
	remaining := l.handleDisconnect(p)
	l.mu.Unlock()

	if remaining == 0 {
		s.scheduleTeardown(p.LobbyCode)
	}
}

// scheduleTeardown destroys a lobby that still has zero connected
// participants once the linger window passes. The delay tolerates
// simultaneous mass reconnects.
func (s *GameServer) scheduleTeardown(code string) {
	logf(s.cfg, "GAMES: Lobby %s has no connected players, teardown in %s", code, s.cfg.lobbyLinger)

	time.AfterFunc(s.cfg.lobbyLinger, func() {
		l := s.lobby(code)
		if l == nil {
			return
		}

		l.mu.Lock()
		if len(l.connectedPlayers()) > 0 {
			l.mu.Unlock()
			return
		}
		l.stopClock()
		l.game = nil
		l.phase = phaseWaiting
		l.mu.Unlock()

		s.mu.Lock()
		delete(s.lobbies, code)
		s.mu.Unlock()

		s.sessions.dropLobby(code)

		logf(s.cfg, "GAMES: Cleaned up empty lobby %s", code)
	})
}

// sweepSessions periodically purges sessions whose reconnection grace has
// lapsed and converts their participants to permanent departures.
func (s *GameServer) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, exp := range s.sessions.purgeExpired(s.cfg.reconnectGrace) {
				logf(s.cfg, "GAMES: Session %s expired", exp.persistentID)

				if l := s.lobby(exp.lobbyCode); l != nil {
					l.mu.Lock()
					l.removeParticipant(exp.persistentID)
					l.mu.Unlock()
				}
			}
		}
	}
}
