package main

import (
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"
)

type lobbyPhase string

const (
	phaseWaiting lobbyPhase = "waiting"
	phaseVoting  lobbyPhase = "voting"
	phasePlaying lobbyPhase = "playing"
)

const (
	gameVoteDuration  = 60 * time.Second
	votingRevealPause = 3 * time.Second
)

// Lobby is the authoritative per-room aggregate: roster, phase,
// game-selection ballot and the active mini-game. All methods require l.mu
// to be held unless noted otherwise; the mutex is the per-room
// mutual-exclusion boundary, so no two mutations of one lobby's state ever
// run concurrently.
type Lobby struct {
	mu sync.Mutex

	cfg      *Config
	notify   notifier
	sessions *sessionRegistry

	code      string
	phase     lobbyPhase
	players   []*Participant // joins append; order drives fallback picks
	game      Game
	gameType  GameType
	createdAt time.Time

	ballot *gameBallot

	clock phaseClock
}

// gameBallot tracks one round of game-selection voting. Ballots are keyed
// by persistent id so a vote survives its caster's reconnect, and casting
// again overwrites rather than duplicates.
type gameBallot struct {
	options []GameType
	votes   map[string]GameType
}

func newLobby(cfg *Config, notify notifier, sessions *sessionRegistry, code string) *Lobby {
	return &Lobby{
		cfg:       cfg,
		notify:    notify,
		sessions:  sessions,
		code:      code,
		phase:     phaseWaiting,
		createdAt: time.Now(),
	}
}

func (l *Lobby) connectedPlayers() []*Participant {
	connected := make([]*Participant, 0, len(l.players))
	for _, p := range l.players {
		if p.Connected {
			connected = append(connected, p)
		}
	}
	return connected
}

func (l *Lobby) participantByPersistentID(persistentID string) *Participant {
	for _, p := range l.players {
		if p.PersistentID == persistentID {
			return p
		}
	}
	return nil
}

func (l *Lobby) broadcastRoster() {
	l.notify.broadcast(l.code, "playersUpdate", l.players)
}

// addPlayer validates and appends a joining participant. Display names must
// be unique against every participant still listed, including
// transiently-away ones, so a joiner can never squat on a seat that a
// disconnected player may still reclaim.
func (l *Lobby) addPlayer(p *Participant) error {
	if l.phase == phasePlaying {
		return errInvalidState("Game already in progress")
	}

	for _, existing := range l.players {
		if strings.EqualFold(existing.Name, p.Name) {
			return errNameConflict("Name already taken")
		}
	}

	l.players = append(l.players, p)
	l.sessions.put(p.PersistentID, l.code, p.Name, p.IsHost)
	l.broadcastRoster()

	logf(l.cfg, "GAMES: Player %q joined lobby %s", p.Name, l.code)

	return nil
}

// availableGames computes the ballot by connected headcount.
func (l *Lobby) availableGames() []GameType {
	n := len(l.connectedPlayers())

	var options []GameType
	for _, gt := range allGames {
		if n >= minPlayers[gt] {
			options = append(options, gt)
		}
	}
	return options
}

// startVoting opens game-selection voting: host-only, from waiting, with a
// fixed countdown after which the ballot resolves on its own.
func (l *Lobby) startVoting(p *Participant) error {
	if !p.IsHost {
		return errForbidden("Only the host can start a game vote")
	}
	if l.phase != phaseWaiting {
		return errInvalidState("A vote or game is already underway")
	}

	options := l.availableGames()
	if len(options) == 0 {
		return errInsufficientPlayers("Need at least 3 connected players to start any game")
	}

	l.phase = phaseVoting
	l.ballot = &gameBallot{
		options: options,
		votes:   make(map[string]GameType),
	}

	l.startClock(gameVoteDuration, l.tickBroadcast("votingTimerUpdate"), l.resolveVoting)

	l.notify.broadcast(l.code, "votingStarted", votingStartedPayload{
		Options:       options,
		TimeRemaining: int(gameVoteDuration / time.Second),
	})

	return nil
}

// castGameVote records (or overwrites) one participant's choice, echoes it
// back to them, and resolves early once every connected participant has
// voted.
func (l *Lobby) castGameVote(p *Participant, choice GameType) error {
	if l.phase != phaseVoting || l.ballot == nil {
		return errInvalidState("No game vote in progress")
	}
	if !slices.Contains(l.ballot.options, choice) {
		return errInvalidInput("%q is not on the ballot", choice)
	}

	l.ballot.votes[p.PersistentID] = choice

	l.broadcastBallot()
	l.notify.unicast(p.ID, "yourVote", yourVotePayload{GameType: choice})

	if connected := len(l.connectedPlayers()); connected > 0 && len(l.ballot.votes) >= connected {
		l.resolveVoting()
	}

	return nil
}

func (l *Lobby) broadcastBallot() {
	tally := make(map[GameType]int)
	for _, gt := range l.ballot.votes {
		tally[gt]++
	}

	l.notify.broadcast(l.code, "gameVoteUpdate", gameVoteUpdatePayload{
		Tally:         tally,
		VotesReceived: len(l.ballot.votes),
		TotalPlayers:  len(l.connectedPlayers()),
	})
}

// endVotingEarly lets the host cut the countdown short.
func (l *Lobby) endVotingEarly(p *Participant) error {
	if !p.IsHost {
		return errForbidden("Only the host can end the vote early")
	}
	if l.phase != phaseVoting {
		return errInvalidState("No game vote in progress")
	}

	l.resolveVoting()
	return nil
}

// resolveVoting picks the most-voted game. Ties break by a uniform random
// choice among the tied leaders rather than ballot order; an empty ballot
// picks uniformly from every option. The winner is revealed, then after a
// short pause the game is constructed.
func (l *Lobby) resolveVoting() {
	if l.phase != phaseVoting || l.ballot == nil {
		return
	}

	l.stopClock()

	tally := make(map[GameType]int)
	for _, gt := range l.ballot.votes {
		tally[gt]++
	}

	best := 0
	var leaders []GameType
	for _, gt := range l.ballot.options {
		switch n := tally[gt]; {
		case n > best:
			best = n
			leaders = []GameType{gt}
		case n == best && n > 0:
			leaders = append(leaders, gt)
		}
	}

	var winner GameType
	var tieBroken, random bool
	switch {
	case len(leaders) == 0:
		winner = l.ballot.options[rand.Intn(len(l.ballot.options))]
		random = true
	case len(leaders) == 1:
		winner = leaders[0]
	default:
		winner = leaders[rand.Intn(len(leaders))]
		tieBroken = true
	}

	l.notify.broadcast(l.code, "votingResolved", votingResolvedPayload{
		Winner:    winner,
		Tally:     tally,
		TieBroken: tieBroken,
		Random:    random,
	})

	logf(l.cfg, "GAMES: Lobby %s vote resolved to %s (tie=%t, random=%t)", l.code, winner, tieBroken, random)

	l.ballot = nil

	// Let everyone read the tally before roles go out.
	l.startClock(votingRevealPause, nil, func() {
		if err := l.launchGame(winner); err != nil {
			logf(l.cfg, "GAMES: Lobby %s failed to launch %s: %v", l.code, winner, err)
		}
	})
}

// startGameDirect is the host's bypass of voting, with the same per-game
// headcount gates.
func (l *Lobby) startGameDirect(p *Participant, choice GameType) error {
	if !p.IsHost {
		return errForbidden("Only the host can start a game")
	}
	if l.phase != phaseWaiting {
		return errInvalidState("A vote or game is already underway")
	}

	return l.launchGame(choice)
}

// launchGame validates headcount, constructs the chosen game and starts
// it. Any failure rolls the lobby back to waiting instead of leaving it
// stuck in playing with no active instance.
func (l *Lobby) launchGame(choice GameType) error {
	min, ok := minPlayers[choice]
	if !ok {
		l.rollbackToWaiting()
		return errInvalidInput("Unknown game %q", choice)
	}
	if len(l.connectedPlayers()) < min {
		l.rollbackToWaiting()
		return errInsufficientPlayers("Need at least %d players for %s", min, choice)
	}

	game, err := l.newGame(choice)
	if err != nil {
		l.rollbackToWaiting()
		return errInternal("Failed to start game")
	}

	l.game = game
	l.gameType = choice
	l.phase = phasePlaying

	l.notify.broadcast(l.code, "gameStarted", gameStartedPayload{GameType: choice})
	logf(l.cfg, "GAMES: Lobby %s started %s with %d players", l.code, choice, len(l.connectedPlayers()))

	game.Start()

	return nil
}

func (l *Lobby) newGame(choice GameType) (Game, error) {
	switch choice {
	case GameSpyfall:
		return newSpyfallGame(l), nil
	case GameMafia:
		return newMafiaGame(l), nil
	case GameObjection:
		return newObjectionGame(l), nil
	case GameCodenames:
		return newCodenamesGame(l), nil
	default:
		return nil, errInvalidInput("Unknown game %q", choice)
	}
}

func (l *Lobby) rollbackToWaiting() {
	if l.phase == phaseWaiting {
		return
	}
	l.stopClock()
	l.phase = phaseWaiting
	l.game = nil
	l.gameType = ""
	l.ballot = nil
	l.notify.broadcast(l.code, "lobbyPhase", lobbyPhasePayload{Phase: phaseWaiting})
}

// scheduleReset returns the lobby to waiting once a finished game's result
// display window has passed.
func (l *Lobby) scheduleReset(g Game, display time.Duration) {
	l.stopClock()
	l.afterGame(g, display, func() {
		l.game = nil
		l.gameType = ""
		l.phase = phaseWaiting
		l.notify.broadcast(l.code, "lobbyPhase", lobbyPhasePayload{Phase: phaseWaiting})
		l.broadcastRoster()
	})
}

// handleDisconnect marks a participant transiently away, informs the room
// and the active game, removes any pending ballot vote, and transfers the
// host flag if needed. Returns the number of participants still connected
// so the caller can decide on teardown.
func (l *Lobby) handleDisconnect(p *Participant) int {
	p.Connected = false
	l.sessions.markDisconnected(p.PersistentID)

	logf(l.cfg, "GAMES: Player %q disconnected from lobby %s, session preserved", p.Name, l.code)

	l.notify.broadcast(l.code, "playerDisconnected", noticePayload{
		PlayerName: p.Name,
		Message:    p.Name + " disconnected",
	})
	l.broadcastRoster()

	if l.game != nil {
		l.game.HandleDeparture(p)
	}

	if l.ballot != nil {
		delete(l.ballot.votes, p.PersistentID)
		if connected := len(l.connectedPlayers()); connected > 0 && len(l.ballot.votes) >= connected {
			l.resolveVoting()
		}
	}

	l.transferHost(p)

	return len(l.connectedPlayers())
}

// handleReconnect restores a participant whose identity was rebound to a
// fresh connection: same seat, same role, same everything.
func (l *Lobby) handleReconnect(p *Participant) {
	p.Connected = true
	l.sessions.markConnected(p.PersistentID)

	l.notify.broadcast(l.code, "playerReconnected", noticePayload{
		PlayerName: p.Name,
		Message:    p.Name + " reconnected",
	})
	l.broadcastRoster()

	if l.game != nil {
		l.game.HandleReconnect(p)
	}

	logf(l.cfg, "GAMES: Player %q reconnected to lobby %s", p.Name, l.code)
}

// removeParticipant permanently drops a participant whose reconnection
// grace has lapsed (or who the registry has otherwise given up on).
func (l *Lobby) removeParticipant(persistentID string) {
	idx := slices.IndexFunc(l.players, func(p *Participant) bool {
		return p.PersistentID == persistentID
	})
	if idx == -1 {
		return
	}

	p := l.players[idx]
	l.players = slices.Delete(l.players, idx, idx+1)

	if l.game != nil {
		l.game.HandleDeparture(p)
	}

	if l.ballot != nil {
		delete(l.ballot.votes, p.PersistentID)
	}

	l.transferHost(p)
	l.broadcastRoster()

	logf(l.cfg, "GAMES: Player %q permanently departed lobby %s", p.Name, l.code)
}

// transferHost hands the host flag to the first connected remaining
// participant, falling back to the first listed one, the moment the
// current host departs. While the lobby is non-empty exactly one
// participant holds the flag.
func (l *Lobby) transferHost(departing *Participant) {
	if !departing.IsHost {
		return
	}

	var next *Participant
	for _, p := range l.players {
		if p == departing {
			continue
		}
		if p.Connected {
			next = p
			break
		}
		if next == nil {
			next = p
		}
	}
	if next == nil {
		// Nobody left to take over; the flag stays with the departing
		// participant so a reconnect restores a hosted room.
		return
	}

	departing.IsHost = false
	next.IsHost = true
	l.sessions.setHost(departing.PersistentID, false)
	l.sessions.setHost(next.PersistentID, true)

	l.notify.broadcast(l.code, "newHost", newHostPayload{
		NewHost: next.Name,
		Message: next.Name + " is now the host",
	})
}
