package main

import (
	"encoding/json"
	"math/rand"
	"strings"
	"time"
)

const (
	spyfallDiscussionFor = 480 * time.Second
	spyfallVotingFor     = 60 * time.Second
	spyfallSpyGuessFor   = 30 * time.Second
	spyfallDisplayFor    = 10 * time.Second
	spyfallGraceWait     = 30 * time.Second
)

type spyfallPhase string

const (
	spyfallDiscussion spyfallPhase = "discussion"
	spyfallVoting     spyfallPhase = "voting"
	spyfallSpyGuess   spyfallPhase = "spy_guess"
	spyfallFinished   spyfallPhase = "finished"
)

// spyfallGame: everyone but the spy shares a secret location; the group
// tries to vote the spy out, and a cornered spy can still steal the win by
// naming the location.
type spyfallGame struct {
	l *Lobby

	phase    spyfallPhase
	location string
	spy      *Participant

	votes     map[string]string // voter persistent id -> target persistent id
	earlyEnd  map[string]bool   // persistent ids voting to cut discussion short
	questions []spyfallQuestion

	started time.Time
}

type spyfallQuestion struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Question  string    `json:"question"`
	Timestamp time.Time `json:"timestamp"`
}

type spyfallRolePayload struct {
	IsSpy         bool         `json:"isSpy"`
	Location      string       `json:"location,omitempty"`
	Phase         spyfallPhase `json:"phase"`
	TimeRemaining int          `json:"timeRemaining"`
}

type spyfallStatePayload struct {
	Phase         spyfallPhase `json:"phase"`
	PlayerCount   int          `json:"playerCount"`
	TimeRemaining int          `json:"timeRemaining"`
}

type spyfallVotingPayload struct {
	Phase         spyfallPhase   `json:"phase"`
	TimeRemaining int            `json:"timeRemaining"`
	Players       []*Participant `json:"players"`
}

type spyfallVoteUpdatePayload struct {
	VotesReceived int `json:"votesReceived"`
	TotalPlayers  int `json:"totalPlayers"`
}

type spyfallEarlyEndPayload struct {
	Votes    int `json:"votes"`
	Required int `json:"required"`
}

type spyGuessPhasePayload struct {
	Phase         spyfallPhase `json:"phase"`
	TimeRemaining int          `json:"timeRemaining"`
	VotedOut      *Participant `json:"votedOut,omitempty"`
	Message       string       `json:"message"`
}

type spyfallVoteResult struct {
	Player *Participant `json:"player"`
	Votes  int          `json:"votes"`
}

type spyfallResultPayload struct {
	Winner      string              `json:"winner"` // "spy", "citizens" or "nobody"
	Reason      string              `json:"reason"`
	Spy         *Participant        `json:"spy"`
	Location    string              `json:"location"`
	SpyGuess    string              `json:"spyGuess,omitempty"`
	VoteResults []spyfallVoteResult `json:"voteResults,omitempty"`
	Duration    int                 `json:"duration"`
	Questions   []spyfallQuestion   `json:"questions"`
}

func newSpyfallGame(l *Lobby) *spyfallGame {
	return &spyfallGame{
		l:        l,
		phase:    spyfallDiscussion,
		votes:    make(map[string]string),
		earlyEnd: make(map[string]bool),
		started:  time.Now(),
	}
}

func (g *spyfallGame) Type() GameType { return GameSpyfall }

func (g *spyfallGame) Finished() bool { return g.phase == spyfallFinished }

func (g *spyfallGame) Start() {
	connected := g.l.connectedPlayers()

	g.location = spyfallLocations[rand.Intn(len(spyfallLocations))]
	g.spy = connected[rand.Intn(len(connected))]

	logf(g.l.cfg, "GAMES: Spyfall in %s: location %q, spy %q", g.l.code, g.location, g.spy.Name)

	for _, p := range connected {
		g.sendRole(p)
	}

	g.l.notify.broadcast(g.l.code, "spyfallStarted", spyfallStatePayload{
		Phase:         g.phase,
		PlayerCount:   len(connected),
		TimeRemaining: int(spyfallDiscussionFor / time.Second),
	})

	g.l.startClock(spyfallDiscussionFor, g.l.tickBroadcast("timerUpdate"), g.beginVoting)
}

func (g *spyfallGame) sendRole(p *Participant) {
	role := spyfallRolePayload{
		IsSpy:         p == g.spy,
		Phase:         g.phase,
		TimeRemaining: g.l.remaining(),
	}
	if p != g.spy {
		role.Location = g.location
	}
	g.l.notify.unicast(p.ID, "roleAssigned", role)
}

func (g *spyfallGame) HandleAction(p *Participant, action string, payload json.RawMessage) error {
	if g.phase == spyfallFinished {
		return errInvalidState("The game is over")
	}

	switch action {
	case "requestSpyfallRole":
		g.resync(p)
		return nil

	case "spyfallQuestion":
		var req struct {
			TargetPlayer string `json:"targetPlayer"`
			Question     string `json:"question"`
		}
		if err := json.Unmarshal(payload, &req); err != nil || req.Question == "" {
			return errInvalidInput("Malformed question")
		}
		q := spyfallQuestion{
			From:      p.Name,
			To:        req.TargetPlayer,
			Question:  req.Question,
			Timestamp: time.Now(),
		}
		g.questions = append(g.questions, q)
		g.l.notify.broadcast(g.l.code, "spyfallQuestionAsked", q)
		return nil

	case "spyfallEarlyEnd":
		return g.handleEarlyEndVote(p)

	case "spyfallVote":
		var req struct {
			VotedPlayerID string `json:"votedPlayerId"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return errInvalidInput("Malformed vote")
		}
		return g.handleVote(p, req.VotedPlayerID)

	case "spyGuess":
		var req struct {
			LocationGuess string `json:"locationGuess"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return errInvalidInput("Malformed guess")
		}
		return g.handleSpyGuess(p, req.LocationGuess)

	default:
		return errInvalidInput("Unsupported action %q", action)
	}
}

// handleEarlyEndVote cuts discussion short once a strict majority of
// connected players asks for it.
func (g *spyfallGame) handleEarlyEndVote(p *Participant) error {
	if g.phase != spyfallDiscussion {
		return errInvalidState("Discussion is already over")
	}

	g.earlyEnd[p.PersistentID] = true

	connected := len(g.l.connectedPlayers())
	required := connected/2 + 1

	g.l.notify.broadcast(g.l.code, "spyfallEarlyEndUpdate", spyfallEarlyEndPayload{
		Votes:    len(g.earlyEnd),
		Required: required,
	})

	if len(g.earlyEnd) >= required {
		g.beginVoting()
	}
	return nil
}

func (g *spyfallGame) handleVote(p *Participant, targetID string) error {
	if g.phase != spyfallVoting {
		return errInvalidState("Voting is not open")
	}

	var target *Participant
	for _, other := range g.l.players {
		if other.ID == targetID {
			target = other
			break
		}
	}
	if target == nil {
		return errInvalidInput("Unknown player")
	}

	g.votes[p.PersistentID] = target.PersistentID

	connected := g.l.connectedPlayers()
	g.l.notify.broadcast(g.l.code, "spyfallVoteUpdate", spyfallVoteUpdatePayload{
		VotesReceived: len(g.votes),
		TotalPlayers:  len(connected),
	})

	if len(g.votes) >= len(connected) {
		g.endVoting()
	}
	return nil
}

// handleSpyGuess resolves the game on the spot: only the spy may guess,
// and an exact case-insensitive match on the location wins it for them.
func (g *spyfallGame) handleSpyGuess(p *Participant, guess string) error {
	if p != g.spy {
		return errForbidden("Only the spy can guess the location")
	}

	if strings.EqualFold(strings.TrimSpace(guess), g.location) {
		g.end(spyfallResultPayload{
			Winner:   "spy",
			Reason:   "spy_guessed_location",
			SpyGuess: guess,
		})
	} else {
		g.end(spyfallResultPayload{
			Winner:   "citizens",
			Reason:   "spy_wrong_guess",
			SpyGuess: guess,
		})
	}
	return nil
}

func (g *spyfallGame) beginVoting() {
	if g.phase != spyfallDiscussion {
		return
	}

	g.phase = spyfallVoting
	clear(g.votes)

	connected := g.l.connectedPlayers()
	g.l.notify.broadcast(g.l.code, "spyfallVotingStarted", spyfallVotingPayload{
		Phase:         g.phase,
		TimeRemaining: int(spyfallVotingFor / time.Second),
		Players:       connected,
	})

	g.l.startClock(spyfallVotingFor, g.l.tickBroadcast("timerUpdate"), g.endVoting)
}

// endVoting tallies the accusation vote. A strict plurality accuses; any
// tie among the leaders accuses nobody. Catching the spy ends the game,
// anything else gives the spy a final timed guess.
func (g *spyfallGame) endVoting() {
	if g.phase != spyfallVoting {
		return
	}

	accused, results := g.countVotes()

	if accused != nil && accused == g.spy {
		g.end(spyfallResultPayload{
			Winner:      "citizens",
			Reason:      "spy_caught",
			VoteResults: results,
		})
		return
	}

	g.phase = spyfallSpyGuess

	message := "No clear majority in voting. The spy has 30 seconds to guess the location."
	if accused != nil {
		message = accused.Name + " was voted out, but they weren't the spy! The spy has 30 seconds to guess the location."
	}

	g.l.notify.broadcast(g.l.code, "spyGuessPhase", spyGuessPhasePayload{
		Phase:         g.phase,
		TimeRemaining: int(spyfallSpyGuessFor / time.Second),
		VotedOut:      accused,
		Message:       message,
	})

	g.l.startClock(spyfallSpyGuessFor, g.l.tickBroadcast("timerUpdate"), func() {
		g.end(spyfallResultPayload{
			Winner: "citizens",
			Reason: "spy_timeout",
		})
	})
}

func (g *spyfallGame) countVotes() (*Participant, []spyfallVoteResult) {
	counts := make(map[string]int)
	for _, targetPID := range g.votes {
		counts[targetPID]++
	}

	var accused *Participant
	max, tie := 0, false
	for pid, n := range counts {
		switch {
		case n > max:
			max = n
			accused = g.l.participantByPersistentID(pid)
			tie = false
		case n == max && n > 0:
			tie = true
		}
	}
	if tie {
		accused = nil
	}

	results := make([]spyfallVoteResult, 0, len(counts))
	for pid, n := range counts {
		if p := g.l.participantByPersistentID(pid); p != nil {
			results = append(results, spyfallVoteResult{Player: p, Votes: n})
		}
	}

	return accused, results
}

func (g *spyfallGame) end(result spyfallResultPayload) {
	if g.phase == spyfallFinished {
		return
	}
	g.phase = spyfallFinished

	result.Spy = g.spy
	result.Location = g.location
	result.Duration = int(time.Since(g.started) / time.Second)
	result.Questions = g.questions

	g.l.notify.broadcast(g.l.code, "spyfallGameEnded", result)
	g.l.scheduleReset(g, spyfallDisplayFor)
}

func (g *spyfallGame) HandleDeparture(p *Participant) {
	if g.phase == spyfallFinished {
		return
	}

	delete(g.votes, p.PersistentID)
	delete(g.earlyEnd, p.PersistentID)

	connected := g.l.connectedPlayers()

	if g.phase == spyfallVoting && len(g.votes) >= len(connected) && len(connected) > 0 {
		g.endVoting()
	}

	if g.phase != spyfallFinished && p == g.spy {
		// Give the spy their reconnection window before folding.
		g.l.afterGame(g, spyfallGraceWait, func() {
			if g.phase != spyfallFinished && !g.spy.Connected {
				g.end(spyfallResultPayload{
					Winner: "citizens",
					Reason: "spy_disconnected",
				})
			}
		})
		return
	}

	if g.phase != spyfallFinished && len(connected) < minPlayers[GameSpyfall] {
		g.l.afterGame(g, spyfallGraceWait, func() {
			if g.phase != spyfallFinished && len(g.l.connectedPlayers()) < minPlayers[GameSpyfall] {
				g.end(spyfallResultPayload{
					Winner: "nobody",
					Reason: "insufficient_players",
				})
			}
		})
	}
}

func (g *spyfallGame) HandleReconnect(p *Participant) {
	g.resync(p)
}

// resync re-sends a participant's private role plus whatever phase-scoped
// state they need to rejoin the action. Idempotent.
func (g *spyfallGame) resync(p *Participant) {
	g.sendRole(p)

	connected := g.l.connectedPlayers()
	g.l.notify.unicast(p.ID, "spyfallStarted", spyfallStatePayload{
		Phase:         g.phase,
		PlayerCount:   len(connected),
		TimeRemaining: g.l.remaining(),
	})

	switch g.phase {
	case spyfallVoting:
		g.l.notify.unicast(p.ID, "spyfallVotingStarted", spyfallVotingPayload{
			Phase:         g.phase,
			TimeRemaining: g.l.remaining(),
			Players:       connected,
		})
	case spyfallSpyGuess:
		g.l.notify.unicast(p.ID, "spyGuessPhase", spyGuessPhasePayload{
			Phase:         g.phase,
			TimeRemaining: g.l.remaining(),
		})
	}
}
