package main

import (
	"encoding/json"
	"math/rand"
	"strings"
	"time"
)

const (
	objectionArguingFor = 120 * time.Second
	objectionRebutFor   = 60 * time.Second
	objectionVotingFor  = 30 * time.Second
	objectionDisplayFor = 15 * time.Second

	objectionStartingLives = 3
)

type objectionPhase string

const (
	objectionArguing  objectionPhase = "arguing"
	objectionRaised   objectionPhase = "objection"
	objectionVoting   objectionPhase = "voting"
	objectionFinished objectionPhase = "finished"
)

// objectionGame is a debate survival game. The speaker argues an assigned
// topic and wins outright by holding the floor for the full window; anyone
// else can object, putting the objection to a crowd vote. Overruled
// objectors burn one of their three lives and the last player standing
// takes it.
type objectionGame struct {
	l *Lobby

	phase objectionPhase
	round int

	lives map[string]int // persistent id -> lives left

	speakerPID    string
	topic         string
	objectorPID   string
	objectionText string

	votes   map[string]bool // voter persistent id -> sustain
	rerolls map[string]bool // persistent ids asking for a new topic

	spicy bool

	log     *history
	started time.Time
}

type objectionPlayerState struct {
	Player *Participant `json:"player"`
	Lives  int          `json:"lives"`
}

type objectionStatePayload struct {
	Phase         objectionPhase         `json:"phase"`
	Round         int                    `json:"round"`
	Speaker       *Participant           `json:"speaker,omitempty"`
	Topic         string                 `json:"topic,omitempty"`
	Objector      *Participant           `json:"objector,omitempty"`
	ObjectionText string                 `json:"objectionText,omitempty"`
	Players       []objectionPlayerState `json:"players"`
	TimeRemaining int                    `json:"timeRemaining"`
	SpicyTopics   bool                   `json:"spicyTopics"`
	Log           []historyEntry         `json:"log,omitempty"`
}

type objectionVoteUpdatePayload struct {
	VotesReceived int `json:"votesReceived"`
	Eligible      int `json:"eligible"`
}

type objectionVerdictPayload struct {
	Sustained bool         `json:"sustained"`
	Sustain   int          `json:"sustainVotes"`
	Overrule  int          `json:"overruleVotes"`
	Objector  *Participant `json:"objector,omitempty"`
	LivesLeft int          `json:"livesLeft"`
}

type rerollUpdatePayload struct {
	Votes    int `json:"votes"`
	Required int `json:"required"`
}

type objectionResultPayload struct {
	Winner   *Participant   `json:"winner,omitempty"`
	Reason   string         `json:"reason"`
	Rounds   int            `json:"rounds"`
	Duration int            `json:"duration"`
	Log      []historyEntry `json:"log,omitempty"`
}

func newObjectionGame(l *Lobby) *objectionGame {
	return &objectionGame{
		l:       l,
		phase:   objectionArguing,
		lives:   make(map[string]int),
		votes:   make(map[string]bool),
		rerolls: make(map[string]bool),
		log:     &history{},
		started: time.Now(),
	}
}

func (g *objectionGame) Type() GameType { return GameObjection }

func (g *objectionGame) Finished() bool { return g.phase == objectionFinished }

func (g *objectionGame) Start() {
	players := g.l.connectedPlayers()
	for _, p := range players {
		g.lives[p.PersistentID] = objectionStartingLives
	}

	logf(g.l.cfg, "GAMES: Objection in %s: %d players", g.l.code, len(players))

	g.newRound(players[rand.Intn(len(players))].PersistentID, "")
}

// newRound hands the floor to speakerPID. An empty topic draws a fresh one
// from the pool; a sustained objection passes the objector's own statement
// in as the topic instead.
func (g *objectionGame) newRound(speakerPID, topic string) {
	g.round++
	g.phase = objectionArguing
	g.speakerPID = speakerPID
	g.objectorPID = ""
	g.objectionText = ""
	clear(g.votes)
	clear(g.rerolls)

	if topic == "" {
		topic = g.drawTopic()
	}
	g.topic = topic

	speaker := g.l.participantByPersistentID(speakerPID)
	if speaker != nil {
		g.log.add("Round %d: %s argues %q", g.round, speaker.Name, g.topic)
	}

	g.broadcastState("objectionNewRound", int(objectionArguingFor/time.Second))
	g.l.startClock(objectionArguingFor, g.l.tickBroadcast("objectionTimerUpdate"), g.speakerSurvived)
}

func (g *objectionGame) drawTopic() string {
	pool := normalTopics
	if g.spicy {
		pool = make([]string, 0, len(normalTopics)+len(spicyTopics))
		pool = append(pool, normalTopics...)
		pool = append(pool, spicyTopics...)
	}
	return pool[rand.Intn(len(pool))]
}

// speakerSurvived fires when the arguing window closes with no objection
// pending. Holding the floor for the whole window wins the entire game.
func (g *objectionGame) speakerSurvived() {
	if g.phase != objectionArguing {
		return
	}
	winner := g.l.participantByPersistentID(g.speakerPID)
	if winner != nil {
		g.log.add("%s held the floor unchallenged", winner.Name)
	}
	g.end(winner, "argument_stood")
}

func (g *objectionGame) HandleAction(p *Participant, action string, payload json.RawMessage) error {
	if g.phase == objectionFinished {
		return errInvalidState("The game is over")
	}

	switch action {
	case "requestObjectionState":
		g.resync(p)
		return nil

	case "makeObjection":
		var req struct {
			Statement string `json:"statement"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return errInvalidInput("Malformed objection")
		}
		return g.handleObjection(p, strings.TrimSpace(req.Statement))

	case "finishObjectionArgument":
		if g.phase != objectionRaised {
			return errInvalidState("No objection is being argued")
		}
		if p.PersistentID != g.objectorPID {
			return errForbidden("Only the objector can rest their case")
		}
		g.beginVoting()
		return nil

	case "objectionVote":
		var req struct {
			Sustain bool `json:"sustain"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return errInvalidInput("Malformed vote")
		}
		return g.handleVote(p, req.Sustain)

	case "rerollVote":
		return g.handleReroll(p)

	case "toggleSpicyTopics":
		if !p.IsHost {
			return errForbidden("Only the host can change the topic pool")
		}
		g.spicy = !g.spicy
		g.l.notify.broadcast(g.l.code, "spicyTopicsToggled", map[string]bool{"enabled": g.spicy})
		return nil

	default:
		return errInvalidInput("Unsupported action %q", action)
	}
}

func (g *objectionGame) handleObjection(p *Participant, statement string) error {
	if g.phase != objectionArguing {
		return errInvalidState("Objections can only interrupt an argument")
	}
	if p.PersistentID == g.speakerPID {
		return errInvalidInput("You cannot object to yourself")
	}
	if g.lives[p.PersistentID] <= 0 {
		return errForbidden("Eliminated players cannot object")
	}
	if statement == "" {
		return errInvalidInput("An objection needs a statement")
	}

	g.phase = objectionRaised
	g.objectorPID = p.PersistentID
	g.objectionText = statement
	g.log.add("%s objects: %q", p.Name, statement)

	g.broadcastState("objectionRaised", int(objectionRebutFor/time.Second))
	g.l.startClock(objectionRebutFor, g.l.tickBroadcast("objectionTimerUpdate"), func() {
		// Ran out the clock arguing the objection: automatic overrule.
		g.resolveVerdict(0, 1)
	})
	return nil
}

func (g *objectionGame) beginVoting() {
	g.phase = objectionVoting
	clear(g.votes)

	g.broadcastState("objectionVotingStarted", int(objectionVotingFor/time.Second))
	g.l.startClock(objectionVotingFor, g.l.tickBroadcast("objectionTimerUpdate"), g.tallyVotes)
}

// handleVote records a sustain/overrule ballot. The objector sits the vote
// out; everyone else alive, the speaker included, gets one.
func (g *objectionGame) handleVote(p *Participant, sustain bool) error {
	if g.phase != objectionVoting {
		return errInvalidState("Voting is not open")
	}
	if p.PersistentID == g.objectorPID {
		return errForbidden("The objector does not vote on their own objection")
	}
	if g.lives[p.PersistentID] <= 0 {
		return errForbidden("Eliminated players cannot vote")
	}

	g.votes[p.PersistentID] = sustain

	eligible := g.eligibleVoters()
	g.l.notify.broadcast(g.l.code, "objectionVoteUpdate", objectionVoteUpdatePayload{
		VotesReceived: len(g.votes),
		Eligible:      eligible,
	})

	if len(g.votes) >= eligible {
		g.tallyVotes()
	}
	return nil
}

func (g *objectionGame) eligibleVoters() int {
	n := 0
	for _, p := range g.l.players {
		if p.Connected && g.lives[p.PersistentID] > 0 && p.PersistentID != g.objectorPID {
			n++
		}
	}
	return n
}

func (g *objectionGame) tallyVotes() {
	if g.phase != objectionVoting {
		return
	}
	sustain, overrule := 0, 0
	for _, s := range g.votes {
		if s {
			sustain++
		} else {
			overrule++
		}
	}
	g.resolveVerdict(sustain, overrule)
}

// resolveVerdict applies the crowd's decision. Sustained: the objector
// takes the floor with their own statement as the new topic. Overruled:
// the objector loses a life, then speaks next on a fresh topic unless the
// loss eliminated them. Ties overrule.
func (g *objectionGame) resolveVerdict(sustain, overrule int) {
	if g.phase != objectionRaised && g.phase != objectionVoting {
		return
	}

	objector := g.l.participantByPersistentID(g.objectorPID)
	sustained := sustain > overrule

	verdict := objectionVerdictPayload{
		Sustained: sustained,
		Sustain:   sustain,
		Overrule:  overrule,
		Objector:  objector,
	}

	if sustained {
		if objector != nil {
			g.log.add("Objection by %s sustained (%d-%d)", objector.Name, sustain, overrule)
		}
		verdict.LivesLeft = g.lives[g.objectorPID]
		g.l.notify.broadcast(g.l.code, "objectionVerdict", verdict)
		g.newRound(g.objectorPID, g.objectionText)
		return
	}

	g.lives[g.objectorPID]--
	verdict.LivesLeft = g.lives[g.objectorPID]
	if objector != nil {
		g.log.add("Objection by %s overruled (%d-%d), %d lives left",
			objector.Name, sustain, overrule, g.lives[g.objectorPID])
	}
	g.l.notify.broadcast(g.l.code, "objectionVerdict", verdict)

	if g.lives[g.objectorPID] <= 0 {
		if objector != nil {
			g.log.add("%s is out of lives", objector.Name)
		}
		if g.checkEnd() {
			return
		}
		g.newRound(g.pickSpeaker(), "")
		return
	}

	g.newRound(g.objectorPID, "")
}

// handleReroll swaps the current topic once a strict majority of living
// players asks for it. Nobody loses a life and the clock starts over.
func (g *objectionGame) handleReroll(p *Participant) error {
	if g.phase != objectionArguing {
		return errInvalidState("Topics can only be rerolled during an argument")
	}
	if g.lives[p.PersistentID] <= 0 {
		return errForbidden("Eliminated players cannot vote")
	}

	g.rerolls[p.PersistentID] = true

	required := g.aliveCount()/2 + 1
	g.l.notify.broadcast(g.l.code, "rerollUpdate", rerollUpdatePayload{
		Votes:    len(g.rerolls),
		Required: required,
	})

	if len(g.rerolls) >= required {
		clear(g.rerolls)
		g.topic = g.drawTopic()
		g.log.add("Topic rerolled to %q", g.topic)
		g.broadcastState("topicRerolled", int(objectionArguingFor/time.Second))
		g.l.startClock(objectionArguingFor, g.l.tickBroadcast("objectionTimerUpdate"), g.speakerSurvived)
	}
	return nil
}

func (g *objectionGame) aliveCount() int {
	n := 0
	for _, lives := range g.lives {
		if lives > 0 {
			n++
		}
	}
	return n
}

// pickSpeaker draws the next speaker uniformly from the players still
// holding lives.
func (g *objectionGame) pickSpeaker() string {
	var pool []string
	for pid, lives := range g.lives {
		if lives > 0 {
			pool = append(pool, pid)
		}
	}
	if len(pool) == 0 {
		return g.speakerPID
	}
	return pool[rand.Intn(len(pool))]
}

func (g *objectionGame) checkEnd() bool {
	var survivor string
	alive := 0
	for pid, lives := range g.lives {
		if lives > 0 {
			alive++
			survivor = pid
		}
	}
	if alive > 1 {
		return false
	}

	winner := g.l.participantByPersistentID(survivor)
	g.end(winner, "last_one_standing")
	return true
}

func (g *objectionGame) end(winner *Participant, reason string) {
	if g.phase == objectionFinished {
		return
	}
	g.phase = objectionFinished

	g.l.notify.broadcast(g.l.code, "objectionGameEnded", objectionResultPayload{
		Winner:   winner,
		Reason:   reason,
		Rounds:   g.round,
		Duration: int(time.Since(g.started) / time.Second),
		Log:      g.log.tail(50),
	})
	g.l.scheduleReset(g, objectionDisplayFor)
}

func (g *objectionGame) HandleDeparture(p *Participant) {
	if g.phase == objectionFinished {
		return
	}
	if _, dealt := g.lives[p.PersistentID]; !dealt {
		return
	}

	g.lives[p.PersistentID] = 0
	delete(g.votes, p.PersistentID)
	delete(g.rerolls, p.PersistentID)
	g.log.add("%s left the game", p.Name)

	if g.checkEnd() {
		return
	}

	switch p.PersistentID {
	case g.speakerPID:
		g.newRound(g.pickSpeaker(), "")
	case g.objectorPID:
		if g.phase == objectionRaised || g.phase == objectionVoting {
			g.newRound(g.pickSpeaker(), "")
		}
	default:
		if g.phase == objectionVoting {
			eligible := g.eligibleVoters()
			if eligible > 0 && len(g.votes) >= eligible {
				g.tallyVotes()
			}
		}
	}
}

func (g *objectionGame) HandleReconnect(p *Participant) {
	g.resync(p)
}

func (g *objectionGame) resync(p *Participant) {
	g.l.notify.unicast(p.ID, "objectionState", objectionStatePayload{
		Phase:         g.phase,
		Round:         g.round,
		Speaker:       g.l.participantByPersistentID(g.speakerPID),
		Topic:         g.topic,
		Objector:      g.l.participantByPersistentID(g.objectorPID),
		ObjectionText: g.objectionText,
		Players:       g.playerStates(),
		TimeRemaining: g.l.remaining(),
		SpicyTopics:   g.spicy,
		Log:           g.log.tail(20),
	})
}

func (g *objectionGame) playerStates() []objectionPlayerState {
	states := make([]objectionPlayerState, 0, len(g.l.players))
	for _, p := range g.l.players {
		lives, dealt := g.lives[p.PersistentID]
		if !dealt {
			continue
		}
		states = append(states, objectionPlayerState{Player: p, Lives: lives})
	}
	return states
}

func (g *objectionGame) broadcastState(event string, timeRemaining int) {
	g.l.notify.broadcast(g.l.code, event, objectionStatePayload{
		Phase:         g.phase,
		Round:         g.round,
		Speaker:       g.l.participantByPersistentID(g.speakerPID),
		Topic:         g.topic,
		Objector:      g.l.participantByPersistentID(g.objectorPID),
		ObjectionText: g.objectionText,
		Players:       g.playerStates(),
		TimeRemaining: timeRemaining,
		SpicyTopics:   g.spicy,
	})
}
