package main

import (
	"encoding/json"
	"math/rand"
	"time"
)

const (
	mafiaNightFor   = 120 * time.Second
	mafiaDayFor     = 180 * time.Second
	mafiaVotingFor  = 90 * time.Second
	mafiaDisplayFor = 15 * time.Second
	mafiaRevealWait = 3 * time.Second
)

type mafiaPhase string

const (
	mafiaNight    mafiaPhase = "night"
	mafiaDay      mafiaPhase = "day"
	mafiaVoting   mafiaPhase = "voting"
	mafiaReveal   mafiaPhase = "reveal"
	mafiaFinished mafiaPhase = "finished"
)

type mafiaRole string

const (
	roleMafia     mafiaRole = "mafia"
	roleDetective mafiaRole = "detective"
	roleDoctor    mafiaRole = "doctor"
	roleVillager  mafiaRole = "villager"
)

// mafiaGame is the classic social deduction loop. A hidden mafia picks a
// victim each night and the town votes someone out each day, with the
// detective and doctor tilting the odds.
type mafiaGame struct {
	l *Lobby

	phase mafiaPhase
	day   int

	roles map[string]mafiaRole // persistent id -> role, fixed at deal time
	alive map[string]bool      // persistent id set

	killTarget string // persistent id picked by the mafia tonight
	saveTarget string // persistent id shielded by the doctor tonight

	votes map[string]string // voter persistent id -> target persistent id

	started time.Time
}

type mafiaRolePayload struct {
	Role      mafiaRole `json:"role"`
	Teammates []string  `json:"teammates,omitempty"` // fellow mafia, names
	Alive     bool      `json:"alive"`
}

type mafiaPlayerState struct {
	Player *Participant `json:"player"`
	Alive  bool         `json:"alive"`
}

type mafiaPhasePayload struct {
	Phase         mafiaPhase         `json:"phase"`
	Day           int                `json:"day"`
	TimeRemaining int                `json:"timeRemaining"`
	Players       []mafiaPlayerState `json:"players"`
}

type mafiaNightResultPayload struct {
	Killed *Participant `json:"killed,omitempty"`
	Saved  bool         `json:"saved"`
}

type mafiaVoteUpdatePayload struct {
	VotesReceived int `json:"votesReceived"`
	AliveCount    int `json:"aliveCount"`
}

type mafiaEliminationPayload struct {
	Eliminated *Participant `json:"eliminated,omitempty"`
	Role       mafiaRole    `json:"role,omitempty"`
	Tie        bool         `json:"tie"`
}

type investigationPayload struct {
	Target  string `json:"target"`
	IsMafia bool   `json:"isMafia"`
}

type mafiaRoleReveal struct {
	Player *Participant `json:"player"`
	Role   mafiaRole    `json:"role"`
}

type mafiaResultPayload struct {
	Winner   string            `json:"winner"` // "mafia", "villagers" or "nobody"
	Reason   string            `json:"reason"`
	Roles    []mafiaRoleReveal `json:"roles"`
	Days     int               `json:"days"`
	Duration int               `json:"duration"`
}

func newMafiaGame(l *Lobby) *mafiaGame {
	return &mafiaGame{
		l:       l,
		phase:   mafiaNight,
		day:     1,
		roles:   make(map[string]mafiaRole),
		alive:   make(map[string]bool),
		votes:   make(map[string]string),
		started: time.Now(),
	}
}

func (g *mafiaGame) Type() GameType { return GameMafia }

func (g *mafiaGame) Finished() bool { return g.phase == mafiaFinished }

// Start deals roles to the connected players: a third of the town is
// mafia, one player is the detective, and a doctor joins from six players
// up. Everyone else is a villager.
func (g *mafiaGame) Start() {
	players := g.l.connectedPlayers()
	shuffled := make([]*Participant, len(players))
	copy(shuffled, players)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	mafiaCount := len(shuffled) / 3
	idx := 0
	for ; idx < mafiaCount; idx++ {
		g.roles[shuffled[idx].PersistentID] = roleMafia
	}
	g.roles[shuffled[idx].PersistentID] = roleDetective
	idx++
	if len(shuffled) >= 6 {
		g.roles[shuffled[idx].PersistentID] = roleDoctor
		idx++
	}
	for ; idx < len(shuffled); idx++ {
		g.roles[shuffled[idx].PersistentID] = roleVillager
	}

	for _, p := range players {
		g.alive[p.PersistentID] = true
	}

	logf(g.l.cfg, "GAMES: Mafia in %s: %d players, %d mafia", g.l.code, len(players), mafiaCount)

	for _, p := range players {
		g.sendRole(p)
	}

	g.beginNight()
}

func (g *mafiaGame) sendRole(p *Participant) {
	role, ok := g.roles[p.PersistentID]
	if !ok {
		return
	}

	payload := mafiaRolePayload{Role: role, Alive: g.alive[p.PersistentID]}
	if role == roleMafia {
		for pid, r := range g.roles {
			if r != roleMafia || pid == p.PersistentID {
				continue
			}
			if mate := g.l.participantByPersistentID(pid); mate != nil {
				payload.Teammates = append(payload.Teammates, mate.Name)
			}
		}
	}

	g.l.notify.unicast(p.ID, "mafiaRoleAssigned", payload)
}

func (g *mafiaGame) HandleAction(p *Participant, action string, payload json.RawMessage) error {
	if g.phase == mafiaFinished {
		return errInvalidState("The game is over")
	}

	switch action {
	case "requestMafiaRole":
		g.resync(p)
		return nil

	case "mafiaAction":
		var req struct {
			TargetPlayerID string `json:"targetPlayerId"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return errInvalidInput("Malformed action")
		}
		return g.handleNightAction(p, req.TargetPlayerID)

	case "mafiaVote":
		var req struct {
			VotedPlayerID string `json:"votedPlayerId"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return errInvalidInput("Malformed vote")
		}
		return g.handleVote(p, req.VotedPlayerID)

	default:
		return errInvalidInput("Unsupported action %q", action)
	}
}

// handleNightAction routes one night choice per special role: mafia mark
// the kill, the doctor shields, the detective peeks at an alignment.
func (g *mafiaGame) handleNightAction(p *Participant, targetID string) error {
	if g.phase != mafiaNight {
		return errInvalidState("Night actions are only available at night")
	}
	if !g.alive[p.PersistentID] {
		return errForbidden("Dead players cannot act")
	}

	target := g.resolveTarget(targetID)
	if target == nil || !g.alive[target.PersistentID] {
		return errInvalidInput("Invalid target")
	}

	switch g.roles[p.PersistentID] {
	case roleMafia:
		if g.roles[target.PersistentID] == roleMafia {
			return errInvalidInput("You cannot target your own team")
		}
		g.killTarget = target.PersistentID

	case roleDoctor:
		g.saveTarget = target.PersistentID

	case roleDetective:
		g.l.notify.unicast(p.ID, "investigationResult", investigationPayload{
			Target:  target.Name,
			IsMafia: g.roles[target.PersistentID] == roleMafia,
		})
		return nil

	default:
		return errForbidden("Villagers sleep through the night")
	}

	g.l.notify.unicast(p.ID, "actionConfirmed", noticePayload{
		PlayerName: target.Name,
		Message:    "Action registered",
	})
	return nil
}

func (g *mafiaGame) handleVote(p *Participant, targetID string) error {
	if g.phase != mafiaVoting {
		return errInvalidState("Voting is not open")
	}
	if !g.alive[p.PersistentID] {
		return errForbidden("Dead players cannot vote")
	}

	target := g.resolveTarget(targetID)
	if target == nil || !g.alive[target.PersistentID] {
		return errInvalidInput("Invalid target")
	}

	g.votes[p.PersistentID] = target.PersistentID

	aliveVoters := g.aliveConnectedCount()
	g.l.notify.broadcast(g.l.code, "mafiaVoteUpdate", mafiaVoteUpdatePayload{
		VotesReceived: len(g.votes),
		AliveCount:    aliveVoters,
	})

	if len(g.votes) >= aliveVoters {
		g.endVoting()
	}
	return nil
}

func (g *mafiaGame) resolveTarget(id string) *Participant {
	for _, other := range g.l.players {
		if other.ID == id {
			return other
		}
	}
	return nil
}

func (g *mafiaGame) aliveConnectedCount() int {
	n := 0
	for _, p := range g.l.players {
		if p.Connected && g.alive[p.PersistentID] {
			n++
		}
	}
	return n
}

func (g *mafiaGame) playerStates() []mafiaPlayerState {
	states := make([]mafiaPlayerState, 0, len(g.l.players))
	for _, p := range g.l.players {
		if _, dealt := g.roles[p.PersistentID]; !dealt {
			continue
		}
		states = append(states, mafiaPlayerState{Player: p, Alive: g.alive[p.PersistentID]})
	}
	return states
}

func (g *mafiaGame) broadcastPhase(event string, d time.Duration) {
	g.l.notify.broadcast(g.l.code, event, mafiaPhasePayload{
		Phase:         g.phase,
		Day:           g.day,
		TimeRemaining: int(d / time.Second),
		Players:       g.playerStates(),
	})
}

func (g *mafiaGame) beginNight() {
	g.phase = mafiaNight
	g.killTarget = ""
	g.saveTarget = ""
	clear(g.votes)

	g.broadcastPhase("mafiaNightBegins", mafiaNightFor)
	g.l.startClock(mafiaNightFor, g.l.tickBroadcast("mafiaTimerUpdate"), g.beginDay)
}

// beginDay resolves the night: the mafia's mark dies unless the doctor
// picked the same player, then the town gets its discussion window.
func (g *mafiaGame) beginDay() {
	if g.phase != mafiaNight {
		return
	}
	g.phase = mafiaDay

	result := mafiaNightResultPayload{}
	if g.killTarget != "" {
		if g.killTarget == g.saveTarget {
			result.Saved = true
		} else {
			g.alive[g.killTarget] = false
			result.Killed = g.l.participantByPersistentID(g.killTarget)
		}
	}

	g.l.notify.broadcast(g.l.code, "mafiaNightResult", result)

	if g.checkWin() {
		return
	}

	g.broadcastPhase("mafiaDayBegins", mafiaDayFor)
	g.l.startClock(mafiaDayFor, g.l.tickBroadcast("mafiaTimerUpdate"), g.beginVoting)
}

func (g *mafiaGame) beginVoting() {
	if g.phase != mafiaDay {
		return
	}
	g.phase = mafiaVoting
	clear(g.votes)

	g.broadcastPhase("mafiaVotingBegins", mafiaVotingFor)
	g.l.startClock(mafiaVotingFor, g.l.tickBroadcast("mafiaTimerUpdate"), g.endVoting)
}

// endVoting needs a strict majority of living players behind one name to
// eliminate anyone. Ties and split votes spare everybody. The ballot is
// final once tallied: the reveal phase holds the result on screen and
// rejects further votes until the next night.
func (g *mafiaGame) endVoting() {
	if g.phase != mafiaVoting {
		return
	}
	g.phase = mafiaReveal

	counts := make(map[string]int)
	for _, targetPID := range g.votes {
		counts[targetPID]++
	}

	aliveCount := 0
	for _, ok := range g.alive {
		if ok {
			aliveCount++
		}
	}
	needed := aliveCount/2 + 1

	var eliminatedPID string
	max, tie := 0, false
	for pid, n := range counts {
		switch {
		case n > max:
			max = n
			eliminatedPID = pid
			tie = false
		case n == max && n > 0:
			tie = true
		}
	}

	result := mafiaEliminationPayload{Tie: tie}
	if !tie && max >= needed && eliminatedPID != "" {
		g.alive[eliminatedPID] = false
		result.Eliminated = g.l.participantByPersistentID(eliminatedPID)
		result.Role = g.roles[eliminatedPID]
	}

	g.l.notify.broadcast(g.l.code, "mafiaPlayerEliminated", result)

	g.l.stopClock()
	g.l.afterGame(g, mafiaRevealWait, func() {
		if g.phase != mafiaReveal {
			return
		}
		if g.checkWin() {
			return
		}
		g.day++
		g.beginNight()
	})
}

// checkWin ends the game when a side has it locked: mafia parity with the
// town, or a mafia wiped out. Reports whether the game ended.
func (g *mafiaGame) checkWin() bool {
	mafiaAlive, townAlive := 0, 0
	for pid, ok := range g.alive {
		if !ok {
			continue
		}
		if g.roles[pid] == roleMafia {
			mafiaAlive++
		} else {
			townAlive++
		}
	}

	switch {
	case mafiaAlive == 0:
		g.end("villagers", "mafia_eliminated")
		return true
	case mafiaAlive >= townAlive:
		g.end("mafia", "mafia_majority")
		return true
	}
	return false
}

func (g *mafiaGame) end(winner, reason string) {
	if g.phase == mafiaFinished {
		return
	}
	g.phase = mafiaFinished

	reveals := make([]mafiaRoleReveal, 0, len(g.roles))
	for pid, role := range g.roles {
		if p := g.l.participantByPersistentID(pid); p != nil {
			reveals = append(reveals, mafiaRoleReveal{Player: p, Role: role})
		}
	}

	g.l.notify.broadcast(g.l.code, "mafiaGameEnded", mafiaResultPayload{
		Winner:   winner,
		Reason:   reason,
		Roles:    reveals,
		Days:     g.day,
		Duration: int(time.Since(g.started) / time.Second),
	})
	g.l.scheduleReset(g, mafiaDisplayFor)
}

func (g *mafiaGame) HandleDeparture(p *Participant) {
	if g.phase == mafiaFinished {
		return
	}
	if _, dealt := g.roles[p.PersistentID]; !dealt {
		return
	}

	g.alive[p.PersistentID] = false
	delete(g.votes, p.PersistentID)
	if g.killTarget == p.PersistentID {
		g.killTarget = ""
	}
	if g.saveTarget == p.PersistentID {
		g.saveTarget = ""
	}
	for voter, target := range g.votes {
		if target == p.PersistentID {
			delete(g.votes, voter)
		}
	}

	aliveCount := 0
	for _, ok := range g.alive {
		if ok {
			aliveCount++
		}
	}
	if aliveCount < 3 {
		g.end("nobody", "insufficient_players")
		return
	}
	if g.checkWin() {
		return
	}

	if g.phase == mafiaVoting {
		aliveVoters := g.aliveConnectedCount()
		if aliveVoters > 0 && len(g.votes) >= aliveVoters {
			g.endVoting()
		}
	}
}

func (g *mafiaGame) HandleReconnect(p *Participant) {
	g.resync(p)
}

func (g *mafiaGame) resync(p *Participant) {
	g.sendRole(p)

	event := "mafiaNightBegins"
	switch g.phase {
	case mafiaDay:
		event = "mafiaDayBegins"
	case mafiaVoting, mafiaReveal:
		event = "mafiaVotingBegins"
	}
	g.l.notify.unicast(p.ID, event, mafiaPhasePayload{
		Phase:         g.phase,
		Day:           g.day,
		TimeRemaining: g.l.remaining(),
		Players:       g.playerStates(),
	})
}
