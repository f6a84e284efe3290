package main

import (
	"encoding/json"
	"math/rand"
	"strings"
	"time"
)

const (
	codenamesBoardSize  = 25
	codenamesDisplayFor = 20 * time.Second
)

type codenamesTeam string

const (
	teamRed  codenamesTeam = "red"
	teamBlue codenamesTeam = "blue"
)

func otherTeam(t codenamesTeam) codenamesTeam {
	if t == teamRed {
		return teamBlue
	}
	return teamRed
}

type codenamesColor string

const (
	colorRed      codenamesColor = "red"
	colorBlue     codenamesColor = "blue"
	colorNeutral  codenamesColor = "neutral"
	colorAssassin codenamesColor = "assassin"
)

type codenamesCell struct {
	word     string
	color    codenamesColor
	revealed bool
}

type codenamesClue struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// codenamesGame is team word association. Spymasters see the key card and
// give one-word clues; their team guesses cells on a 5x5 board. Finding
// all of your team's words wins, touching the assassin loses on the spot.
type codenamesGame struct {
	l *Lobby

	board [codenamesBoardSize]codenamesCell

	teams      map[string]codenamesTeam      // persistent id -> team
	spymasters map[codenamesTeam]string      // team -> spymaster persistent id
	targets    map[codenamesTeam]int         // words each team must find
	found      map[codenamesTeam]int

	startingTeam codenamesTeam
	turn         codenamesTeam

	clue        *codenamesClue
	guessesLeft int

	done    bool
	log     *history
	started time.Time
}

type codenamesCellView struct {
	Word     string         `json:"word"`
	Color    codenamesColor `json:"color,omitempty"`
	Revealed bool           `json:"revealed"`
}

type codenamesMember struct {
	Player    *Participant `json:"player"`
	Spymaster bool         `json:"spymaster"`
}

type codenamesStatePayload struct {
	Board        []codenamesCellView                 `json:"board"`
	Teams        map[codenamesTeam][]codenamesMember `json:"teams"`
	Turn         codenamesTeam                       `json:"turn"`
	StartingTeam codenamesTeam                       `json:"startingTeam"`
	Clue         *codenamesClue                      `json:"clue,omitempty"`
	GuessesLeft  int                                 `json:"guessesLeft"`
	Found        map[codenamesTeam]int               `json:"found"`
	Targets      map[codenamesTeam]int               `json:"targets"`
	YourTeam     codenamesTeam                       `json:"yourTeam,omitempty"`
	Spymaster    bool                                `json:"spymaster"`
	Log          []historyEntry                      `json:"log,omitempty"`
}

type codenamesGuessPayload struct {
	Cell    int            `json:"cell"`
	Word    string         `json:"word"`
	Color   codenamesColor `json:"color"`
	Guesser string         `json:"guesser"`
	Team    codenamesTeam  `json:"team"`
}

type codenamesResultPayload struct {
	Winner   codenamesTeam         `json:"winner,omitempty"` // empty means nobody
	Reason   string                `json:"reason"`
	Found    map[codenamesTeam]int `json:"found"`
	Duration int                   `json:"duration"`
}

func newCodenamesGame(l *Lobby) *codenamesGame {
	return &codenamesGame{
		l:          l,
		teams:      make(map[string]codenamesTeam),
		spymasters: make(map[codenamesTeam]string),
		targets:    make(map[codenamesTeam]int),
		found:      make(map[codenamesTeam]int),
		log:        &history{},
		started:    time.Now(),
	}
}

func (g *codenamesGame) Type() GameType { return GameCodenames }

func (g *codenamesGame) Finished() bool { return g.done }

// Start shuffles the room onto alternating teams, appoints the first
// member of each as spymaster, and deals the board: nine words for the
// team that goes first, eight for the other, seven neutrals and the
// assassin, in shuffled positions.
func (g *codenamesGame) Start() {
	players := g.l.connectedPlayers()
	shuffled := make([]*Participant, len(players))
	copy(shuffled, players)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	teams := [2]codenamesTeam{teamRed, teamBlue}
	for i, p := range shuffled {
		team := teams[i%2]
		g.teams[p.PersistentID] = team
		if _, taken := g.spymasters[team]; !taken {
			g.spymasters[team] = p.PersistentID
		}
	}

	if rand.Intn(2) == 0 {
		g.startingTeam = teamRed
	} else {
		g.startingTeam = teamBlue
	}
	g.turn = g.startingTeam
	g.targets[g.startingTeam] = 9
	g.targets[otherTeam(g.startingTeam)] = 8

	g.dealBoard()

	logf(g.l.cfg, "GAMES: Codenames in %s: %d players, %s starts", g.l.code, len(players), g.startingTeam)
	g.log.add("Teams drawn, %s goes first", g.startingTeam)

	g.broadcastState()
}

func (g *codenamesGame) dealBoard() {
	words := make([]string, len(codenamesWordBank))
	copy(words, codenamesWordBank)
	rand.Shuffle(len(words), func(i, j int) {
		words[i], words[j] = words[j], words[i]
	})

	colors := make([]codenamesColor, 0, codenamesBoardSize)
	for i := 0; i < 9; i++ {
		colors = append(colors, codenamesColor(g.startingTeam))
	}
	for i := 0; i < 8; i++ {
		colors = append(colors, codenamesColor(otherTeam(g.startingTeam)))
	}
	for i := 0; i < 7; i++ {
		colors = append(colors, colorNeutral)
	}
	colors = append(colors, colorAssassin)
	rand.Shuffle(len(colors), func(i, j int) {
		colors[i], colors[j] = colors[j], colors[i]
	})

	for i := range g.board {
		g.board[i] = codenamesCell{word: words[i], color: colors[i]}
	}
}

func (g *codenamesGame) HandleAction(p *Participant, action string, payload json.RawMessage) error {
	if g.done {
		return errInvalidState("The game is over")
	}

	switch action {
	case "requestCodenamesState":
		g.sendState(p)
		return nil

	case "codenamesClue":
		var req codenamesClue
		if err := json.Unmarshal(payload, &req); err != nil {
			return errInvalidInput("Malformed clue")
		}
		return g.handleClue(p, req)

	case "codenamesGuess":
		var req struct {
			Cell int `json:"cell"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return errInvalidInput("Malformed guess")
		}
		return g.handleGuess(p, req.Cell)

	case "codenamesEndTurn":
		return g.handleEndTurn(p)

	default:
		return errInvalidInput("Unsupported action %q", action)
	}
}

func (g *codenamesGame) handleClue(p *Participant, clue codenamesClue) error {
	team, onBoard := g.teams[p.PersistentID]
	if !onBoard || team != g.turn || g.spymasters[team] != p.PersistentID {
		return errForbidden("Only the active team's spymaster can give a clue")
	}
	if g.clue != nil {
		return errInvalidState("A clue is already in play")
	}
	clue.Word = strings.TrimSpace(clue.Word)
	if clue.Word == "" || clue.Count < 1 || clue.Count > 9 {
		return errInvalidInput("A clue is one word and a count from 1 to 9")
	}

	g.clue = &clue
	g.guessesLeft = clue.Count + 1
	g.log.add("%s spymaster clues %q for %d", team, clue.Word, clue.Count)

	g.broadcastState()
	return nil
}

// handleGuess reveals a cell for the active team. Your own color keeps the
// turn going, anything else passes it, and the enemy's words count for
// them. The assassin ends the game immediately.
func (g *codenamesGame) handleGuess(p *Participant, cell int) error {
	team, onBoard := g.teams[p.PersistentID]
	if !onBoard {
		return errForbidden("You are not on a team")
	}
	if g.spymasters[team] == p.PersistentID {
		return errForbidden("Spymasters do not guess")
	}
	if team != g.turn {
		return errInvalidState("It is not your team's turn")
	}
	if g.clue == nil {
		return errInvalidState("Wait for your spymaster's clue")
	}
	if g.guessesLeft <= 0 {
		return errInvalidState("No guesses remaining")
	}
	if cell < 0 || cell >= codenamesBoardSize {
		return errInvalidInput("No such cell")
	}
	if g.board[cell].revealed {
		return errInvalidInput("That word is already revealed")
	}

	g.board[cell].revealed = true
	g.guessesLeft--

	revealed := g.board[cell]
	g.log.add("%s guesses %q: %s", p.Name, revealed.word, revealed.color)
	g.l.notify.broadcast(g.l.code, "codenamesReveal", codenamesGuessPayload{
		Cell:    cell,
		Word:    revealed.word,
		Color:   revealed.color,
		Guesser: p.Name,
		Team:    team,
	})

	switch revealed.color {
	case codenamesColor(team):
		g.found[team]++
		if g.found[team] >= g.targets[team] {
			g.end(team, "all_words_found")
			return nil
		}
		if g.guessesLeft <= 0 {
			g.passTurn()
		}

	case codenamesColor(otherTeam(team)):
		enemy := otherTeam(team)
		g.found[enemy]++
		if g.found[enemy] >= g.targets[enemy] {
			g.end(enemy, "all_words_found")
			return nil
		}
		g.passTurn()

	case colorNeutral:
		g.passTurn()

	case colorAssassin:
		g.end(otherTeam(team), "assassin_revealed")
		return nil
	}

	g.broadcastState()
	return nil
}

func (g *codenamesGame) handleEndTurn(p *Participant) error {
	team, onBoard := g.teams[p.PersistentID]
	if !onBoard || team != g.turn {
		return errInvalidState("It is not your team's turn")
	}
	if g.clue == nil {
		return errInvalidState("There is no turn to end")
	}

	g.log.add("%s passes for %s", p.Name, team)
	g.passTurn()
	g.broadcastState()
	return nil
}

func (g *codenamesGame) passTurn() {
	g.turn = otherTeam(g.turn)
	g.clue = nil
	g.guessesLeft = 0
}

func (g *codenamesGame) end(winner codenamesTeam, reason string) {
	if g.done {
		return
	}
	g.done = true

	for i := range g.board {
		g.board[i].revealed = true
	}
	g.broadcastState()

	g.l.notify.broadcast(g.l.code, "codenamesGameEnded", codenamesResultPayload{
		Winner:   winner,
		Reason:   reason,
		Found:    g.found,
		Duration: int(time.Since(g.started) / time.Second),
	})
	g.l.scheduleReset(g, codenamesDisplayFor)
}

func (g *codenamesGame) endNobody(reason string) {
	if g.done {
		return
	}
	g.done = true

	for i := range g.board {
		g.board[i].revealed = true
	}
	g.broadcastState()

	g.l.notify.broadcast(g.l.code, "codenamesGameEnded", codenamesResultPayload{
		Reason:   reason,
		Found:    g.found,
		Duration: int(time.Since(g.started) / time.Second),
	})
	g.l.scheduleReset(g, codenamesDisplayFor)
}

// HandleDeparture drops a player from their team once they are gone for
// good; a transiently-away player keeps their seat, team and spymaster
// badge through the reconnection grace. A permanently departing spymaster
// is replaced by the first remaining teammate, and a team left empty
// forfeits the game for everyone.
func (g *codenamesGame) HandleDeparture(p *Participant) {
	if g.done {
		return
	}
	team, onBoard := g.teams[p.PersistentID]
	if !onBoard {
		return
	}

	if g.l.participantByPersistentID(p.PersistentID) != nil {
		g.broadcastState()
		return
	}

	delete(g.teams, p.PersistentID)
	g.log.add("%s left team %s", p.Name, team)

	remaining := g.teamMembers(team)
	if len(remaining) == 0 {
		g.endNobody("team_abandoned")
		return
	}

	if g.spymasters[team] == p.PersistentID {
		g.spymasters[team] = remaining[0].PersistentID
		g.log.add("%s is now the %s spymaster", remaining[0].Name, team)
	}

	g.broadcastState()
}

func (g *codenamesGame) HandleReconnect(p *Participant) {
	g.sendState(p)
}

func (g *codenamesGame) teamMembers(team codenamesTeam) []*Participant {
	var members []*Participant
	for _, p := range g.l.players {
		if g.teams[p.PersistentID] == team {
			members = append(members, p)
		}
	}
	return members
}

// broadcastState sends each participant their own view of the board. Only
// spymasters see unrevealed colors; everyone sees the key card once the
// game is over.
func (g *codenamesGame) broadcastState() {
	for _, p := range g.l.players {
		if p.Connected {
			g.sendState(p)
		}
	}
}

func (g *codenamesGame) sendState(p *Participant) {
	team := g.teams[p.PersistentID]
	spymaster := team != "" && g.spymasters[team] == p.PersistentID

	view := make([]codenamesCellView, codenamesBoardSize)
	for i, cell := range g.board {
		view[i] = codenamesCellView{Word: cell.word, Revealed: cell.revealed}
		if cell.revealed || spymaster || g.done {
			view[i].Color = cell.color
		}
	}

	roster := map[codenamesTeam][]codenamesMember{teamRed: {}, teamBlue: {}}
	for _, other := range g.l.players {
		t, onBoard := g.teams[other.PersistentID]
		if !onBoard {
			continue
		}
		roster[t] = append(roster[t], codenamesMember{
			Player:    other,
			Spymaster: g.spymasters[t] == other.PersistentID,
		})
	}

	g.l.notify.unicast(p.ID, "codenamesState", codenamesStatePayload{
		Board:        view,
		Teams:        roster,
		Turn:         g.turn,
		StartingTeam: g.startingTeam,
		Clue:         g.clue,
		GuessesLeft:  g.guessesLeft,
		Found:        g.found,
		Targets:      g.targets,
		YourTeam:     team,
		Spymaster:    spymaster,
		Log:          g.log.tail(20),
	})
}
