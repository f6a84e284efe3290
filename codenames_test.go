package main

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startCodenames(t *testing.T, names ...string) (*Lobby, *recorder, *codenamesGame) {
	t.Helper()

	l, rec := newTestLobby(t, names...)

	var g *codenamesGame
	locked(l, func() {
		require.NoError(t, l.startGameDirect(participant(l, names[0]), GameCodenames))
		g = l.game.(*codenamesGame)
	})
	return l, rec, g
}

func spymasterOf(l *Lobby, g *codenamesGame, team codenamesTeam) *Participant {
	return l.participantByPersistentID(g.spymasters[team])
}

func guesserOf(l *Lobby, g *codenamesGame, team codenamesTeam) *Participant {
	for _, p := range g.teamMembers(team) {
		if p.PersistentID != g.spymasters[team] {
			return p
		}
	}
	return nil
}

func cellOfColor(g *codenamesGame, color codenamesColor) int {
	for i, cell := range g.board {
		if cell.color == color && !cell.revealed {
			return i
		}
	}
	return -1
}

func giveClue(t *testing.T, g *codenamesGame, spymaster *Participant, word string, count int) {
	t.Helper()
	payload, _ := json.Marshal(codenamesClue{Word: word, Count: count})
	require.NoError(t, g.HandleAction(spymaster, "codenamesClue", payload))
}

func guessCell(g *codenamesGame, guesser *Participant, cell int) error {
	payload := json.RawMessage(fmt.Sprintf(`{"cell":%d}`, cell))
	return g.HandleAction(guesser, "codenamesGuess", payload)
}

func TestCodenamesBoard(t *testing.T) {
	l, _, g := startCodenames(t, "alice", "bob", "carol", "dave")

	locked(l, func() {
		counts := map[codenamesColor]int{}
		words := map[string]bool{}
		for _, cell := range g.board {
			counts[cell.color]++
			words[cell.word] = true
			assert.False(t, cell.revealed)
		}

		starting := codenamesColor(g.startingTeam)
		other := codenamesColor(otherTeam(g.startingTeam))
		assert.Equal(t, 9, counts[starting])
		assert.Equal(t, 8, counts[other])
		assert.Equal(t, 7, counts[colorNeutral])
		assert.Equal(t, 1, counts[colorAssassin])
		assert.Len(t, words, codenamesBoardSize)

		assert.Equal(t, 9, g.targets[g.startingTeam])
		assert.Equal(t, 8, g.targets[otherTeam(g.startingTeam)])
		assert.Equal(t, g.startingTeam, g.turn)
	})
}

func TestCodenamesTeams(t *testing.T) {
	l, rec, g := startCodenames(t, "alice", "bob", "carol", "dave")

	locked(l, func() {
		assert.Len(t, g.teamMembers(teamRed), 2)
		assert.Len(t, g.teamMembers(teamBlue), 2)
		require.NotNil(t, spymasterOf(l, g, teamRed))
		require.NotNil(t, spymasterOf(l, g, teamBlue))
		assert.NotEqual(t, g.spymasters[teamRed], g.spymasters[teamBlue])

		// Spymasters see the key card, guessers see only revealed cells.
		master := spymasterOf(l, g, g.turn)
		state, ok := rec.lastUnicast(master.ID, "codenamesState").(codenamesStatePayload)
		require.True(t, ok)
		assert.True(t, state.Spymaster)
		for _, cell := range state.Board {
			assert.NotEmpty(t, cell.Color)
		}

		guesser := guesserOf(l, g, g.turn)
		state, ok = rec.lastUnicast(guesser.ID, "codenamesState").(codenamesStatePayload)
		require.True(t, ok)
		assert.False(t, state.Spymaster)
		for _, cell := range state.Board {
			assert.Empty(t, cell.Color)
		}
	})
}

func TestCodenamesClue(t *testing.T) {
	t.Run("active spymaster only", func(t *testing.T) {
		l, _, g := startCodenames(t, "alice", "bob", "carol", "dave")

		locked(l, func() {
			payload, _ := json.Marshal(codenamesClue{Word: "OCEAN", Count: 2})

			err := g.HandleAction(guesserOf(l, g, g.turn), "codenamesClue", payload)
			assert.Equal(t, codeForbidden, errorCode(err))

			err = g.HandleAction(spymasterOf(l, g, otherTeam(g.turn)), "codenamesClue", payload)
			assert.Equal(t, codeForbidden, errorCode(err))

			giveClue(t, g, spymasterOf(l, g, g.turn), "OCEAN", 2)
			assert.Equal(t, 3, g.guessesLeft)
		})
	})

	t.Run("rejects malformed clues and double clues", func(t *testing.T) {
		l, _, g := startCodenames(t, "alice", "bob", "carol", "dave")

		locked(l, func() {
			master := spymasterOf(l, g, g.turn)

			for _, bad := range []codenamesClue{
				{Word: "", Count: 2},
				{Word: "OCEAN", Count: 0},
				{Word: "OCEAN", Count: 10},
			} {
				payload, _ := json.Marshal(bad)
				err := g.HandleAction(master, "codenamesClue", payload)
				assert.Equal(t, codeInvalidInput, errorCode(err), "clue %+v", bad)
			}

			giveClue(t, g, master, "OCEAN", 2)
			payload, _ := json.Marshal(codenamesClue{Word: "RIVER", Count: 1})
			err := g.HandleAction(master, "codenamesClue", payload)
			assert.Equal(t, codeInvalidState, errorCode(err))
		})
	})
}

func TestCodenamesGuessing(t *testing.T) {
	t.Run("finding the last words wins instantly", func(t *testing.T) {
		l, rec, g := startCodenames(t, "alice", "bob", "carol", "dave")

		locked(l, func() {
			team := g.turn
			guesser := guesserOf(l, g, team)

			giveClue(t, g, spymasterOf(l, g, team), "OCEAN", 2)
			g.found[team] = g.targets[team] - 2

			require.NoError(t, guessCell(g, guesser, cellOfColor(g, codenamesColor(team))))
			require.False(t, g.Finished())

			require.NoError(t, guessCell(g, guesser, cellOfColor(g, codenamesColor(team))))
			require.True(t, g.Finished())

			result, ok := rec.lastBroadcast("codenamesGameEnded").(codenamesResultPayload)
			require.True(t, ok)
			assert.Equal(t, team, result.Winner)
			assert.Equal(t, "all_words_found", result.Reason)

			err := guessCell(g, guesser, 0)
			assert.Equal(t, codeInvalidState, errorCode(err))
		})
	})

	t.Run("an enemy word counts for them and passes the turn", func(t *testing.T) {
		l, _, g := startCodenames(t, "alice", "bob", "carol", "dave")

		locked(l, func() {
			team := g.turn
			enemy := otherTeam(team)
			guesser := guesserOf(l, g, team)

			giveClue(t, g, spymasterOf(l, g, team), "OCEAN", 3)
			require.NoError(t, guessCell(g, guesser, cellOfColor(g, codenamesColor(enemy))))

			assert.Equal(t, 1, g.found[enemy])
			assert.Equal(t, enemy, g.turn)
			assert.Nil(t, g.clue)
		})
	})

	t.Run("a neutral word just passes the turn", func(t *testing.T) {
		l, _, g := startCodenames(t, "alice", "bob", "carol", "dave")

		locked(l, func() {
			team := g.turn
			guesser := guesserOf(l, g, team)

			giveClue(t, g, spymasterOf(l, g, team), "OCEAN", 3)
			require.NoError(t, guessCell(g, guesser, cellOfColor(g, colorNeutral)))

			assert.Equal(t, 0, g.found[team])
			assert.Equal(t, otherTeam(team), g.turn)
		})
	})

	t.Run("the assassin loses the game immediately", func(t *testing.T) {
		l, rec, g := startCodenames(t, "alice", "bob", "carol", "dave")

		locked(l, func() {
			team := g.turn
			guesser := guesserOf(l, g, team)

			giveClue(t, g, spymasterOf(l, g, team), "OCEAN", 1)
			require.NoError(t, guessCell(g, guesser, cellOfColor(g, colorAssassin)))

			result, ok := rec.lastBroadcast("codenamesGameEnded").(codenamesResultPayload)
			require.True(t, ok)
			assert.Equal(t, otherTeam(team), result.Winner)
			assert.Equal(t, "assassin_revealed", result.Reason)
		})
	})

	t.Run("guess bookkeeping", func(t *testing.T) {
		l, _, g := startCodenames(t, "alice", "bob", "carol", "dave")

		locked(l, func() {
			team := g.turn
			guesser := guesserOf(l, g, team)

			err := guessCell(g, guesser, 0)
			assert.Equal(t, codeInvalidState, errorCode(err), "no clue yet")

			giveClue(t, g, spymasterOf(l, g, team), "OCEAN", 1)

			err = guessCell(g, spymasterOf(l, g, team), 0)
			assert.Equal(t, codeForbidden, errorCode(err), "spymasters do not guess")

			err = guessCell(g, guesserOf(l, g, otherTeam(team)), 0)
			assert.Equal(t, codeInvalidState, errorCode(err), "not their turn")

			err = guessCell(g, guesser, 99)
			assert.Equal(t, codeInvalidInput, errorCode(err), "off the board")

			cell := cellOfColor(g, colorNeutral)
			require.NoError(t, guessCell(g, guesser, cell))
			g.turn = team
			g.clue = &codenamesClue{Word: "OCEAN", Count: 1}
			g.guessesLeft = 2
			err = guessCell(g, guesser, cell)
			assert.Equal(t, codeInvalidInput, errorCode(err), "already revealed")
		})
	})
}

func TestCodenamesEndTurn(t *testing.T) {
	l, _, g := startCodenames(t, "alice", "bob", "carol", "dave")

	locked(l, func() {
		team := g.turn

		err := g.HandleAction(guesserOf(l, g, team), "codenamesEndTurn", nil)
		assert.Equal(t, codeInvalidState, errorCode(err), "no clue, nothing to end")

		giveClue(t, g, spymasterOf(l, g, team), "OCEAN", 2)
		require.NoError(t, g.HandleAction(guesserOf(l, g, team), "codenamesEndTurn", nil))

		assert.Equal(t, otherTeam(team), g.turn)
		assert.Nil(t, g.clue)
	})
}

func TestCodenamesDepartures(t *testing.T) {
	t.Run("a transiently-away player keeps their seat and team", func(t *testing.T) {
		l, _, g := startCodenames(t, "alice", "bob", "carol", "dave")

		locked(l, func() {
			team := g.turn
			master := spymasterOf(l, g, team)

			l.handleDisconnect(master)

			assert.Equal(t, master.PersistentID, g.spymasters[team])
			assert.Equal(t, team, g.teams[master.PersistentID])
			assert.False(t, g.Finished())
		})
	})

	t.Run("a permanently departing spymaster is replaced by a teammate", func(t *testing.T) {
		l, _, g := startCodenames(t, "alice", "bob", "carol", "dave")

		locked(l, func() {
			team := g.turn
			master := spymasterOf(l, g, team)
			mate := guesserOf(l, g, team)

			l.removeParticipant(master.PersistentID)

			assert.Equal(t, mate.PersistentID, g.spymasters[team])
			assert.False(t, g.Finished())
		})
	})

	t.Run("an abandoned team forfeits for everyone", func(t *testing.T) {
		l, rec, g := startCodenames(t, "alice", "bob", "carol", "dave")

		locked(l, func() {
			team := g.turn
			master := spymasterOf(l, g, team)
			mate := guesserOf(l, g, team)

			l.removeParticipant(master.PersistentID)
			l.removeParticipant(mate.PersistentID)

			require.True(t, g.Finished())
			result, ok := rec.lastBroadcast("codenamesGameEnded").(codenamesResultPayload)
			require.True(t, ok)
			assert.Empty(t, result.Winner)
			assert.Equal(t, "team_abandoned", result.Reason)
		})
	})
}

func TestCodenamesReconnect(t *testing.T) {
	t.Run("a returning spymaster gets the key card back on a fresh connection", func(t *testing.T) {
		l, rec, g := startCodenames(t, "alice", "bob", "carol", "dave")

		locked(l, func() {
			team := g.turn
			master := spymasterOf(l, g, team)

			l.handleDisconnect(master)
			master.ID = "conn2-" + master.Name
			l.handleReconnect(master)

			state, ok := rec.lastUnicast(master.ID, "codenamesState").(codenamesStatePayload)
			require.True(t, ok)
			assert.True(t, state.Spymaster)
			assert.Equal(t, team, state.YourTeam)
			for _, cell := range state.Board {
				assert.NotEmpty(t, cell.Color)
			}
		})
	})

	t.Run("a returning guesser gets their team view back", func(t *testing.T) {
		l, rec, g := startCodenames(t, "alice", "bob", "carol", "dave")

		locked(l, func() {
			team := g.turn
			guesser := guesserOf(l, g, team)

			l.handleDisconnect(guesser)
			guesser.ID = "conn2-" + guesser.Name
			l.handleReconnect(guesser)

			state, ok := rec.lastUnicast(guesser.ID, "codenamesState").(codenamesStatePayload)
			require.True(t, ok)
			assert.False(t, state.Spymaster)
			assert.Equal(t, team, state.YourTeam)
			for _, cell := range state.Board {
				assert.Empty(t, cell.Color)
			}
		})
	})
}
