package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startObjection(t *testing.T, names ...string) (*Lobby, *recorder, *objectionGame) {
	t.Helper()

	l, rec := newTestLobby(t, names...)

	var g *objectionGame
	locked(l, func() {
		require.NoError(t, l.startGameDirect(participant(l, names[0]), GameObjection))
		l.stopClock()
		g = l.game.(*objectionGame)
	})
	return l, rec, g
}

func objectionSpeaker(l *Lobby, g *objectionGame) *Participant {
	return l.participantByPersistentID(g.speakerPID)
}

// raiseObjection has someone other than the speaker object with the given
// statement and immediately rest their case, opening the vote.
func raiseObjection(t *testing.T, l *Lobby, g *objectionGame, statement string) *Participant {
	t.Helper()

	var objector *Participant
	for _, p := range l.players {
		if p.PersistentID != g.speakerPID && g.lives[p.PersistentID] > 0 {
			objector = p
			break
		}
	}
	require.NotNil(t, objector)

	payload, _ := json.Marshal(map[string]string{"statement": statement})
	require.NoError(t, g.HandleAction(objector, "makeObjection", payload))
	l.stopClock()
	require.NoError(t, g.HandleAction(objector, "finishObjectionArgument", nil))
	l.stopClock()

	return objector
}

func castVerdict(t *testing.T, g *objectionGame, voter *Participant, sustain bool) {
	t.Helper()
	payload, _ := json.Marshal(map[string]bool{"sustain": sustain})
	require.NoError(t, g.HandleAction(voter, "objectionVote", payload))
}

func TestObjectionSetup(t *testing.T) {
	l, _, g := startObjection(t, "alice", "bob", "carol")

	locked(l, func() {
		assert.Equal(t, objectionArguing, g.phase)
		assert.Equal(t, 1, g.round)
		assert.NotEmpty(t, g.topic)
		assert.NotNil(t, objectionSpeaker(l, g))
		for _, p := range l.players {
			assert.Equal(t, objectionStartingLives, g.lives[p.PersistentID])
		}
	})
}

func TestObjectionSpeakerSurvives(t *testing.T) {
	l, rec, g := startObjection(t, "alice", "bob", "carol")

	locked(l, func() {
		speaker := objectionSpeaker(l, g)
		g.speakerSurvived()

		result, ok := rec.lastBroadcast("objectionGameEnded").(objectionResultPayload)
		require.True(t, ok)
		assert.Equal(t, speaker, result.Winner)
		assert.Equal(t, "argument_stood", result.Reason)
		assert.True(t, g.Finished())
	})
}

func TestObjectionVerdicts(t *testing.T) {
	t.Run("sustained objection hands the floor to the objector", func(t *testing.T) {
		l, rec, g := startObjection(t, "alice", "bob", "carol")

		locked(l, func() {
			objector := raiseObjection(t, l, g, "Actually, cereal is a soup")

			for _, p := range l.players {
				if p != objector {
					castVerdict(t, g, p, true)
				}
			}
			l.stopClock()

			verdict, ok := rec.lastBroadcast("objectionVerdict").(objectionVerdictPayload)
			require.True(t, ok)
			assert.True(t, verdict.Sustained)

			assert.Equal(t, objectionArguing, g.phase)
			assert.Equal(t, objector.PersistentID, g.speakerPID)
			assert.Equal(t, "Actually, cereal is a soup", g.topic)
			assert.Equal(t, objectionStartingLives, g.lives[objector.PersistentID])
		})
	})

	t.Run("overruled objector loses a life but speaks next", func(t *testing.T) {
		l, rec, g := startObjection(t, "alice", "bob", "carol")

		locked(l, func() {
			objector := raiseObjection(t, l, g, "Hot dogs are sandwiches")

			for _, p := range l.players {
				if p != objector {
					castVerdict(t, g, p, false)
				}
			}
			l.stopClock()

			verdict, ok := rec.lastBroadcast("objectionVerdict").(objectionVerdictPayload)
			require.True(t, ok)
			assert.False(t, verdict.Sustained)
			assert.Equal(t, objectionStartingLives-1, verdict.LivesLeft)

			assert.Equal(t, objectionArguing, g.phase)
			assert.Equal(t, objector.PersistentID, g.speakerPID)
			assert.NotEqual(t, "Hot dogs are sandwiches", g.topic)
		})
	})

	t.Run("a tied vote overrules", func(t *testing.T) {
		l, _, g := startObjection(t, "alice", "bob", "carol")

		locked(l, func() {
			objector := raiseObjection(t, l, g, "Ties go to the objector")

			var voters []*Participant
			for _, p := range l.players {
				if p != objector {
					voters = append(voters, p)
				}
			}
			castVerdict(t, g, voters[0], true)
			castVerdict(t, g, voters[1], false)
			l.stopClock()

			assert.Equal(t, objectionStartingLives-1, g.lives[objector.PersistentID])
		})
	})

	t.Run("the objector does not vote on their own objection", func(t *testing.T) {
		l, _, g := startObjection(t, "alice", "bob", "carol")

		locked(l, func() {
			objector := raiseObjection(t, l, g, "I vote for myself")

			payload, _ := json.Marshal(map[string]bool{"sustain": true})
			err := g.HandleAction(objector, "objectionVote", payload)
			assert.Equal(t, codeForbidden, errorCode(err))
			l.stopClock()
		})
	})

	t.Run("lives never go back up", func(t *testing.T) {
		l, _, g := startObjection(t, "alice", "bob", "carol", "dave")

		locked(l, func() {
			for round := 0; round < 2; round++ {
				objector := raiseObjection(t, l, g, "Wrong again")
				before := g.lives[objector.PersistentID]

				for _, p := range l.players {
					if p != objector && g.lives[p.PersistentID] > 0 {
						castVerdict(t, g, p, false)
					}
				}
				l.stopClock()

				assert.Equal(t, before-1, g.lives[objector.PersistentID])
			}
		})
	})
}

func TestObjectionElimination(t *testing.T) {
	t.Run("running out of lives eliminates", func(t *testing.T) {
		l, _, g := startObjection(t, "alice", "bob", "carol")

		locked(l, func() {
			objector := raiseObjection(t, l, g, "Last gasp")
			g.lives[objector.PersistentID] = 1

			for _, p := range l.players {
				if p != objector {
					castVerdict(t, g, p, false)
				}
			}
			l.stopClock()

			assert.Equal(t, 0, g.lives[objector.PersistentID])
			assert.False(t, g.Finished())
			assert.NotEqual(t, objector.PersistentID, g.speakerPID)
		})
	})

	t.Run("the last player standing wins", func(t *testing.T) {
		l, rec, g := startObjection(t, "alice", "bob", "carol")

		locked(l, func() {
			// Two players are already out; the next elimination ends it.
			var out []*Participant
			for _, p := range l.players {
				if p.PersistentID != g.speakerPID {
					out = append(out, p)
				}
			}
			g.lives[out[0].PersistentID] = 0

			objector := out[1]
			payload, _ := json.Marshal(map[string]string{"statement": "Desperation"})
			require.NoError(t, g.HandleAction(objector, "makeObjection", payload))
			l.stopClock()
			g.lives[objector.PersistentID] = 1
			g.resolveVerdict(0, 1)

			result, ok := rec.lastBroadcast("objectionGameEnded").(objectionResultPayload)
			require.True(t, ok)
			assert.Equal(t, "last_one_standing", result.Reason)
			require.NotNil(t, result.Winner)
			assert.Equal(t, g.speakerPID, result.Winner.PersistentID)
			assert.True(t, g.Finished())
		})
	})

	t.Run("the replacement speaker is drawn at random from the living", func(t *testing.T) {
		replacements := map[string]int{}

		for i := 0; i < 40; i++ {
			l, _, g := startObjection(t, "alice", "bob", "carol", "dave")

			locked(l, func() {
				speaker := objectionSpeaker(l, g)
				l.handleDisconnect(speaker)
				l.stopClock()

				require.NotEqual(t, speaker.PersistentID, g.speakerPID)
				require.Greater(t, g.lives[g.speakerPID], 0)
				replacements[g.speakerPID]++
			})
		}

		// Uniform draws over 40 rounds must land on more than one player.
		assert.Greater(t, len(replacements), 1)
	})

	t.Run("a departing speaker forfeits the round, not the game", func(t *testing.T) {
		l, _, g := startObjection(t, "alice", "bob", "carol")

		locked(l, func() {
			speaker := objectionSpeaker(l, g)
			round := g.round

			l.handleDisconnect(speaker)
			l.stopClock()

			assert.False(t, g.Finished())
			assert.Equal(t, round+1, g.round)
			assert.NotEqual(t, speaker.PersistentID, g.speakerPID)
			assert.Equal(t, 0, g.lives[speaker.PersistentID])
		})
	})
}

func TestObjectionReroll(t *testing.T) {
	l, rec, g := startObjection(t, "alice", "bob", "carol")

	locked(l, func() {
		before := map[string]int{}
		for pid, lives := range g.lives {
			before[pid] = lives
		}

		require.NoError(t, g.HandleAction(participant(l, "alice"), "rerollVote", nil))
		assert.Nil(t, rec.lastBroadcast("topicRerolled"))

		require.NoError(t, g.HandleAction(participant(l, "bob"), "rerollVote", nil))
		l.stopClock()

		assert.NotNil(t, rec.lastBroadcast("topicRerolled"))
		for pid, lives := range g.lives {
			assert.Equal(t, before[pid], lives)
		}
	})
}

func TestSpicyTopicsToggle(t *testing.T) {
	l, _, g := startObjection(t, "alice", "bob", "carol")

	locked(l, func() {
		err := g.HandleAction(participant(l, "bob"), "toggleSpicyTopics", nil)
		assert.Equal(t, codeForbidden, errorCode(err))
		assert.False(t, g.spicy)

		require.NoError(t, g.HandleAction(participant(l, "alice"), "toggleSpicyTopics", nil))
		assert.True(t, g.spicy)
	})
}

func TestObjectionReconnect(t *testing.T) {
	l, rec, g := startObjection(t, "alice", "bob", "carol", "dave")

	locked(l, func() {
		var bystander *Participant
		for _, p := range l.players {
			if p.PersistentID != g.speakerPID {
				bystander = p
				break
			}
		}

		l.handleDisconnect(bystander)
		bystander.ID = "conn2-" + bystander.Name
		l.handleReconnect(bystander)

		state, ok := rec.lastUnicast(bystander.ID, "objectionState").(objectionStatePayload)
		require.True(t, ok)
		assert.Equal(t, g.phase, state.Phase)
		assert.Equal(t, g.topic, state.Topic)
		assert.Equal(t, g.speakerPID, state.Speaker.PersistentID)
	})
}
