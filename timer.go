package main

import (
	"time"
)

// phaseClock drives at most one countdown per lobby. Every (re)start bumps
// the generation; the ticker goroutine exits as soon as its generation has
// been superseded, so a stale timer can never fire against state that has
// already moved on to a later phase.
type phaseClock struct {
	gen      uint64
	deadline time.Time
}

// startClock begins a countdown of duration d, replacing any countdown in
// flight. onTick, when non-nil, fires roughly once per second with the
// whole seconds remaining; onExpire fires exactly once when the countdown
// reaches zero. Both callbacks run with l.mu held.
//
// Caller must hold l.mu.
func (l *Lobby) startClock(d time.Duration, onTick func(remaining int), onExpire func()) {
	l.clock.gen++
	gen := l.clock.gen
	l.clock.deadline = time.Now().Add(d)

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for range ticker.C {
			l.mu.Lock()

			if gen != l.clock.gen {
				l.mu.Unlock()
				return
			}

			remaining := int(time.Until(l.clock.deadline) / time.Second)
			if remaining <= 0 {
				// Consume the generation before firing so onExpire
				// may immediately start the next phase's countdown.
				l.clock.gen++
				l.clock.deadline = time.Time{}
				onExpire()
				l.mu.Unlock()
				return
			}

			if onTick != nil {
				onTick(remaining)
			}
			l.mu.Unlock()
		}
	}()
}

// stopClock cancels any pending countdown. Caller must hold l.mu.
func (l *Lobby) stopClock() {
	l.clock.gen++
	l.clock.deadline = time.Time{}
}

// remaining reports the whole seconds left on the active countdown, zero
// when none is running. Caller must hold l.mu.
func (l *Lobby) remaining() int {
	if l.clock.deadline.IsZero() {
		return 0
	}
	r := int(time.Until(l.clock.deadline) / time.Second)
	if r < 0 {
		r = 0
	}
	return r
}

// tickBroadcast returns an onTick callback that rebroadcasts the countdown
// every tenth second, and every second during the final stretch.
func (l *Lobby) tickBroadcast(event string) func(int) {
	return func(remaining int) {
		if remaining%10 == 0 || remaining <= 10 {
			l.notify.broadcast(l.code, event, timerUpdatePayload{TimeRemaining: remaining})
		}
	}
}

// afterGame runs fn once d has elapsed, with l.mu held, but only if g is
// still the lobby's active game. Used for scripted pauses and grace waits
// that overlap the main phase clock (reveal delays, reconnect windows).
func (l *Lobby) afterGame(g Game, d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		if l.game != g {
			return
		}
		fn()
	})
}
