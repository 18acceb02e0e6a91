// Package session controls the shared game clock. The coordinator is a
// small state machine over the pause reasons: the host toggle and quiz
// gating both suspend clock advancement, host pause outranks quiz pause,
// and resuming requires every active reason to clear. Ticks are strictly
// monotonic: a suspended clock resumes from the exact tick it stopped at.
package session

import (
	"errors"
	"fmt"
	"sync"

	"nivesh/internal/asset"
)

// Phase is the coordinator's externally visible state.
type Phase int

const (
	Running Phase = iota
	PausedHost
	PausedQuiz
	Ended
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case PausedHost:
		return "paused_host"
	case PausedQuiz:
		return "paused_quiz"
	case Ended:
		return "ended"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Clock is a game-time position. Tick is the total months elapsed since
// session start; receivers use it to detect missed or duplicated
// broadcasts.
type Clock struct {
	Tick  uint64 `json:"tick"`
	Year  int    `json:"year"`
	Month int    `json:"month"`
}

const gameYears = 20

var ErrSessionEnded = errors.New("session has ended")

// Coordinator gates clock advancement for one session.
type Coordinator struct {
	mu         sync.Mutex
	clock      Clock
	hostPaused bool
	ended      bool

	// quizGate maps player id -> the categories that player still owes a
	// quiz answer for. The quiz pause clears when the whole map empties.
	quizGate map[string]map[asset.Category]bool
}

func NewCoordinator() *Coordinator {
	return &Coordinator{
		clock:    Clock{Tick: 0, Year: 1, Month: 1},
		quizGate: make(map[string]map[asset.Category]bool),
	}
}

// Phase resolves the current state. Host pause wins over quiz pause so an
// in-quiz host pause behaves as a host pause until the host resumes.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phaseLocked()
}

func (c *Coordinator) phaseLocked() Phase {
	switch {
	case c.ended:
		return Ended
	case c.hostPaused:
		return PausedHost
	case len(c.quizGate) > 0:
		return PausedQuiz
	default:
		return Running
	}
}

// Clock returns the current game-time position.
func (c *Coordinator) Clock() Clock {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock
}

// Advance moves the clock one month forward if nothing suspends it.
// Returns the new clock and true on advancement; the unchanged clock and
// false while paused or after the session ends. The tick counter never
// skips and never repeats.
func (c *Coordinator) Advance() (Clock, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phaseLocked() != Running {
		return c.clock, false
	}
	if c.clock.Year == gameYears && c.clock.Month == 12 {
		c.ended = true
		return c.clock, false
	}
	c.clock.Tick++
	c.clock.Month++
	if c.clock.Month > 12 {
		c.clock.Month = 1
		c.clock.Year++
	}
	return c.clock, true
}

// SetHostPaused toggles the host's explicit pause.
func (c *Coordinator) SetHostPaused(paused bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return ErrSessionEnded
	}
	c.hostPaused = paused
	return nil
}

// RequireQuiz registers that a player owes an answer for a category quiz,
// suspending the clock for everyone until all required answers arrive.
func (c *Coordinator) RequireQuiz(playerID string, cat asset.Category) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return ErrSessionEnded
	}
	gate, ok := c.quizGate[playerID]
	if !ok {
		gate = make(map[asset.Category]bool)
		c.quizGate[playerID] = gate
	}
	gate[cat] = true
	return nil
}

// CompleteQuiz clears one player's obligation for one category. The clock
// resumes only once no player owes any answer and the host is not paused.
func (c *Coordinator) CompleteQuiz(playerID string, cat asset.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gate, ok := c.quizGate[playerID]
	if !ok {
		return
	}
	delete(gate, cat)
	if len(gate) == 0 {
		delete(c.quizGate, playerID)
	}
}

// DropPlayer removes a disconnected player's pending quiz obligations so
// a mid-quiz disconnect cannot wedge the whole session.
func (c *Coordinator) DropPlayer(playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.quizGate, playerID)
}

// PendingQuizzes reports how many players still owe answers.
func (c *Coordinator) PendingQuizzes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.quizGate)
}

// Ended reports whether the session reached its terminal state.
func (c *Coordinator) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}
