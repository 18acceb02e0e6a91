package session

import (
	"testing"

	"nivesh/internal/asset"
)

func TestAdvanceMonotonic(t *testing.T) {
	c := NewCoordinator()
	prev := c.Clock()
	for i := 0; i < 30; i++ {
		clock, ok := c.Advance()
		if !ok {
			t.Fatalf("advance %d failed", i)
		}
		if clock.Tick != prev.Tick+1 {
			t.Fatalf("tick jumped from %d to %d", prev.Tick, clock.Tick)
		}
		prev = clock
	}
	if prev.Year != 3 || prev.Month != 7 {
		t.Fatalf("after 30 months: %d/%d", prev.Year, prev.Month)
	}
}

func TestHostPauseGatesClock(t *testing.T) {
	c := NewCoordinator()
	if err := c.SetHostPaused(true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if c.Phase() != PausedHost {
		t.Fatalf("phase = %v", c.Phase())
	}
	before := c.Clock()
	if _, ok := c.Advance(); ok {
		t.Fatalf("clock advanced while host-paused")
	}
	if err := c.SetHostPaused(false); err != nil {
		t.Fatalf("resume: %v", err)
	}
	clock, ok := c.Advance()
	if !ok {
		t.Fatalf("advance after resume failed")
	}
	// Resume continues from the exact suspended tick: no skip, no repeat.
	if clock.Tick != before.Tick+1 {
		t.Fatalf("tick = %d, want %d", clock.Tick, before.Tick+1)
	}
}

func TestQuizPauseWaitsForAllPlayers(t *testing.T) {
	c := NewCoordinator()
	if err := c.RequireQuiz("p1", asset.Gold); err != nil {
		t.Fatalf("require: %v", err)
	}
	if err := c.RequireQuiz("p2", asset.Gold); err != nil {
		t.Fatalf("require: %v", err)
	}
	if c.Phase() != PausedQuiz {
		t.Fatalf("phase = %v", c.Phase())
	}
	c.CompleteQuiz("p1", asset.Gold)
	if c.Phase() != PausedQuiz {
		t.Fatalf("one answer outstanding, phase = %v", c.Phase())
	}
	c.CompleteQuiz("p2", asset.Gold)
	if c.Phase() != Running {
		t.Fatalf("all answered, phase = %v", c.Phase())
	}
}

func TestHostPauseOutranksQuizPause(t *testing.T) {
	c := NewCoordinator()
	if err := c.RequireQuiz("p1", asset.Crypto); err != nil {
		t.Fatalf("require: %v", err)
	}
	if err := c.SetHostPaused(true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if c.Phase() != PausedHost {
		t.Fatalf("host pause must win, phase = %v", c.Phase())
	}
	// Resuming requires both conditions cleared.
	if err := c.SetHostPaused(false); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if c.Phase() != PausedQuiz {
		t.Fatalf("quiz still pending, phase = %v", c.Phase())
	}
	c.CompleteQuiz("p1", asset.Crypto)
	if c.Phase() != Running {
		t.Fatalf("phase = %v", c.Phase())
	}
}

func TestDropPlayerClearsGate(t *testing.T) {
	c := NewCoordinator()
	if err := c.RequireQuiz("p1", asset.Stocks); err != nil {
		t.Fatalf("require: %v", err)
	}
	c.DropPlayer("p1")
	if c.Phase() != Running {
		t.Fatalf("disconnect must not wedge the session, phase = %v", c.Phase())
	}
}

func TestTerminalState(t *testing.T) {
	c := NewCoordinator()
	for {
		if _, ok := c.Advance(); !ok {
			break
		}
	}
	if !c.Ended() {
		t.Fatalf("expected ended")
	}
	clock := c.Clock()
	if clock.Year != gameYears || clock.Month != 12 {
		t.Fatalf("terminal clock = %d/%d", clock.Year, clock.Month)
	}
	if err := c.SetHostPaused(true); err != ErrSessionEnded {
		t.Fatalf("no transitions out of ended, got %v", err)
	}
	if err := c.RequireQuiz("p1", asset.Gold); err != ErrSessionEnded {
		t.Fatalf("no transitions out of ended, got %v", err)
	}
	if _, ok := c.Advance(); ok {
		t.Fatalf("clock advanced after end")
	}
}
