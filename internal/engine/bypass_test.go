package engine

import (
	"testing"
	"time"
)

func TestBypassIsOneShotPerDay(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	e := mustEngine(t, Options{Now: clock.Now})
	configure(t, e, "alice", 5, false)

	first := e.ActivateBypass()
	if !first.Success {
		t.Fatalf("first activation failed: %s", first.Reason)
	}
	second := e.ActivateBypass()
	if second.Success {
		t.Fatalf("second activation must be refused")
	}
	if second.Reason != "Already used today" {
		t.Fatalf("unexpected refusal reason %q", second.Reason)
	}
}

func TestBypassExpiryLeavesUsedFlagSet(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	e := mustEngine(t, Options{Now: clock.Now})
	configure(t, e, "alice", 5, false)

	e.ActivateBypass()
	snap := e.Snapshot()
	if snap.BypassExpiresAt == nil || !snap.BypassActive {
		t.Fatalf("expected active bypass: %+v", snap.GoalState)
	}
	wantExpiry := clock.Now().Add(3 * time.Hour)
	if !snap.BypassExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected expiry %v, got %v", wantExpiry, snap.BypassExpiresAt)
	}

	clock.Advance(3*time.Hour + time.Second)
	e.expireBypass()

	snap = e.Snapshot()
	if snap.BypassExpiresAt != nil {
		t.Fatalf("expiry must clear the timestamp")
	}
	if !snap.BypassUsed {
		t.Fatalf("expiry must leave bypassUsed set so the day stays spent")
	}
	if refused := e.ActivateBypass(); refused.Success {
		t.Fatalf("a second bypass after expiry must still be refused")
	}
}

func TestBypassExpiryTimerIsArmedDurably(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	backend := NewInMemoryStateBackend()
	e := mustEngine(t, Options{Now: clock.Now, Backend: backend})
	configure(t, e, "alice", 5, false)
	e.ActivateBypass()

	deadline, ok := e.timers[timerBypass]
	if !ok {
		t.Fatalf("expiry timer not armed")
	}
	if !deadline.Equal(clock.Now().Add(3 * time.Hour)) {
		t.Fatalf("unexpected expiry deadline %v", deadline)
	}

	saved, err := backend.Load()
	if err != nil || saved == nil {
		t.Fatalf("snapshot load failed: %v", err)
	}
	if _, ok := saved.Timers[timerBypass]; !ok {
		t.Fatalf("expiry deadline not persisted: %v", saved.Timers)
	}
}
