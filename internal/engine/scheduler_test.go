package engine

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestArmReplacesPendingDeadline(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	e := mustEngine(t, Options{Now: clock.Now})

	e.mu.Lock()
	e.armLocked(timerVerify, clock.Now().Add(45*time.Second))
	e.armLocked(timerVerify, clock.Now().Add(10*time.Second))
	deadline := e.timers[timerVerify]
	e.mu.Unlock()

	if !deadline.Equal(clock.Now().Add(10 * time.Second)) {
		t.Fatalf("re-arming must replace the pending deadline, got %v", deadline)
	}
}

func TestVerifyDeadlineSurvivesRestart(t *testing.T) {
	backend := NewInMemoryStateBackend()
	clock := newFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	e := mustEngine(t, Options{Backend: backend, Now: clock.Now})
	configure(t, e, "alice", 5, false)
	e.RecordActivity(ActivityEvent{Slug: "a"})
	wantDeadline := clock.Now().Add(45 * time.Second)
	if err := e.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	restarted := mustEngine(t, Options{Backend: backend, Now: clock.Now})
	if deadline, ok := restarted.timers[timerVerify]; !ok || !deadline.Equal(wantDeadline) {
		t.Fatalf("verification deadline lost across restart: %v", restarted.timers)
	}
}

func TestFireTimerIgnoresReplacedDeadline(t *testing.T) {
	remote := &fakeRemote{}
	clock := newFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	e := mustEngine(t, Options{Remote: remote, Now: clock.Now})
	configure(t, e, "alice", 5, false)

	e.mu.Lock()
	e.armLocked(timerVerify, clock.Now().Add(time.Hour))
	e.mu.Unlock()

	// A stale in-process timer firing before the replaced deadline is due
	// must not reach the network.
	e.fireTimer(timerVerify)
	if calls := atomic.LoadInt32(&remote.activityCalls); calls != 0 {
		t.Fatalf("stale fire must be ignored, got %d remote calls", calls)
	}

	clock.Advance(2 * time.Hour)
	e.fireTimer(timerVerify)
	if calls := atomic.LoadInt32(&remote.activityCalls); calls != 1 {
		t.Fatalf("due fire must reconcile, got %d remote calls", calls)
	}
	if _, ok := e.timers[timerVerify]; ok {
		t.Fatalf("fired one-shot deadline must be consumed")
	}
}

func TestOverdueBypassExpiryFiresImmediatelyOnStartup(t *testing.T) {
	backend := NewInMemoryStateBackend()
	clock := newFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))

	e := mustEngine(t, Options{Backend: backend, Now: clock.Now})
	configure(t, e, "alice", 5, false)
	e.ActivateBypass()
	if err := e.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// The process slept through the expiry; firing the re-armed timer at
	// startup clears the window but keeps the day spent.
	clock.Advance(4 * time.Hour)
	restarted := mustEngine(t, Options{Backend: backend, Now: clock.Now})
	restarted.fireTimer(timerBypass)

	snap := restarted.Snapshot()
	if snap.BypassExpiresAt != nil {
		t.Fatalf("overdue expiry did not clear the bypass window")
	}
	if !snap.BypassUsed {
		t.Fatalf("expiry must not refund the daily bypass")
	}
}
