package engine

import (
	"testing"
	"time"
)

func TestStreakContinuesFromYesterday(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	e := mustEngine(t, Options{Now: clock.Now})
	configure(t, e, "alice", 1, false)
	e.mu.Lock()
	e.state.LastGoalMetDate = "2026-03-13"
	e.state.CurrentStreak = 4
	e.state.LongestStreak = 4
	e.persistLocked()
	e.mu.Unlock()

	snap := e.RecordActivity(ActivityEvent{Slug: "a"})
	if snap.CurrentStreak != 5 {
		t.Fatalf("expected streak 5 after consecutive day, got %d", snap.CurrentStreak)
	}
	if snap.LongestStreak != 5 {
		t.Fatalf("expected longest streak 5, got %d", snap.LongestStreak)
	}
	if snap.LastGoalMetDate != "2026-03-14" {
		t.Fatalf("expected lastGoalMetDate advanced to today, got %q", snap.LastGoalMetDate)
	}
}

func TestStreakRestartsAfterGap(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	e := mustEngine(t, Options{Now: clock.Now})
	configure(t, e, "alice", 1, false)
	e.mu.Lock()
	e.state.LastGoalMetDate = "2026-03-12"
	e.state.CurrentStreak = 4
	e.state.LongestStreak = 9
	e.persistLocked()
	e.mu.Unlock()

	snap := e.RecordActivity(ActivityEvent{Slug: "a"})
	if snap.CurrentStreak != 1 {
		t.Fatalf("expected streak reset to 1 after a gap, got %d", snap.CurrentStreak)
	}
	if snap.LongestStreak != 9 {
		t.Fatalf("longest streak must not shrink, got %d", snap.LongestStreak)
	}
}

func TestGoalTransitionFiresOncePerDay(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	e := mustEngine(t, Options{Now: clock.Now})
	configure(t, e, "alice", 1, false)

	first := e.RecordActivity(ActivityEvent{Slug: "a"})
	if first.CurrentStreak != 1 {
		t.Fatalf("expected streak 1, got %d", first.CurrentStreak)
	}

	// Simulate a second false→true edge the same day: drop back below the
	// goal, then cross it again.
	e.mu.Lock()
	e.state.SolvesToday = 0
	e.state.SolvedSlugs = map[string]bool{}
	e.persistLocked()
	e.mu.Unlock()

	second := e.RecordActivity(ActivityEvent{Slug: "b"})
	if second.CurrentStreak != 1 {
		t.Fatalf("second transition in one day must not advance the streak, got %d", second.CurrentStreak)
	}
	if second.LastGoalMetDate != "2026-03-14" {
		t.Fatalf("unexpected lastGoalMetDate %q", second.LastGoalMetDate)
	}
}

func TestDailyResetZeroesDailyFieldsOnly(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC))
	e := mustEngine(t, Options{Now: clock.Now})
	configure(t, e, "alice", 2, true)
	e.RecordActivity(ActivityEvent{Slug: "a"})
	e.RecordActivity(ActivityEvent{Slug: "b"})
	e.ActivateBypass()
	e.mu.Lock()
	e.state.DailySlug = "word-ladder"
	e.state.CurrentStreak = 3
	e.state.LongestStreak = 7
	e.persistLocked()
	e.mu.Unlock()

	clock.Set(time.Date(2026, 3, 15, 0, 0, 1, 0, time.UTC))
	e.runDailyReset()

	snap := e.Snapshot()
	if snap.SolvesToday != 0 || len(snap.Slugs) != 0 {
		t.Fatalf("daily counters not zeroed: %+v", snap.GoalState)
	}
	if snap.DailySolved || snap.DailySlug != "" {
		t.Fatalf("daily challenge identity not cleared: %+v", snap.GoalState)
	}
	if snap.BypassUsed || snap.BypassExpiresAt != nil {
		t.Fatalf("bypass eligibility not reset: %+v", snap.GoalState)
	}
	if snap.CurrentStreak != 3 || snap.LongestStreak != 7 {
		t.Fatalf("streak fields must survive the reset: %+v", snap.GoalState)
	}
}

func TestMissedResetRunsOnStartup(t *testing.T) {
	backend := NewInMemoryStateBackend()
	clock := newFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	e := mustEngine(t, Options{Backend: backend, Now: clock.Now})
	configure(t, e, "alice", 1, false)
	e.RecordActivity(ActivityEvent{Slug: "a"})
	if err := e.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// The process was down across midnight; the persisted reset deadline is
	// overdue at the next start.
	clock.Set(time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC))
	restarted := mustEngine(t, Options{Backend: backend, Now: clock.Now})
	snap := restarted.Snapshot()
	if snap.SolvesToday != 0 || len(snap.Slugs) != 0 {
		t.Fatalf("overdue reset did not run at startup: %+v", snap.GoalState)
	}
	if snap.CurrentStreak != 1 {
		t.Fatalf("streak must survive the startup reset, got %d", snap.CurrentStreak)
	}
	if deadline, ok := restarted.timers[timerDailyReset]; !ok || !deadline.Equal(time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("next reset not re-armed for the coming midnight: %v", restarted.timers)
	}
}
