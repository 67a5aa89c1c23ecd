package engine

import (
	"context"
	"time"
)

func goalMet(state GoalState) bool {
	if state.DailyGoal <= 0 {
		return false
	}
	if state.SolvesToday < state.DailyGoal {
		return false
	}
	if state.RequireDaily && !state.DailySolved {
		return false
	}
	return true
}

func bypassActive(state GoalState, now time.Time) bool {
	return state.BypassExpiresAt != nil && now.Before(*state.BypassExpiresAt)
}

// applyGoalTransitionLocked fires the goal-met transition on a false→true
// edge. The caller captures wasMet before mutating the state. Returns true
// when the streak advanced; the LastGoalMetDate guard makes a second firing
// within the same day a no-op even if multiple triggers race.
func (e *Engine) applyGoalTransitionLocked(wasMet bool) bool {
	isMet := goalMet(e.state)
	if wasMet || !isMet {
		return false
	}
	today := dayOf(e.now())
	if e.state.LastGoalMetDate == today {
		return false
	}
	if e.state.LastGoalMetDate == previousDay(today) {
		e.state.CurrentStreak++
	} else {
		e.state.CurrentStreak = 1
	}
	if e.state.CurrentStreak > e.state.LongestStreak {
		e.state.LongestStreak = e.state.CurrentStreak
	}
	e.state.LastGoalMetDate = today
	return true
}

// resetDailyLocked zeroes the daily field group. Streak counters and
// configuration are untouched.
func (e *Engine) resetDailyLocked() {
	e.state.SolvesToday = 0
	e.state.SolvedSlugs = map[string]bool{}
	e.state.DailySolved = false
	e.state.BypassUsed = false
	e.state.BypassExpiresAt = nil
	e.state.DailySlug = ""
	e.state.DailyTitle = ""
	e.state.DailyLink = ""
	e.state.LastPollDate = ""
	e.state.LastChallengeDate = ""
	e.cancelLocked(timerBypass)
}

// runDailyReset is the UTC-midnight callback: reset, re-arm for the next
// midnight, then refresh the featured challenge through a background
// reconciliation (the new day always passes the background gate).
func (e *Engine) runDailyReset() {
	e.mu.Lock()
	e.resetDailyLocked()
	e.armLocked(timerDailyReset, nextUTCMidnight(e.now()))
	e.persistLocked()
	e.mu.Unlock()

	e.log.Infow("daily reset", "day", dayOf(e.now()))
	e.emit(EventDailyReset, "")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Reconcile(ctx, TriggerBackground); err != nil {
		e.log.Debugw("post-reset reconciliation skipped", "reason", err)
	}
}
