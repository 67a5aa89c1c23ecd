package engine

import (
	"context"
	"errors"
)

// Trigger identifies who asked for a reconciliation; it selects which rate
// gate applies.
type Trigger string

const (
	// TriggerBackground is the debounced verification timer, startup, and the
	// post-reset refresh. Gated by the background cooldown; a new UTC day
	// always overrides the cooldown.
	TriggerBackground Trigger = "background"
	// TriggerInteractive is a user-initiated "sync now". Gated only by the
	// short interactive cooldown that collapses accidental double-invocation.
	TriggerInteractive Trigger = "interactive"
	// TriggerSettings is a settings change; never gated.
	TriggerSettings Trigger = "settings"
)

// Reconcile folds the authoritative remote view into local state. Local
// observations are never discarded: slug sets are unioned and the count takes
// the max, so a just-submitted solve the remote has not indexed yet survives,
// while solves from other sessions are picked up. Any failure other than an
// auth rejection leaves state untouched for the next trigger.
func (e *Engine) Reconcile(ctx context.Context, trigger Trigger) error {
	if e.remote == nil {
		return nil
	}

	e.mu.Lock()
	if e.state.Username == "" {
		e.mu.Unlock()
		return ErrNotConfigured
	}
	now := e.now()
	today := dayOf(now)
	switch trigger {
	case TriggerInteractive:
		if !e.state.LastManualSyncAt.IsZero() && now.Sub(e.state.LastManualSyncAt) < e.interactiveCooldown {
			e.mu.Unlock()
			return ErrRateLimited
		}
		e.state.LastManualSyncAt = now
	case TriggerSettings:
		// Never gated.
	default:
		sameDay := e.state.LastPollDate == today
		if sameDay && !e.state.LastPollAt.IsZero() && now.Sub(e.state.LastPollAt) < e.backgroundCooldown {
			e.mu.Unlock()
			return ErrRateLimited
		}
	}
	// Stamp before the call so a near-simultaneous wake-up cannot reach the
	// network as well.
	e.state.LastPollAt = now
	e.state.LastPollDate = today
	username := e.state.Username
	needChallenge := e.state.LastChallengeDate != today
	e.persistLocked()
	e.mu.Unlock()

	if needChallenge {
		challenge, err := e.remote.FetchDailyChallenge(ctx)
		if err != nil {
			e.handleRemoteError(err)
			return err
		}
		e.mu.Lock()
		e.state.LastChallengeDate = today
		if challenge != nil {
			e.state.DailySlug = challenge.Slug
			e.state.DailyTitle = challenge.Title
			e.state.DailyLink = challenge.Link
		}
		e.persistLocked()
		e.mu.Unlock()
	}

	report, err := e.remote.FetchTodayActivity(ctx, username)
	if err != nil {
		e.handleRemoteError(err)
		return err
	}

	e.mu.Lock()
	wasMet := goalMet(e.state)
	for _, slug := range report.Slugs {
		if slug != "" {
			e.state.SolvedSlugs[slug] = true
		}
	}
	merged := len(e.state.SolvedSlugs)
	if report.Count > merged {
		e.state.SolvesToday = report.Count
	} else {
		e.state.SolvesToday = merged
	}
	e.state.DailySolved = e.state.DailySlug != "" && e.state.SolvedSlugs[e.state.DailySlug]
	loggedIn := true
	e.state.LoggedIn = &loggedIn
	fired := e.applyGoalTransitionLocked(wasMet)
	notify := fired && e.state.NotifyOnComplete
	streak := e.state.CurrentStreak
	e.persistLocked()
	e.mu.Unlock()

	e.log.Debugw("reconciled", "trigger", trigger, "remoteCount", report.Count, "merged", merged)
	if notify {
		e.log.Infow("daily goal met", "streak", streak)
	}
	if fired {
		e.emit(EventGoalMet, "")
	}
	e.emit(EventStateChanged, "")
	return nil
}

// handleRemoteError marks the session logged-out on an explicit auth
// rejection; every other failure is silent and the committed state stands.
func (e *Engine) handleRemoteError(err error) {
	if !errors.Is(err, ErrAuthRequired) {
		e.log.Debugw("remote query failed", "error", err)
		return
	}
	e.mu.Lock()
	loggedIn := false
	e.state.LoggedIn = &loggedIn
	e.persistLocked()
	e.mu.Unlock()
	e.log.Warnw("remote rejected credentials; sign-in required")
	e.emit(EventStateChanged, "")
}
