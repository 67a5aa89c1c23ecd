package engine

import "strings"

// ActivityEvent is one "activity observed" signal from any sensor. Sensors
// double-fire for the same underlying solve and may not know the slug; both
// are expected and handled here, not at the sensor.
type ActivityEvent struct {
	Slug          string `json:"slug,omitempty"`
	Source        string `json:"source,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// RecordActivity merges one sensor signal into the progress count. The local
// update commits before any remote confirmation; a debounced verification is
// (re)armed so any burst of events collapses into a single remote call.
func (e *Engine) RecordActivity(event ActivityEvent) Snapshot {
	slug := strings.TrimSpace(event.Slug)

	e.mu.Lock()
	if slug == "" {
		slug = e.state.ActiveSlug
	}
	if slug == "" || e.state.SolvedSlugs[slug] {
		snapshot := e.snapshotLocked()
		e.mu.Unlock()
		return snapshot
	}

	wasMet := goalMet(e.state)
	e.state.SolvedSlugs[slug] = true
	e.state.SolvesToday = len(e.state.SolvedSlugs)
	if e.state.RequireDaily && e.state.DailySlug != "" && slug == e.state.DailySlug {
		e.state.DailySolved = true
	}
	fired := e.applyGoalTransitionLocked(wasMet)
	notify := fired && e.state.NotifyOnComplete
	streak := e.state.CurrentStreak
	e.armLocked(timerVerify, e.now().Add(e.verifyDebounce))
	e.persistLocked()
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	e.log.Infow("activity observed", "slug", slug, "source", event.Source, "solvesToday", snapshot.SolvesToday)
	if notify {
		e.log.Infow("daily goal met", "streak", streak)
	}
	if fired {
		e.emit(EventGoalMet, event.CorrelationID)
	}
	e.emit(EventStateChanged, event.CorrelationID)
	return snapshot
}
