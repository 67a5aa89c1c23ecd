package engine

import (
	"sort"
	"time"
)

const dayFormat = "2006-01-02"

// GoalState is the single durable record owned by the engine. Configuration
// fields are written only through UpdateSettings; daily fields are zeroed by
// the daily reset; streak fields survive resets.
type GoalState struct {
	Username         string `json:"username"`
	DailyGoal        int    `json:"dailyGoal"`
	RequireDaily     bool   `json:"requireDaily"`
	NotifyOnComplete bool   `json:"notifyOnComplete"`

	SolvesToday int             `json:"solvesToday"`
	SolvedSlugs map[string]bool `json:"solvedSlugs"`
	DailySolved bool            `json:"dailySolved"`

	DailySlug  string `json:"dailySlug,omitempty"`
	DailyTitle string `json:"dailyTitle,omitempty"`
	DailyLink  string `json:"dailyLink,omitempty"`

	BypassUsed      bool       `json:"bypassUsed"`
	BypassExpiresAt *time.Time `json:"bypassExpiresAt,omitempty"`

	LastPollDate      string     `json:"lastPollDate,omitempty"`
	LastPollAt        time.Time  `json:"lastPollAt"`
	LastManualSyncAt  time.Time  `json:"lastManualSyncAt"`
	LastChallengeDate string     `json:"lastChallengeDate,omitempty"`

	CurrentStreak   int    `json:"currentStreak"`
	LongestStreak   int    `json:"longestStreak"`
	LastGoalMetDate string `json:"lastGoalMetDate,omitempty"`

	// LoggedIn is nil until the first remote query succeeds or fails with an
	// auth rejection.
	LoggedIn *bool `json:"loggedIn,omitempty"`

	LastBlockedURL string `json:"lastBlockedUrl,omitempty"`
	FocusedURL     string `json:"focusedUrl,omitempty"`
	ActiveSlug     string `json:"activeSlug,omitempty"`
}

// persistedState is the full durable snapshot handed to a StateBackend. Timer
// deadlines ride along with the goal state so pending callbacks survive a
// restart.
type persistedState struct {
	Goal   GoalState            `json:"goal"`
	Timers map[string]time.Time `json:"timers,omitempty"`
}

func defaultGoalState() GoalState {
	return GoalState{
		DailyGoal:        1,
		NotifyOnComplete: true,
		SolvedSlugs:      map[string]bool{},
	}
}

// Snapshot is the externally visible copy of GoalState plus derived fields.
type Snapshot struct {
	GoalState
	GoalMet      bool     `json:"goalMet"`
	BypassActive bool     `json:"bypassActive"`
	Configured   bool     `json:"configured"`
	Slugs        []string `json:"slugs"`
}

func (g GoalState) clone() GoalState {
	out := g
	out.SolvedSlugs = make(map[string]bool, len(g.SolvedSlugs))
	for slug := range g.SolvedSlugs {
		out.SolvedSlugs[slug] = g.SolvedSlugs[slug]
	}
	if g.BypassExpiresAt != nil {
		expires := *g.BypassExpiresAt
		out.BypassExpiresAt = &expires
	}
	if g.LoggedIn != nil {
		loggedIn := *g.LoggedIn
		out.LoggedIn = &loggedIn
	}
	return out
}

func (g GoalState) sortedSlugs() []string {
	slugs := make([]string, 0, len(g.SolvedSlugs))
	for slug := range g.SolvedSlugs {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

func dayOf(t time.Time) string {
	return t.UTC().Format(dayFormat)
}

func previousDay(day string) string {
	t, err := time.Parse(dayFormat, day)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(dayFormat)
}

func nextUTCMidnight(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return next.AddDate(0, 0, 1)
}
