package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotConfigured = errors.New("no account configured")
	ErrRateLimited   = errors.New("rate limited")
	ErrAlreadyUsed   = errors.New("bypass already used today")
	ErrAuthRequired  = errors.New("authentication required")
	ErrInvalidInput  = errors.New("invalid input")
)

// Durable timer names. Re-arming a name replaces any pending instance.
const (
	timerVerify     = "verify"
	timerDailyReset = "daily-reset"
	timerBypass     = "bypass"
)

// Event is pushed to the notifier on every observable state change so UI
// surfaces can react without polling.
type Event struct {
	Type          string   `json:"type"`
	CorrelationID string   `json:"correlationId,omitempty"`
	Snapshot      Snapshot `json:"snapshot"`
}

const (
	EventStateChanged    = "state_changed"
	EventGoalMet         = "goal_met"
	EventBlocked         = "blocked"
	EventDailyReset      = "daily_reset"
	EventBypassActivated = "bypass_activated"
	EventBypassExpired   = "bypass_expired"
)

type Options struct {
	Backend             StateBackend
	Remote              RemoteClient
	Logger              *zap.SugaredLogger
	Notifier            func(Event)
	Now                 func() time.Time
	VerifyDebounce      time.Duration
	BackgroundCooldown  time.Duration
	InteractiveCooldown time.Duration
	BypassDuration      time.Duration
	AllowedHosts        []string
	ExemptPrefixes      []string
	// DisableTimers prevents in-process timers from being armed. Deadlines are
	// still persisted; tests drive callbacks by hand.
	DisableTimers bool
}

type Engine struct {
	mu      sync.Mutex
	state   GoalState
	timers  map[string]time.Time
	pending map[string]*time.Timer

	backend  StateBackend
	remote   RemoteClient
	log      *zap.SugaredLogger
	notifier func(Event)
	now      func() time.Time

	verifyDebounce      time.Duration
	backgroundCooldown  time.Duration
	interactiveCooldown time.Duration
	bypassDuration      time.Duration
	allowedHosts        []string
	exemptPrefixes      []string
	disableTimers       bool

	closeOnce sync.Once
	closed    chan struct{}
}

func New(opts Options) (*Engine, error) {
	backend := opts.Backend
	if backend == nil {
		backend = NewInMemoryStateBackend()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	verifyDebounce := opts.VerifyDebounce
	if verifyDebounce <= 0 {
		verifyDebounce = 45 * time.Second
	}
	backgroundCooldown := opts.BackgroundCooldown
	if backgroundCooldown <= 0 {
		backgroundCooldown = 5 * time.Minute
	}
	interactiveCooldown := opts.InteractiveCooldown
	if interactiveCooldown <= 0 {
		interactiveCooldown = 10 * time.Second
	}
	bypassDuration := opts.BypassDuration
	if bypassDuration <= 0 {
		bypassDuration = 3 * time.Hour
	}
	allowedHosts := opts.AllowedHosts
	if len(allowedHosts) == 0 {
		allowedHosts = defaultAllowedHosts
	}
	exemptPrefixes := opts.ExemptPrefixes
	if len(exemptPrefixes) == 0 {
		exemptPrefixes = defaultExemptPrefixes
	}

	e := &Engine{
		state:               defaultGoalState(),
		timers:              map[string]time.Time{},
		pending:             map[string]*time.Timer{},
		backend:             backend,
		remote:              opts.Remote,
		log:                 logger,
		notifier:            opts.Notifier,
		now:                 now,
		verifyDebounce:      verifyDebounce,
		backgroundCooldown:  backgroundCooldown,
		interactiveCooldown: interactiveCooldown,
		bypassDuration:      bypassDuration,
		allowedHosts:        allowedHosts,
		exemptPrefixes:      exemptPrefixes,
		disableTimers:       opts.DisableTimers,
		closed:              make(chan struct{}),
	}

	snapshot, err := backend.Load()
	if err != nil {
		return nil, err
	}
	if snapshot != nil {
		e.state = snapshot.Goal
		if e.state.SolvedSlugs == nil {
			e.state.SolvedSlugs = map[string]bool{}
		}
		if snapshot.Timers != nil {
			e.timers = snapshot.Timers
		}
	}

	e.mu.Lock()
	// A missed reset while the process was down must run before anything else
	// reads today's counters.
	if deadline, ok := e.timers[timerDailyReset]; ok && !deadline.After(e.now()) {
		e.resetDailyLocked()
	}
	e.armLocked(timerDailyReset, nextUTCMidnight(e.now()))
	e.rearmLocked(timerBypass)
	e.rearmLocked(timerVerify)
	e.persistLocked()
	e.mu.Unlock()

	return e, nil
}

func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.closed)
		e.mu.Lock()
		for name, timer := range e.pending {
			timer.Stop()
			delete(e.pending, name)
		}
		e.persistLocked()
		e.mu.Unlock()
		if closer, ok := e.backend.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	})
	return nil
}

// Snapshot returns a copy of the current state plus derived predicates.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	state := e.state.clone()
	return Snapshot{
		GoalState:    state,
		GoalMet:      goalMet(state),
		BypassActive: bypassActive(state, e.now()),
		Configured:   state.Username != "",
		Slugs:        state.sortedSlugs(),
	}
}

// UpdateSettings overwrites the configuration fields and attempts an
// immediate, ungated reconciliation. The background cooldown stamp is cleared
// so the next poll is not swallowed by a stale stamp.
func (e *Engine) UpdateSettings(ctx context.Context, username string, dailyGoal int, requireDaily, notifyOnComplete bool) error {
	if dailyGoal < 1 || dailyGoal > 30 {
		return ErrInvalidInput
	}
	e.mu.Lock()
	e.state.Username = username
	e.state.DailyGoal = dailyGoal
	e.state.RequireDaily = requireDaily
	e.state.NotifyOnComplete = notifyOnComplete
	e.state.LastPollAt = time.Time{}
	e.state.LastPollDate = ""
	e.persistLocked()
	e.mu.Unlock()
	e.emit(EventStateChanged, "")

	err := e.Reconcile(ctx, TriggerSettings)
	if err != nil && !errors.Is(err, ErrNotConfigured) {
		return err
	}
	return nil
}

func (e *Engine) persistLocked() {
	snapshot := &persistedState{
		Goal:   e.state.clone(),
		Timers: make(map[string]time.Time, len(e.timers)),
	}
	for name, deadline := range e.timers {
		snapshot.Timers[name] = deadline
	}
	if err := e.backend.Save(snapshot); err != nil {
		e.log.Errorw("state save failed", "error", err)
	}
}

func (e *Engine) emit(eventType, correlationID string) {
	if e.notifier == nil {
		return
	}
	e.mu.Lock()
	snapshot := e.snapshotLocked()
	e.mu.Unlock()
	e.notifier(Event{Type: eventType, CorrelationID: correlationID, Snapshot: snapshot})
}
