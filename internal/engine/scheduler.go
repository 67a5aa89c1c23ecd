package engine

import (
	"context"
	"time"
)

// armLocked persists a named one-shot deadline and (re)starts the in-process
// timer for it. Arming an already-armed name cancels and replaces the pending
// instance; duplicates never stack.
func (e *Engine) armLocked(name string, at time.Time) {
	e.timers[name] = at.UTC()
	if e.disableTimers {
		return
	}
	if timer, ok := e.pending[name]; ok {
		timer.Stop()
	}
	delay := at.Sub(e.now())
	if delay < 0 {
		delay = 0
	}
	e.pending[name] = time.AfterFunc(delay, func() { e.fireTimer(name) })
}

// rearmLocked restores a persisted deadline after a restart. Overdue timers
// fire immediately.
func (e *Engine) rearmLocked(name string) {
	deadline, ok := e.timers[name]
	if !ok {
		return
	}
	e.armLocked(name, deadline)
}

func (e *Engine) cancelLocked(name string) {
	delete(e.timers, name)
	if timer, ok := e.pending[name]; ok {
		timer.Stop()
		delete(e.pending, name)
	}
}

// fireTimer runs a due callback exactly once. A deadline that was replaced
// after this timer was armed is left for the replacement.
func (e *Engine) fireTimer(name string) {
	select {
	case <-e.closed:
		return
	default:
	}

	e.mu.Lock()
	deadline, ok := e.timers[name]
	if !ok || deadline.After(e.now()) {
		e.mu.Unlock()
		return
	}
	delete(e.timers, name)
	delete(e.pending, name)
	e.persistLocked()
	e.mu.Unlock()

	switch name {
	case timerVerify:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.Reconcile(ctx, TriggerBackground); err != nil {
			e.log.Debugw("scheduled verification skipped", "reason", err)
		}
	case timerDailyReset:
		e.runDailyReset()
	case timerBypass:
		e.expireBypass()
	}
}
