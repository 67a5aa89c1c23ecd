package engine

import "time"

// BypassResult is the structured outcome returned across the API boundary;
// a refused activation is a result, never an error.
type BypassResult struct {
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// ActivateBypass grants the one-shot daily override and arms its durable
// expiry. At most one bypass is usable per UTC day.
func (e *Engine) ActivateBypass() BypassResult {
	e.mu.Lock()
	if e.state.BypassUsed {
		e.mu.Unlock()
		return BypassResult{Success: false, Reason: "Already used today"}
	}
	expires := e.now().Add(e.bypassDuration).UTC()
	e.state.BypassUsed = true
	e.state.BypassExpiresAt = &expires
	e.armLocked(timerBypass, expires)
	e.persistLocked()
	e.mu.Unlock()

	e.log.Infow("bypass activated", "expiresAt", expires)
	e.emit(EventBypassActivated, "")
	return BypassResult{Success: true, ExpiresAt: expires.Format(time.RFC3339)}
}

// expireBypass clears the expiry timestamp while leaving BypassUsed set, so a
// second activation stays refused until the next daily reset.
func (e *Engine) expireBypass() {
	e.mu.Lock()
	if e.state.BypassExpiresAt == nil {
		e.mu.Unlock()
		return
	}
	e.state.BypassExpiresAt = nil
	e.persistLocked()
	e.mu.Unlock()

	e.log.Infow("bypass expired")
	e.emit(EventBypassExpired, "")
}
