package engine

import (
	"net/url"
	"strings"
)

type Action string

const (
	ActionAllow    Action = "allow"
	ActionRedirect Action = "redirect"
)

// Decision is the outcome of one policy evaluation.
type Decision struct {
	Action Action `json:"action"`
	Reason string `json:"reason,omitempty"`
}

var defaultAllowedHosts = []string{
	"leetcode.com",
	"leetcode.cn",
	"accounts.google.com",
}

var defaultExemptPrefixes = []string{
	"about:",
	"chrome:",
	"chrome-extension:",
	"edge:",
	"moz-extension:",
	"devtools:",
	"view-source:",
	"http://localhost",
	"http://127.0.0.1",
}

// Evaluate decides allow vs. redirect for one candidate navigation. Only the
// focused target is evaluated; a focused evaluation also records the target
// so a later slugless sensor event can be attributed, and a redirect records
// the destination for the block page's return link.
func (e *Engine) Evaluate(rawURL string, focused bool) Decision {
	e.mu.Lock()
	decision := e.decideLocked(rawURL)
	if !focused {
		e.mu.Unlock()
		return decision
	}

	changed := false
	if e.state.FocusedURL != rawURL {
		e.state.FocusedURL = rawURL
		changed = true
	}
	if slug := problemSlug(rawURL); slug != "" && slug != e.state.ActiveSlug {
		e.state.ActiveSlug = slug
		changed = true
	}
	blocked := decision.Action == ActionRedirect
	if blocked && e.state.LastBlockedURL != rawURL {
		e.state.LastBlockedURL = rawURL
		changed = true
	}
	if changed {
		e.persistLocked()
	}
	e.mu.Unlock()

	if blocked {
		e.emit(EventBlocked, "")
	}
	return decision
}

func (e *Engine) decideLocked(rawURL string) Decision {
	trimmed := strings.TrimSpace(rawURL)
	lowered := strings.ToLower(trimmed)
	for _, prefix := range e.exemptPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return Decision{Action: ActionAllow, Reason: "exempt"}
		}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Hostname() == "" {
		// Fail open on anything that is not a structured address.
		return Decision{Action: ActionAllow, Reason: "unparseable"}
	}

	host := normalizeHost(parsed.Hostname())
	for _, allowed := range e.allowedHosts {
		if hostMatches(host, normalizeHost(allowed)) {
			return Decision{Action: ActionAllow, Reason: "allowlisted"}
		}
	}

	if e.state.Username == "" {
		return Decision{Action: ActionAllow, Reason: "unconfigured"}
	}
	if goalMet(e.state) {
		return Decision{Action: ActionAllow, Reason: "goal met"}
	}
	if bypassActive(e.state, e.now()) {
		return Decision{Action: ActionAllow, Reason: "bypass active"}
	}
	return Decision{Action: ActionRedirect, Reason: "daily goal not met"}
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}

func hostMatches(host, allowed string) bool {
	if allowed == "" {
		return false
	}
	return host == allowed || strings.HasSuffix(host, "."+allowed)
}

// problemSlug extracts the task identifier from a problem page address, e.g.
// https://leetcode.com/problems/two-sum/description → "two-sum".
func problemSlug(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(parsed.EscapedPath(), "/"), "/")
	for i, part := range parts {
		if part == "problems" && i+1 < len(parts) {
			return strings.ToLower(parts[i+1])
		}
	}
	return ""
}
