// Package discovery manages per-session state for multi-step
// identity-service discovery: a prioritized queue of candidate
// endpoints stored in the user's session, handed out one at a time
// across stateless request/response cycles.
package discovery

import (
	"context"
	"encoding/json"

	"mydiscovery/interfaces"
	"mydiscovery/service"
)

// Queue holds the not-yet-attempted candidate endpoints for one
// discovered URL, in priority order, plus the candidate most recently
// handed out. S is opaque to the queue; it is only stored and returned.
type Queue[S any] struct {
	startingURL string // URL discovery was initiated with
	resolvedURL string // URL after the discoverer followed redirects
	pending     []S    // untried candidates, front-popped only
	sessionSlot string // session key this queue is stored under
	active      S
	started     bool // true once the first candidate has been handed out
}

// NewQueue creates a queue over a defensive copy of candidates.
// No candidate has been handed out yet; URLs are not validated here.
func NewQueue[S any](startingURL, resolvedURL string, candidates []S, sessionSlot string) *Queue[S] {
	return &Queue[S]{
		startingURL: startingURL,
		resolvedURL: resolvedURL,
		pending:     append([]S(nil), candidates...),
		sessionSlot: sessionSlot,
	}
}

// Remaining returns how many untried candidates are left.
func (q *Queue[S]) Remaining() int {
	return len(q.pending)
}

// Advance pops the front candidate into the current slot and returns it.
// Returns:
// 1) (candidate, nil) while untried candidates remain;
// 2) (zero, exhausted) when the queue is empty — a terminal signal,
// not a fault; callers check Remaining or handle the code explicitly.
func (q *Queue[S]) Advance() (S, error) {
	if len(q.pending) == 0 {
		var zero S
		return zero, service.NewExhaustedError("no candidate endpoints left in queue", nil)
	}

	q.active = q.pending[0]
	q.pending = q.pending[1:]
	q.started = true
	return q.active, nil
}

// Current returns the most recently handed-out candidate without
// advancing. The second result is false until the first Advance.
func (q *Queue[S]) Current() (S, bool) {
	return q.active, q.started
}

// MatchesURL reports whether the queue was discovered for url, matching
// either the starting URL or the redirect-resolved URL. This is the
// ownership check applied before trusting a stored queue for a request.
func (q *Queue[S]) MatchesURL(url string) bool {
	return url == q.startingURL || url == q.resolvedURL
}

// Started reports whether any candidate has been handed out yet.
func (q *Queue[S]) Started() bool {
	return q.started
}

// StartingURL returns the URL discovery was initiated with.
func (q *Queue[S]) StartingURL() string {
	return q.startingURL
}

// ResolvedURL returns the URL after the discoverer followed redirects.
func (q *Queue[S]) ResolvedURL() string {
	return q.resolvedURL
}

// SessionSlot returns the session key this queue persists under.
func (q *Queue[S]) SessionSlot() string {
	return q.sessionSlot
}

// Persist writes the queue into the session under its slot, overwriting
// any prior value.
func (q *Queue[S]) Persist(ctx context.Context, session interfaces.Session) error {
	return session.Set(ctx, q.sessionSlot, q)
}

// MarshalJSON encodes the queue as the generic record shape
// (starting_url, yadis_url, services, session_key, _current) so that
// session stores which only round-trip JSON can still hold it.
func (q *Queue[S]) MarshalJSON() ([]byte, error) {
	rec := struct {
		StartingURL string `json:"starting_url"`
		YadisURL    string `json:"yadis_url"`
		Services    []S    `json:"services"`
		SessionKey  string `json:"session_key"`
		Current     *S     `json:"_current,omitempty"`
	}{
		StartingURL: q.startingURL,
		YadisURL:    q.resolvedURL,
		Services:    q.pending,
		SessionKey:  q.sessionSlot,
	}
	if q.started {
		current := q.active
		rec.Current = &current
	}
	return json.Marshal(rec)
}
