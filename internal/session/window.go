// Package session decides how long one monitoring run keeps observing.
//
// A run starts with a short base window; the first voice-category change
// event raises the deadline to the extended window exactly once. Expiry is
// cooperative: the orchestrator polls between cycles, nothing is preempted.
package session

import "time"

type State int

const (
	StateBase State = iota
	StateExtended
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateBase:
		return "base"
	case StateExtended:
		return "extended"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Window is owned by a single run; it is not safe for concurrent use and
// does not need to be.
type Window struct {
	start    time.Time
	base     time.Duration
	extended time.Duration
	state    State
}

func NewWindow(start time.Time, base, extended time.Duration) *Window {
	return &Window{start: start, base: base, extended: extended, state: StateBase}
}

// ObserveVoice records that voice activity happened this run. The first call
// transitions Base -> Extended and returns true; every later call is a no-op,
// so repeated voice events cannot keep pushing the deadline further.
func (w *Window) ObserveVoice() bool {
	if w.state != StateBase {
		return false
	}
	w.state = StateExtended
	return true
}

// Deadline is when the current state's duration elapses.
func (w *Window) Deadline() time.Time {
	if w.state == StateExtended {
		return w.start.Add(w.extended)
	}
	return w.start.Add(w.base)
}

// Tick moves the window to Expired once the deadline has passed and returns
// the resulting state. Expired is terminal.
func (w *Window) Tick(now time.Time) State {
	if w.state == StateExpired {
		return w.state
	}
	if !now.Before(w.Deadline()) {
		w.state = StateExpired
	}
	return w.state
}

func (w *Window) State() State { return w.state }
