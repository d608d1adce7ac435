package session

import (
	"testing"
	"time"
)

func TestWindowExtendsExactlyOnce(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := NewWindow(start, time.Minute, 10*time.Minute)

	if w.State() != StateBase {
		t.Fatalf("initial state = %s, want base", w.State())
	}
	if got := w.Deadline(); !got.Equal(start.Add(time.Minute)) {
		t.Fatalf("base deadline = %v", got)
	}

	if !w.ObserveVoice() {
		t.Fatal("first voice observation must extend the window")
	}
	if w.State() != StateExtended {
		t.Fatalf("state = %s, want extended", w.State())
	}
	if got := w.Deadline(); !got.Equal(start.Add(10 * time.Minute)) {
		t.Fatalf("extended deadline = %v", got)
	}

	// Later voice activity must not move the deadline again.
	for i := 0; i < 3; i++ {
		if w.ObserveVoice() {
			t.Fatal("window extended more than once")
		}
	}
	if got := w.Deadline(); !got.Equal(start.Add(10 * time.Minute)) {
		t.Fatalf("deadline moved after repeat observations: %v", got)
	}
}

func TestWindowExpiry(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := NewWindow(start, time.Minute, 10*time.Minute)

	if got := w.Tick(start.Add(59 * time.Second)); got != StateBase {
		t.Fatalf("state before deadline = %s, want base", got)
	}
	if got := w.Tick(start.Add(time.Minute)); got != StateExpired {
		t.Fatalf("state at deadline = %s, want expired", got)
	}

	// Expired is terminal: voice events after expiry change nothing.
	if w.ObserveVoice() {
		t.Fatal("expired window must not extend")
	}
	if got := w.Tick(start); got != StateExpired {
		t.Fatalf("state = %s, want expired to stay expired", got)
	}
}

func TestWindowVoiceAfterBaseElapsedButBeforeTick(t *testing.T) {
	t.Parallel()
	// A voice event observed in the same cycle that crosses the base deadline
	// still wins: expiry only happens on Tick.
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := NewWindow(start, time.Minute, 10*time.Minute)

	if !w.ObserveVoice() {
		t.Fatal("voice before any tick must extend")
	}
	if got := w.Tick(start.Add(2 * time.Minute)); got != StateExtended {
		t.Fatalf("state = %s, want extended", got)
	}
}
