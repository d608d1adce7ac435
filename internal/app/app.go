// Package app drives one monitoring run: load the last snapshot, poll live
// state, diff, dispatch notifications, and persist the new snapshot before
// exiting. A run window decides how long the process keeps observing.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aurumco/ryde/internal/config"
	"github.com/aurumco/ryde/internal/diff"
	"github.com/aurumco/ryde/internal/discord"
	"github.com/aurumco/ryde/internal/notify"
	"github.com/aurumco/ryde/internal/session"
	"github.com/aurumco/ryde/internal/snapshot"
	"github.com/aurumco/ryde/pkg/logx"
)

// Collaborator is the Discord side of the run: a session to acquire and a
// live-snapshot query to poll. TakeSnapshot receives the last known snapshot
// so transient per-entity fetch failures can keep previous state instead of
// dropping entities, which would resurface as duplicate notifications.
type Collaborator interface {
	Login(ctx context.Context) (*discord.Me, error)
	TakeSnapshot(ctx context.Context, now time.Time, prev *snapshot.Snapshot) (*snapshot.Snapshot, error)
}

type App struct {
	log        logx.Logger
	store      snapshot.Store
	discord    Collaborator
	dispatcher *notify.Dispatcher
	formatter  *notify.Formatter
	opts       config.Options

	// now is swappable for tests.
	now func() time.Time
}

func New(store snapshot.Store, collab Collaborator, dispatcher *notify.Dispatcher, formatter *notify.Formatter, opts config.Options, log logx.Logger) *App {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &App{
		log:        log,
		store:      store,
		discord:    collab,
		dispatcher: dispatcher,
		formatter:  formatter,
		opts:       opts,
		now:        time.Now,
	}
}

// Run executes one full monitoring cycle and blocks until the session
// window expires or ctx is cancelled. The returned error is nil on normal
// expiry; anything else is an unrecoverable startup or shutdown failure.
func (a *App) Run(ctx context.Context) error {
	prev, err := a.store.Load()
	initialized := true
	switch {
	case err == nil:
	case errors.Is(err, snapshot.ErrUninitialized):
		a.log.Info("no previous snapshot; this run establishes the baseline")
		initialized = false
	case errors.Is(err, snapshot.ErrCorrupt), errors.Is(err, snapshot.ErrVersion):
		// One cycle of suppressed diffing beats refusing to run.
		a.log.Warn("previous snapshot unreadable; rebaselining", logx.Err(err))
		initialized = false
	default:
		return fmt.Errorf("load snapshot: %w", err)
	}

	if _, err := a.discord.Login(ctx); err != nil {
		return err
	}

	start := a.now()
	win := session.NewWindow(start, a.opts.BaseDuration, a.opts.ExtendedDuration)
	current := prev
	lastFlush := start

	for {
		now := a.now()
		live, err := a.discord.TakeSnapshot(ctx, now, current)
		if err != nil {
			// Keep the run alive: whatever snapshot we last computed still
			// gets persisted at the end.
			a.log.Error("poll failed", logx.Err(err))
		} else if !initialized {
			a.baseline(ctx, live, now)
			initialized = true
			current = live
		} else {
			live.LastStatsDate = lastStatsDate(current)
			current = a.cycle(ctx, current, live, win, now)
		}

		if current != nil {
			a.maybeSendStats(ctx, current, now)
		}

		if win.Tick(a.now()) == session.StateExpired {
			a.log.Info("session window expired", logx.String("state", win.State().String()))
			break
		}
		if ctx.Err() != nil {
			a.log.Warn("run cancelled", logx.Err(ctx.Err()))
			break
		}

		if current != nil && a.now().Sub(lastFlush) >= a.opts.FlushInterval {
			if err := a.store.Save(current); err != nil {
				a.log.Error("periodic snapshot flush failed", logx.Err(err))
			} else {
				lastFlush = a.now()
			}
		}

		if err := sleepCtx(ctx, a.opts.PollInterval); err != nil {
			break
		}
	}

	if current != nil {
		if err := a.store.Save(current); err != nil {
			return fmt.Errorf("final snapshot save: %w", err)
		}
	}
	return nil
}

// cycle diffs one sub-poll against the in-memory snapshot, dispatches the
// resulting notifications in order, and returns the new current snapshot.
func (a *App) cycle(ctx context.Context, current, live *snapshot.Snapshot, win *session.Window, now time.Time) *snapshot.Snapshot {
	res := diff.Diff(current, live, now)
	for _, sk := range res.Skipped {
		a.log.Warn("entity skipped during diff",
			logx.String("domain", sk.Domain), logx.String("id", sk.ID), logx.String("reason", sk.Reason))
	}
	if len(res.Events) == 0 {
		return live
	}

	a.log.Info("changes detected", logx.Int("events", len(res.Events)))

	voice := false
	msgs := make([]notify.Message, 0, len(res.Events))
	for _, ev := range res.Events {
		msgs = append(msgs, a.formatter.Format(ev))
		if ev.Kind.IsVoice() {
			voice = true
		}
	}

	if failed := a.dispatcher.DispatchAll(ctx, msgs); failed > 0 {
		a.log.Error("some notifications were not delivered", logx.Int("failed", failed))
	}

	if voice && win.ObserveVoice() {
		a.log.Info("voice activity observed; window extended",
			logx.Time("deadline", win.Deadline()))
	}
	return live
}

// baseline persists the first-ever snapshot without diffing it against
// emptiness, so a fresh deployment does not flood the chat with one
// notification per already-existing entity. Under the scan_recent strategy
// DMs newer than the configured window are still reported.
func (a *App) baseline(ctx context.Context, live *snapshot.Snapshot, now time.Time) {
	if a.opts.FirstRunStrategy == "scan_recent" && a.opts.DMRecentWindow > 0 {
		cutoff := now.Add(-a.opts.DMRecentWindow)
		var events []diff.Event
		for chID, thread := range live.DMs {
			for msgID, m := range thread.Messages {
				if m.SentAt.Before(cutoff) {
					continue
				}
				events = append(events, diff.Event{
					Kind:        diff.KindDMReceived,
					EntityID:    chID,
					At:          now,
					Username:    m.Author,
					AuthorID:    m.AuthorID,
					MessageID:   msgID,
					Content:     m.Content,
					Attachments: m.Attachments,
				})
			}
		}
		if len(events) > 0 {
			// Map iteration order is random; reports follow the same ordering
			// discipline as regular diff cycles.
			diff.SortEvents(events)
			msgs := make([]notify.Message, 0, len(events))
			for _, ev := range events {
				msgs = append(msgs, a.formatter.Format(ev))
			}
			a.log.Info("first run: reporting recent DMs", logx.Int("count", len(msgs)))
			a.dispatcher.DispatchAll(ctx, msgs)
		}
	}

	if err := a.store.Save(live); err != nil {
		a.log.Error("baseline snapshot save failed", logx.Err(err))
		return
	}
	a.log.Info("baseline snapshot persisted",
		logx.Int("friends", len(live.Friends)), logx.Int("dm_channels", len(live.DMs)))
}

// maybeSendStats sends the daily statistics summary at most once per local
// day; the last-sent date rides along in the snapshot document.
func (a *App) maybeSendStats(ctx context.Context, current *snapshot.Snapshot, now time.Time) {
	today := a.formatter.LocalDate(now)
	if current.LastStatsDate == today {
		return
	}
	friends := 0
	for _, f := range current.Friends {
		if f.Friend {
			friends++
		}
	}
	if err := a.dispatcher.Dispatch(ctx, notify.Text(a.formatter.FormatStats(current.GuildCount, friends))); err != nil {
		a.log.Error("daily statistics summary failed; will retry next run", logx.Err(err))
		return
	}
	current.LastStatsDate = today
}

func lastStatsDate(s *snapshot.Snapshot) string {
	if s == nil {
		return ""
	}
	return s.LastStatsDate
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
