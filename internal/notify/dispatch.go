package notify

import (
	"context"
	"errors"
	"math/rand"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/aurumco/ryde/pkg/logx"
)

var ErrUnauthorized = errors.New("recipient not on allowlist")

// Sender is what the core needs from the Telegram collaborator.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error
	SendDocument(ctx context.Context, chatID int64, docURL, filename string) error
}

// maxMessageRunes is Telegram's text message limit; longer messages are
// split into consecutive chunks. Photo captions have a tighter limit and
// are truncated instead.
const (
	maxMessageRunes = 4096
	maxCaptionRunes = 1024
)

type DispatchConfig struct {
	ChatID         int64
	AllowedUserIDs []int64

	RatePerSec    int           // default 3
	RetryMax      int           // attempts per message, default 3
	RetryBase     time.Duration // default 500ms
	RetryMaxDelay time.Duration // default 10s
}

// Dispatcher sends formatted messages to the configured chat, sequentially,
// so chat order always matches event order. Delivery is best-effort: a
// message that exhausts its retries is logged and dropped, never queued.
type Dispatcher struct {
	cfg     DispatchConfig
	sender  Sender
	allow   map[int64]struct{}
	limiter *rate.Limiter
	log     logx.Logger

	warnedUnauthorized bool
}

func NewDispatcher(cfg DispatchConfig, sender Sender, log logx.Logger) *Dispatcher {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	var allow map[int64]struct{}
	if len(cfg.AllowedUserIDs) > 0 {
		allow = make(map[int64]struct{}, len(cfg.AllowedUserIDs))
		for _, id := range cfg.AllowedUserIDs {
			allow[id] = struct{}{}
		}
	}

	return &Dispatcher{
		cfg:    cfg,
		sender: sender,
		allow:  allow,
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:     log,
	}
}

// Dispatch sends one message to the configured primary chat.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	return d.DispatchTo(ctx, d.cfg.ChatID, msg)
}

// DispatchTo sends one message to the given chat.
//
// If an allowlist is configured and the recipient is not on it, the real
// message is dropped and a single terse notice is sent to the offending
// recipient instead (once per run); it never reaches the primary chat.
// Returns ErrUnauthorized in that case.
func (d *Dispatcher) DispatchTo(ctx context.Context, chatID int64, msg Message) error {
	if d.allow != nil {
		if _, ok := d.allow[chatID]; !ok {
			d.notifyUnauthorized(ctx, chatID)
			return ErrUnauthorized
		}
	}

	if msg.PhotoURL != "" {
		err := d.sendWithRetry(ctx, func(ctx context.Context) error {
			return d.sender.SendPhoto(ctx, chatID, msg.PhotoURL, truncateRunes(msg.Text, maxCaptionRunes))
		})
		if err != nil {
			return err
		}
	} else {
		for _, part := range chunkText(msg.Text, maxMessageRunes) {
			part := part
			err := d.sendWithRetry(ctx, func(ctx context.Context) error {
				return d.sender.SendText(ctx, chatID, part)
			})
			if err != nil {
				return err
			}
		}
	}

	for _, m := range msg.Media {
		m := m
		var op func(context.Context) error
		if isImageURL(m.URL) {
			op = func(ctx context.Context) error {
				return d.sender.SendPhoto(ctx, chatID, m.URL, "")
			}
		} else {
			op = func(ctx context.Context) error {
				return d.sender.SendDocument(ctx, chatID, m.URL, m.Filename)
			}
		}
		if err := d.sendWithRetry(ctx, op); err != nil {
			// The text already went out; a lost attachment is logged, not fatal.
			d.log.Error("attachment send failed", logx.String("url", m.URL), logx.Err(err))
		}
	}
	return nil
}

// DispatchAll sends messages in order, each awaited before the next. A
// failed message does not stop the rest; the failure count is returned.
func (d *Dispatcher) DispatchAll(ctx context.Context, msgs []Message) int {
	failed := 0
	for _, m := range msgs {
		if err := d.Dispatch(ctx, m); err != nil {
			failed++
			d.log.Error("notification dropped", logx.Err(err))
			if ctx.Err() != nil {
				// Context gone; remaining sends would fail the same way.
				return failed + (len(msgs) - failed - 1)
			}
		}
	}
	return failed
}

func (d *Dispatcher) notifyUnauthorized(ctx context.Context, chatID int64) {
	d.log.Warn("chat is not on the allowlist; dropping message", logx.Int64("chat_id", chatID))
	if d.warnedUnauthorized {
		return
	}
	d.warnedUnauthorized = true
	notice := "<b>Unauthorized</b>\n\nYou are not allowed to receive notifications."
	if err := d.sender.SendText(ctx, chatID, notice); err != nil {
		d.log.Debug("unauthorized notice failed", logx.Err(err))
	}
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= d.cfg.RetryMax; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		d.log.Warn("telegram send failed",
			logx.Int("attempt", attempt),
			logx.Int("max", d.cfg.RetryMax),
			logx.Err(err))
		if attempt == d.cfg.RetryMax {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.retryDelay(attempt)):
		}
	}
	return lastErr
}

// retryDelay is exponential backoff with jitter: base * 2^(attempt-1),
// scaled by 0.7..1.3, capped at RetryMaxDelay.
func (d *Dispatcher) retryDelay(attempt int) time.Duration {
	delay := d.cfg.RetryBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.cfg.RetryMaxDelay {
			delay = d.cfg.RetryMaxDelay
			break
		}
	}
	j := 0.7 + rand.Float64()*0.6
	delay = time.Duration(float64(delay) * j)
	if delay > d.cfg.RetryMaxDelay {
		delay = d.cfg.RetryMaxDelay
	}
	if delay < 0 {
		return 0
	}
	return delay
}

// chunkText splits s into rune-safe chunks of at most n runes.
func chunkText(s string, n int) []string {
	r := []rune(s)
	if len(r) <= n {
		return []string{s}
	}
	var out []string
	for len(r) > 0 {
		end := n
		if end > len(r) {
			end = len(r)
		}
		out = append(out, string(r[:end]))
		r = r[end:]
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// isImageURL decides photo vs document from the URL path extension.
func isImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	default:
		return false
	}
}
