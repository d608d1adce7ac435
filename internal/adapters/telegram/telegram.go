// Package telegram adapts the Telegram Bot API behind the notify.Sender
// interface. The monitor never reads updates; it only sends, so no poller
// is configured.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/aurumco/ryde/pkg/logx"
)

type Config struct {
	Token string
}

type Adapter struct {
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &Adapter{bot: b, log: log}, nil
}

// SendText delivers one HTML-formatted message. Telebot has no context
// plumbing on Send, so cancellation is checked up front; an in-flight send
// always completes.
func (a *Adapter) SendText(ctx context.Context, chatID int64, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	start := time.Now()
	_, err := a.bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return err
	}
	a.log.Debug("message sent", logx.Int64("chat_id", chatID), logx.Duration("took", time.Since(start)))
	return nil
}

// SendPhoto delivers an image by URL; Telegram fetches it server-side. The
// caption is HTML like everything else.
func (a *Adapter) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	photo := &tele.Photo{File: tele.FromURL(photoURL), Caption: caption}
	_, err := a.bot.Send(&tele.Chat{ID: chatID}, photo, &tele.SendOptions{ParseMode: tele.ModeHTML})
	if err != nil {
		return err
	}
	a.log.Debug("photo sent", logx.Int64("chat_id", chatID))
	return nil
}

// SendDocument delivers a non-image attachment by URL.
func (a *Adapter) SendDocument(ctx context.Context, chatID int64, docURL, filename string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	doc := &tele.Document{File: tele.FromURL(docURL), FileName: filename}
	_, err := a.bot.Send(&tele.Chat{ID: chatID}, doc, nil)
	if err != nil {
		return err
	}
	a.log.Debug("document sent", logx.Int64("chat_id", chatID))
	return nil
}
