package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/aurumco/ryde/internal/adapters/telegram"
	"github.com/aurumco/ryde/internal/app"
	"github.com/aurumco/ryde/internal/config"
	"github.com/aurumco/ryde/internal/discord"
	"github.com/aurumco/ryde/internal/notify"
	"github.com/aurumco/ryde/internal/snapshot"
	"github.com/aurumco/ryde/pkg/logx"
)

func main() {
	var (
		cfgPath  string
		schedule string
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml")
	flag.StringVar(&schedule, "schedule", "", "optional cron spec to run repeatedly (default: single run)")
	flag.Parse()

	// Secrets may live in a .env next to the binary; missing file is fine.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath, schedule); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath, schedule string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts, err := cfg.Resolve()
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrFatal, err)
	}

	log, err := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer log.Close()

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return err
	}
	store, err := snapshot.Open(snapshot.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("component", "store")))
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer store.Close()

	sender, err := telegram.New(telegram.Config{Token: cfg.Telegram.BotToken},
		log.With(logx.String("component", "telegram")))
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	dispatcher := notify.NewDispatcher(notify.DispatchConfig{
		ChatID:         cfg.Telegram.ChatID,
		AllowedUserIDs: cfg.Telegram.AllowedUserIDs,
	}, sender, log.With(logx.String("component", "dispatch")))

	collab, err := discord.New(discord.Config{
		Token:         cfg.Discord.Token,
		UserAgent:     cfg.Discord.UserAgent,
		TrackedUsers:  cfg.Monitoring.TrackedUsers,
		TrackedGuilds: cfg.Monitoring.TrackedGuilds,
	}, log.With(logx.String("component", "discord")))
	if err != nil {
		return err
	}

	a := app.New(store, collab, dispatcher, notify.NewFormatter(opts.Location), opts, log)

	if schedule != "" {
		sched, err := app.ParseSchedule(schedule)
		if err != nil {
			return err
		}
		return a.RunLoop(ctx, sched)
	}

	err = a.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
