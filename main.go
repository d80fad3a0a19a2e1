package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/scipunch/feedbot/bot"
	"github.com/scipunch/feedbot/config"
	"github.com/scipunch/feedbot/fetcher"
	"github.com/scipunch/feedbot/format"
	"github.com/scipunch/feedbot/resolver"
	"github.com/scipunch/feedbot/store"
)

func main() {
	if os.Getenv("DEBUG") != "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	var cfgPath string
	flag.StringVar(&cfgPath, "config", config.DefaultPath(), "path to a TOML config")
	flag.Parse()

	// Read config and create a skeleton if the default is missing
	conf, err := config.Read(cfgPath)
	if errors.Is(err, os.ErrNotExist) && cfgPath == config.DefaultPath() {
		if err := config.Write(cfgPath, conf); err != nil {
			log.Fatalf("failed to write default config with %s", err)
		}
	} else if err != nil {
		log.Fatalf("failed to read config with %s", err)
	}
	if err := conf.Validate(); err != nil {
		log.Fatalf("invalid config at '%s': %s", cfgPath, err)
	}

	credPath := config.DefaultCredentialsPath()
	creds, err := config.ReadCredentials(credPath)
	if err != nil {
		log.Fatalf("failed to read credentials: %s", err)
	}
	if !creds.Telegram.IsValid() {
		log.Fatalf("telegram api_id, api_hash and bot_token are required in %s", credPath)
	}

	stateDir := filepath.Dir(conf.Feed.StatePath)
	if err := os.MkdirAll(stateDir, os.ModePerm); err != nil {
		log.Fatalf("failed to create state directory at '%s' with %s", stateDir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := store.New(conf.Feed.StatePath)
	res := resolver.New(st, fetcher.New())
	b := bot.New(conf, creds.Telegram, res, format.New(), stateDir)

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with %s", err)
	}
	slog.Info("bot stopped")
}
