package bot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
)

// clientRunner is a function that runs with an authenticated client.
type clientRunner func(ctx context.Context, client *telegram.Client) error

// runWithBot creates a Telegram client, authenticates it with the bot
// token if the stored session is not yet authorized, and runs the
// provided function while the connection is alive.
func runWithBot(ctx context.Context, sessionDir string, appID int, appHash, token string, handler telegram.UpdateHandler, runner clientRunner) error {
	sessionStorage := &session.FileStorage{
		Path: filepath.Join(sessionDir, "telegram-session.json"),
	}

	waiter := floodwait.NewWaiter().WithCallback(func(ctx context.Context, wait floodwait.FloodWait) {
		slog.Warn("telegram rate limit", "retry_after", wait.Duration)
	})

	// Surface gotd internals through zap, but only the noisy parts.
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	logger, _ := config.Build()

	client := telegram.NewClient(appID, appHash, telegram.Options{
		SessionStorage: sessionStorage,
		Logger:         logger,
		UpdateHandler:  handler,
		Middlewares:    []telegram.Middleware{waiter},
	})

	return waiter.Run(ctx, func(ctx context.Context) error {
		return client.Run(ctx, func(ctx context.Context) error {
			status, err := client.Auth().Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get auth status: %w", err)
			}
			if !status.Authorized {
				if _, err := client.Auth().Bot(ctx, token); err != nil {
					return fmt.Errorf("bot authentication failed: %w", err)
				}
			}

			self, err := client.Self(ctx)
			if err != nil {
				return fmt.Errorf("failed to get self info: %w", err)
			}
			name := self.FirstName
			if self.Username != "" {
				name = fmt.Sprintf("%s (@%s)", name, self.Username)
			}
			slog.Info("telegram authenticated", "as", name)

			return runner(ctx, client)
		})
	})
}

// registerCommands publishes the bot's command list so clients show
// it in the command menu.
func registerCommands(ctx context.Context, api *tg.Client) error {
	_, err := api.BotsSetBotCommands(ctx, &tg.BotsSetBotCommandsRequest{
		Scope: &tg.BotCommandScopeDefault{},
		Commands: []tg.BotCommand{
			{Command: "start", Description: "Start the bot"},
			{Command: "help", Description: "Help with the bot"},
		},
	})
	return err
}
