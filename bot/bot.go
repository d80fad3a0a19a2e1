// Package bot wires the relay pipeline to Telegram: it authenticates
// as a bot, answers the two static commands, and runs the periodic
// poll-and-deliver loop.
package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/html"
	"github.com/gotd/td/tg"

	"github.com/scipunch/feedbot/config"
	"github.com/scipunch/feedbot/fetcher"
	"github.com/scipunch/feedbot/format"
	"github.com/scipunch/feedbot/resolver"
)

const greeting = "Hi! This bot does not know many tricks yet. " +
	"Right now it only follows the configured news feed and posts new entries to the chat."

type Bot struct {
	cfg        config.Config
	creds      config.TelegramCredentials
	resolver   *resolver.Resolver
	formatter  *format.Formatter
	sessionDir string
}

func New(cfg config.Config, creds config.TelegramCredentials, res *resolver.Resolver, fmtr *format.Formatter, sessionDir string) *Bot {
	return &Bot{
		cfg:        cfg,
		creds:      creds,
		resolver:   res,
		formatter:  fmtr,
		sessionDir: sessionDir,
	}
}

// Run connects to Telegram and blocks until ctx is cancelled or the
// connection fails. Individual poll cycles log their errors and do
// not terminate the loop.
func (b *Bot) Run(ctx context.Context) error {
	dispatcher := tg.NewUpdateDispatcher()

	return runWithBot(ctx, b.sessionDir, b.creds.AppID, b.creds.AppHash, b.creds.BotToken, dispatcher, func(ctx context.Context, client *telegram.Client) error {
		api := client.API()
		sender := message.NewSender(api)

		b.registerHandlers(dispatcher, sender)
		if err := registerCommands(ctx, api); err != nil {
			slog.Warn("failed to register bot commands", "error", err)
		}

		return b.poll(ctx, sender)
	})
}

func (b *Bot) registerHandlers(dispatcher tg.UpdateDispatcher, sender *message.Sender) {
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewMessage) error {
		m, ok := update.Message.(*tg.Message)
		if !ok || m.Out {
			return nil
		}
		switch commandOf(m.Message) {
		case "/start", "/help":
			slog.Info("command received", "text", m.Message)
			_, err := sender.Reply(e, update).Text(ctx, greeting)
			return err
		}
		return nil
	})
}

// poll runs one relay cycle every configured interval until ctx is
// cancelled.
func (b *Bot) poll(ctx context.Context, sender *message.Sender) error {
	interval := b.cfg.Feed.Interval()
	slog.Info("feed poller started", "url", b.cfg.Feed.URL, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := b.relayOnce(ctx, sender); err != nil {
				slog.Error("poll cycle failed", "error", err)
			}
		}
	}
}

// relayOnce resolves unseen entries and delivers up to the configured
// maximum of them, newest last. Delivery failures are logged and not
// retried; the entries stay marked seen.
func (b *Bot) relayOnce(ctx context.Context, sender *message.Sender) error {
	entries, err := b.resolver.Resolve(ctx, b.cfg.Feed.URL)
	if err != nil {
		return err
	}
	if max := b.cfg.Feed.Max; len(entries) > max {
		entries = entries[len(entries)-max:]
	}

	for _, entry := range entries {
		if err := b.send(ctx, sender, entry); err != nil {
			slog.Error("failed to deliver entry", "id", entry.ID, "error", err)
			continue
		}
		slog.Info("entry delivered", "id", entry.ID, "title", entry.Title)
	}
	return nil
}

func (b *Bot) send(ctx context.Context, sender *message.Sender, entry fetcher.Entry) error {
	text := b.formatter.Format(entry)
	_, err := sender.Resolve(b.cfg.Telegram.Chat).StyledText(ctx, html.String(nil, text))
	return err
}

// commandOf extracts the leading bot command from a message, dropping
// the "@botname" suffix used in group chats. Returns "" for
// non-command messages.
func commandOf(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd
}
