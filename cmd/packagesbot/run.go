package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/codegangsta/packagesbot/internal/commands"
	"github.com/codegangsta/packagesbot/internal/config"
	"github.com/codegangsta/packagesbot/internal/dialogue"
	"github.com/codegangsta/packagesbot/internal/telegram"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Telegram and answer commands (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}
}

func runBot(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	started := time.Now()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info("config loaded",
		"config", configPath,
		"allowlist_count", len(cfg.Allowlist),
		"results_per_page", cfg.Search.ResultsPerPage,
		"debug", cfg.Debug,
	)
	if cfg.FeedbackChatID == 0 {
		logger.Warn("no feedback chat configured, /feedback is disabled")
	}

	bot, err := telegram.New(cfg.Telegram.Token, cfg.IsAllowed, logger)
	if err != nil {
		return fmt.Errorf("creating telegram bot: %w", err)
	}

	engine := dialogue.NewEngine(dialogue.NewMemoryStore(), bot, newSearchClient(cfg, logger), dialogue.Options{
		Version:        Version,
		FeedbackChatID: cfg.FeedbackChatID,
		Started:        started,
		Logger:         logger,
	})

	bot.SetHandler(func(ctx context.Context, msg dialogue.Message) {
		logger.Debug("processing message",
			"chat_id", msg.ChatID,
			"user_id", msg.SenderID,
			"msg_id", msg.MessageID,
			"text_length", len(msg.Text),
		)

		// plain chatter is usually not for us; only show typing for commands
		if commands.Parse(msg.Text).Kind != commands.KindNoCommand {
			stopTyping := bot.TypingLoop(msg.ChatID)
			defer stopTyping()
		}

		engine.HandleText(ctx, msg)
	})

	if err := bot.RegisterCommands(commands.Specs()); err != nil {
		logger.Warn("failed to register command menu", "error", err)
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case sig := <-sigChan:
			logger.Info("shutdown signal received", "signal", sig.String())
			cancel()
		case <-gctx.Done():
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return bot.Start(gctx)
	})

	logger.Info("packagesbot started, connecting to telegram", "version", Version)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("telegram bot: %w", err)
	}
	logger.Info("packagesbot stopped", "uptime", time.Since(started).Round(time.Second))
	return nil
}
