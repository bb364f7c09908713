package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codegangsta/packagesbot/internal/config"
	"github.com/codegangsta/packagesbot/internal/search"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "packagesbot",
		Short: "Telegram bot that searches npm, Bower and crates.io",
		Long: `packagesbot answers slash commands in Telegram chats:

  /npm <name>      search npm
  /bower <name>    search Bower
  /crates <name>   search crates.io
  /feedback <text> message the operator

Secrets can come from the environment (TELEGRAM_TOKEN, LIBRARIES_IO_API_KEY,
FEEDBACK_CHAT_ID) instead of the config file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to config file (empty: environment only)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

// defaultConfigPath returns ~/.config/packagesbot/config.yaml when it exists
func defaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(homeDir, ".config", "packagesbot", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// setupLogger configures slog based on config settings. The returned
// function closes the log file, if any.
func setupLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	var level slog.Level
	if cfg.Debug {
		level = slog.LevelDebug
	} else {
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		// Write to both stdout and file
		w = io.MultiWriter(os.Stdout, f)
		closeFn = func() { f.Close() }
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

func newSearchClient(cfg *config.Config, logger *slog.Logger) *search.Client {
	return search.New(search.Options{
		BaseURL:           cfg.LibrariesIO.BaseURL,
		APIKey:            cfg.LibrariesIO.APIKey,
		PerPage:           cfg.Search.ResultsPerPage,
		RequestsPerMinute: cfg.LibrariesIO.RequestsPerMinute,
		Timeout:           cfg.LibrariesIO.Timeout,
		MaxRetryTime:      cfg.LibrariesIO.MaxRetryTime,
		Logger:            logger,
	})
}
