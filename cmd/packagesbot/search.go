package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codegangsta/packagesbot/internal/config"
	"github.com/codegangsta/packagesbot/internal/replies"
	"github.com/codegangsta/packagesbot/internal/types"
)

func newSearchCmd() *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "search <npm|bower|crates> <query...>",
		Short: "Run one registry search and print the reply the bot would send",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, ok := types.ParsePlatform(strings.ToLower(args[0]))
			if !ok {
				return fmt.Errorf("unknown platform %q (want npm, bower or crates)", args[0])
			}
			query := strings.Join(args[1:], " ")

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger, closeLog, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			client := newSearchClient(cfg, logger)
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, replies.Searching(query, platform))
			result, err := client.Search(cmd.Context(), platform, query, page)
			if err != nil {
				return err
			}

			text := result.Text
			if strings.TrimSpace(text) == "" {
				text = replies.NoResults(query, platform)
			}
			if result.Remaining > 0 {
				text += replies.MorePages(result.Remaining, result.PerPage)
			}
			fmt.Fprintln(out, strings.TrimPrefix(text, "\n"))
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "result page to fetch")
	return cmd
}
