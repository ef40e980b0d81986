package main

import (
	"encoding/json"
	"sync"

	"github.com/spf13/cobra"

	"releasefinder/internal/app"
	"releasefinder/internal/conversation"
	"releasefinder/internal/search"
	"releasefinder/internal/session"
)

// cliUser owns the session of a one-shot command.
const cliUser = "releasectl"

type commandContext struct {
	jsonOutput bool
	logLevel   string

	// providers is swapped out in tests.
	providers func(cfg app.Config) []search.Provider

	once     sync.Once
	cfg      app.Config
	searcher *search.Service
	chat     *conversation.Service
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) services() (*search.Service, *conversation.Service) {
	c.once.Do(func() {
		c.cfg = app.LoadConfig()
		logger := app.NewLogger(c.logLevel, "text")
		build := c.providers
		if build == nil {
			build = func(cfg app.Config) []search.Provider { return app.BuildProviders(cfg, logger) }
		}
		c.searcher = search.NewService(build(c.cfg), c.cfg.RequestTimeout, search.WithLogger(logger))
		c.chat = conversation.NewService(c.searcher, session.NewStore(), conversation.WithLogger(logger))
	})
	return c.searcher, c.chat
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(newCommandContext())
}

func newRootCommandWith(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "releasectl",
		Short:         "Search music releases across metadata providers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().BoolVar(&ctx.jsonOutput, "json", false, "Print JSON instead of tables")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "error", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newSearchCommand(ctx))
	rootCmd.AddCommand(newDigCommand(ctx))
	rootCmd.AddCommand(newAnalyzeCommand(ctx))
	rootCmd.AddCommand(newFolderCommand(ctx))
	rootCmd.AddCommand(newProvidersCommand(ctx))
	return rootCmd
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
