// Package cmd defines and implements the CLI commands for the frontier executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/movie-frontier/internal/app"
	"github.com/JakeFAU/movie-frontier/internal/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can swap in
// options such as a quiet logger.
var newApp = func(ctx context.Context, cfg config.Config) (*app.App, error) {
	return app.New(ctx, cfg)
}

// cli holds per-invocation state shared by the command tree.
type cli struct {
	cfgFile string
	app     *app.App
}

// newRootCmd creates and configures the root command.
func (c *cli) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frontier",
		Short: "Crawl frontier and entity lifecycle manager for movies and actors.",
		Long: `frontier tracks which movie and actor pages have been discovered and
crawled. It deduplicates discovered ids, classifies every fetch outcome into a
lifecycle state and stores each crawled payload at most once.`,
		SilenceUsage: true,

		// Runs after flags are parsed but before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			c.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newGetCmd())
	return cmd
}

// execute runs the command tree and shuts the app down even when the
// subcommand failed.
func execute(ctx context.Context, args []string, stdout io.Writer) error {
	c := &cli{}
	root := c.newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	err := root.ExecuteContext(ctx)
	if c.app != nil {
		if closeErr := c.app.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}
	return err
}

// Execute is the main entry point.
func Execute() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
