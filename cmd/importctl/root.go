package main

import (
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/memberimport/internal/config"
	"github.com/JonMunkholm/memberimport/internal/core"
	"github.com/JonMunkholm/memberimport/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// cli holds state shared by every subcommand. It is built fresh per root
// command so tests can run commands in isolation.
type cli struct {
	logLevel  string
	logFormat string

	importCfg config.ImportConfig
	logger    *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "importctl",
		Short:         "Validate and import loyalty member CSV files",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is normal outside development.
			_ = godotenv.Load()

			if err := config.LoadInto(&c.importCfg); err != nil {
				return err
			}
			if err := c.importCfg.Validate(); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}

			c.logger = logging.New(cmd.ErrOrStderr(), c.logLevel, c.logFormat)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(
		newTemplateCmd(),
		newValidateCmd(c),
		newRunCmd(c),
		newHistoryCmd(c),
	)
	return root
}

// settingsFlags binds --tier and --points on cmd.
type settingsFlags struct {
	tier   string
	points int
}

func (f *settingsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tier, "tier", "", "default tier for rows without one (default from IMPORT_DEFAULT_TIER)")
	cmd.Flags().IntVar(&f.points, "points", 0, "default initial points (default from IMPORT_DEFAULT_POINTS)")
}

// resolve builds session settings from configuration, overridden by any
// flags the user set explicitly.
func (f *settingsFlags) resolve(cmd *cobra.Command, cfg config.ImportConfig) (core.ImportSettings, error) {
	settings := core.DefaultSettings()
	if t, ok := core.ParseTier(cfg.DefaultTier); ok {
		settings.DefaultTier = t
	}
	settings.DefaultPoints = cfg.DefaultPoints

	if cmd.Flags().Changed("tier") {
		t, ok := core.ParseTier(f.tier)
		if !ok {
			return settings, fmt.Errorf("invalid import settings: unknown tier %q", f.tier)
		}
		settings.DefaultTier = t
	}
	if cmd.Flags().Changed("points") {
		settings.DefaultPoints = f.points
	}
	return settings, settings.Validate()
}
