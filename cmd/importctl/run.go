package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/memberimport/internal/core"
	"github.com/JonMunkholm/memberimport/internal/store"
	"github.com/spf13/cobra"
)

// memberStore is what a run needs from its backend.
type memberStore interface {
	core.MemberCreator
	core.HistoryStore
}

type runOptions struct {
	settings settingsFlags
	dryRun   bool
	quiet    bool
}

func newRunCmd(c *cli) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Import members from a CSV file",
		Long: `Parses FILE, imports every valid row, and prints the result.

With --dry-run members are created in an in-memory store, so duplicate
emails within the file are still reported but nothing is written. Otherwise
members go to the database named by DATABASE_URL.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := opts.settings.resolve(cmd, c.importCfg)
			if err != nil {
				return err
			}

			var st memberStore
			if opts.dryRun {
				st = store.NewMemory()
			} else {
				pg, pool, err := openPostgres(cmd.Context())
				if err != nil {
					return err
				}
				defer pool.Close()
				st = pg
			}

			return c.runImport(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), st, args[0], settings, opts.quiet)
		},
	}

	opts.settings.register(cmd)
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "import into memory instead of the database")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print progress")
	return cmd
}

// runImport drives one import session to completion. Interrupting ctx
// cancels the import before its next row.
func (c *cli) runImport(ctx context.Context, out, progressOut io.Writer, st memberStore, path string, settings core.ImportSettings, quiet bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	svc := core.NewService(core.NewImporter(st, c.logger), st, core.ServiceConfig{
		MaxFileSize:   c.importCfg.MaxFileSize,
		ImportTimeout: c.importCfg.Timeout,
		MaxConcurrent: 1,
	}, c.logger)

	id, err := svc.CreateSession(settings)
	if err != nil {
		return err
	}

	snap, err := svc.LoadFile(ctx, id, filepath.Base(path), f)
	if err != nil {
		return userError(err)
	}
	fmt.Fprintf(out, "%s: %d rows, %d valid\n", snap.FileName, snap.TotalRows, snap.ValidRows)

	if err := svc.StartImport(core.ContextWithRequester(ctx, "", "importctl"), id); err != nil {
		return userError(err)
	}
	stop := context.AfterFunc(ctx, func() { _ = svc.CancelImport(id) })
	defer stop()

	progress, err := svc.SubscribeProgress(id)
	if err != nil {
		return err
	}
	for p := range progress {
		if !quiet && p.Phase == core.PhaseImporting && p.Total > 0 {
			fmt.Fprintf(progressOut, "\rimported %d/%d (%d%%)", p.Processed, p.Total, p.Percent())
		}
	}
	if !quiet {
		fmt.Fprintln(progressOut)
	}

	// The run has ended, so this does not block on ctx.
	result, runErr := svc.Result(context.Background(), id)
	if result != nil {
		fmt.Fprintln(out, result.Summary())
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  %s\n", e)
		}
	}
	if runErr != nil {
		return userError(runErr)
	}
	return nil
}

// userError replaces err with its support-coded message when one exists.
func userError(err error) error {
	if !core.IsUserFacing(err) {
		return err
	}
	return fmt.Errorf("%s", core.FormatUserError(err))
}
