package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/memberimport/internal/core"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// fileReport is the outcome of parsing one file.
type fileReport struct {
	name string
	rows []core.ImportRow
	err  error
}

func newValidateCmd(c *cli) *cobra.Command {
	var (
		flags  settingsFlags
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Parse member files and report row errors without importing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := flags.resolve(cmd, c.importCfg)
			if err != nil {
				return err
			}

			reports := make([]fileReport, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(4)
			for i, path := range args {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					reports[i] = parseFile(path, c.importCfg.MaxFileSize, settings)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			failed := 0
			for _, rep := range reports {
				writeReport(cmd.OutOrStdout(), rep)
				if rep.err != nil || (strict && core.CountValid(rep.rows) < len(rep.rows)) {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d file(s) failed validation", failed, len(reports))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any row is invalid")
	return cmd
}

func parseFile(path string, maxSize int64, settings core.ImportSettings) fileReport {
	rep := fileReport{name: filepath.Base(path)}

	f, err := os.Open(path)
	if err != nil {
		rep.err = err
		return rep
	}
	defer f.Close()

	rep.rows, rep.err = core.ReadAndParse(f, maxSize, settings)
	return rep
}

func writeReport(w io.Writer, rep fileReport) {
	if rep.err != nil {
		msg := rep.err.Error()
		if core.IsUserFacing(rep.err) {
			msg = core.FormatUserError(rep.err)
		}
		fmt.Fprintf(w, "%s: %s\n", rep.name, msg)
		return
	}

	fmt.Fprintf(w, "%s: %d rows, %d valid\n", rep.name, len(rep.rows), core.CountValid(rep.rows))
	for _, row := range rep.rows {
		if row.IsValid() {
			continue
		}
		fmt.Fprintf(w, "  row %d: %s\n", row.RowNumber, strings.Join(row.Errors, "; "))
	}
}
