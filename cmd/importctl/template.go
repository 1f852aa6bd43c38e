package main

import (
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/memberimport/internal/core"
	"github.com/spf13/cobra"
)

func newTemplateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Print the member import template CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				_, err := io.WriteString(cmd.OutOrStdout(), core.TemplateCSV())
				return err
			}
			if err := os.WriteFile(output, []byte(core.TemplateCSV()), 0o644); err != nil {
				return fmt.Errorf("write template: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout (e.g. "+core.TemplateFileName+")")
	return cmd
}
