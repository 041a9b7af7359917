package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/KaramelBytes/statloom/internal/ingest"
	"github.com/KaramelBytes/statloom/internal/tools"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	previewRows     int
	previewTemplate string
)

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Show the detected headers and first rows of a delimited file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		opt := ingestOptions(c)
		if previewRows > 0 {
			opt.PreviewRows = previewRows
		}
		p, err := ingest.BuildPreview(string(data), opt)
		if err != nil {
			return fmt.Errorf("%s", ingest.Message(err))
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ %d column(s), %s-delimited, %d data row(s)\n", len(p.Headers), p.DelimiterName(), p.DataRows)
		table := tablewriter.NewWriter(out)
		table.Header(toAny(p.Headers)...)
		if err := table.Bulk(p.Rows); err != nil {
			return err
		}
		if err := table.Render(); err != nil {
			return err
		}
		warnings := p.Warnings
		if t, ok := tools.Lookup(previewTemplate); ok && t.Numeric {
			warnings = append(warnings, ingest.NumericWarnings(p, p.Headers)...)
		}
		for _, w := range warnings {
			fmt.Fprintf(out, "⚠ %s\n", strings.TrimPrefix(w, "Warning: "))
		}
		return nil
	},
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().IntVar(&previewRows, "rows", 0, "number of data rows to show (default from preview_rows)")
	previewCmd.Flags().StringVar(&previewTemplate, "template", "", "tool id whose numeric checks apply, e.g. regression-analysis")
}
