package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/statloom/internal/analysis"
	cfgpkg "github.com/KaramelBytes/statloom/internal/config"
	"github.com/KaramelBytes/statloom/internal/dataset"
	"github.com/KaramelBytes/statloom/internal/export"
	"github.com/KaramelBytes/statloom/internal/tools"
	"github.com/KaramelBytes/statloom/internal/utils"
	"github.com/spf13/cobra"
)

var (
	anaParams  []string
	anaFilter  string
	anaSheet   string
	anaFormat  string
	anaOutput  string
	anaNarrate bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <method> <file>",
	Short: "Run an analysis method on a CSV/TSV/XLSX file",
	Long: `Run one of the analysis methods on a data file and print or export the result.

Methods: descriptive, regression, sem, pls, predictive, prescriptive, dematel.
Method parameters are passed as --param key=value; run "statloom tools" to list them.`,
	Example: `  statloom analyze descriptive sales.csv
  statloom analyze regression sales.csv --param target=revenue --param predictors=price,ads
  statloom analyze sem survey.xlsx --param model="Quality =~ q1 + q2 + q3" --format xlsx --out sem.xlsx
  statloom analyze predictive monthly.csv --param column=sales --param order=month --narrate`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		method, path := args[0], args[1]
		m, err := analysis.Lookup(method)
		if err != nil {
			return err
		}
		p, err := parseParams(anaParams)
		if err != nil {
			return err
		}
		if tpl, ok := tools.ForMethod(m.Name()); ok {
			if missing := tpl.Validate(p); len(missing) > 0 {
				return fmt.Errorf("missing required --param: %s", strings.Join(missing, ", "))
			}
		}
		format, err := export.ParseFormat(anaFormat)
		if err != nil {
			return err
		}
		ds, err := loadFile(path, anaSheet, c)
		if err != nil {
			return err
		}
		if anaFilter != "" {
			filtered, err := ds.Filter(anaFilter)
			if err != nil {
				return err
			}
			if len(filtered.Rows) == 0 {
				return fmt.Errorf("filter %q matched no rows", anaFilter)
			}
			ds = filtered
		}
		res, err := m.Run(cmd.Context(), ds, p)
		if err != nil {
			return err
		}

		var narration string
		if anaNarrate {
			nc := *c
			nc.NarrativeEnabled = true
			n, err := buildNarrator(&nc)
			if err != nil {
				return err
			}
			narration, err = n.Narrate(cmd.Context(), res)
			if err != nil {
				// the analysis is still worth printing
				fmt.Fprintf(os.Stderr, "⚠ Warning: narrative failed: %v\n", err)
			}
		}

		var buf bytes.Buffer
		if err := export.Write(&buf, res, narration, format); err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), anaOutput, buf.Bytes())
	},
}

// parseParams turns key=value pairs into analysis parameters.
func parseParams(pairs []string) (analysis.Params, error) {
	p := analysis.Params{}
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q (want key=value)", kv)
		}
		p[k] = v
	}
	return p, nil
}

func loadFile(path, sheet string, c *cfgpkg.Global) (*dataset.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	opt := datasetOptions(c)
	opt.Sheet = sheet
	return dataset.Load(filepath.Base(path), data, opt)
}

// emit writes b to path, or to w when path is empty.
func emit(w io.Writer, path string, b []byte) error {
	if path == "" {
		_, err := w.Write(b)
		return err
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", path)
	return nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringArrayVarP(&anaParams, "param", "p", nil, "method parameter as key=value (repeatable)")
	analyzeCmd.Flags().StringVar(&anaFilter, "filter", "", `row filter expression, e.g. 'region == "North"'`)
	analyzeCmd.Flags().StringVar(&anaSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	analyzeCmd.Flags().StringVarP(&anaFormat, "format", "f", "markdown", "output format: markdown, html, csv, json, xlsx")
	analyzeCmd.Flags().StringVarP(&anaOutput, "out", "o", "", "write the result to a file instead of stdout")
	analyzeCmd.Flags().BoolVar(&anaNarrate, "narrate", false, "append an LLM-written interpretation")
}
