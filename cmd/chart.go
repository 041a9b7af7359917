package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/statloom/internal/chart"
	"github.com/spf13/cobra"
)

var (
	chartParams []string
	chartOutput string
	chartSheet  string
)

var chartCmd = &cobra.Command{
	Use:   "chart <file>",
	Short: "Render a chart of a data file as PNG or SVG",
	Example: `  statloom chart sales.csv -p kind=histogram -p x=revenue -o revenue.png
  statloom chart sales.csv -p kind=scatter -p x=price -p y=revenue -p trend=true -o fit.svg`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		p, err := parseParams(chartParams)
		if err != nil {
			return err
		}
		if _, ok := p["format"]; !ok {
			if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(chartOutput)), "."); ext == "svg" {
				p["format"] = ext
			}
		}
		spec, err := chart.SpecFromParams(p)
		if err != nil {
			return err
		}
		ds, err := loadFile(args[0], chartSheet, c)
		if err != nil {
			return err
		}
		img, err := chart.Render(ds, spec)
		if err != nil {
			return err
		}
		out := chartOutput
		if out == "" {
			out = fmt.Sprintf("%s-%s.%s", strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])), spec.Kind, spec.Format)
		}
		return emit(cmd.OutOrStdout(), out, img)
	},
}

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.Flags().StringArrayVarP(&chartParams, "param", "p", nil, "chart parameter as key=value: kind, x, y, bins, trend, title, format, width, height")
	chartCmd.Flags().StringVarP(&chartOutput, "out", "o", "", "output file (default <file>-<kind>.<format>)")
	chartCmd.Flags().StringVar(&chartSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
}
