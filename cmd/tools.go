package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/statloom/internal/tools"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools [template]",
	Short: "List analysis tools, or the parameters of one tool",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			table := tablewriter.NewWriter(out)
			table.Header("ID", "Method", "Endpoint", "Title")
			for _, t := range tools.All() {
				if err := table.Append([]string{t.ID, t.Method, t.Endpoint, t.Title}); err != nil {
					return err
				}
			}
			return table.Render()
		}
		t, ok := tools.Lookup(args[0])
		if !ok {
			if t, ok = tools.ForMethod(args[0]); !ok {
				return fmt.Errorf("unknown tool: %s", args[0])
			}
		}
		fmt.Fprintf(out, "%s (%s)\n%s\n\n", t.Title, t.ID, t.Description)
		table := tablewriter.NewWriter(out)
		table.Header("Param", "Kind", "Required", "Default", "Help")
		for _, f := range t.Fields {
			req := ""
			if f.Required {
				req = "yes"
			}
			help := f.Help
			if len(f.Options) > 0 {
				help = strings.TrimSpace("one of " + strings.Join(f.Options, ", ") + ". " + help)
			}
			if err := table.Append([]string{f.Name, string(f.Kind), req, f.Default, help}); err != nil {
				return err
			}
		}
		return table.Render()
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
