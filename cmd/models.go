package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/KaramelBytes/statloom/internal/ai"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect or extend the narrative model catalog",
	Example: `  statloom models show
  statloom models show --json
  statloom models sync --file ./models.json
  statloom models sync --url https://example.com/models.json`,
}

var modelsJSON bool

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := ai.Catalog()
		if modelsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cat)
		}
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Provider", "Model", "Context")
		for _, m := range cat {
			if err := table.Append([]string{m.Provider, m.Name, fmt.Sprintf("%d", m.ContextTokens)}); err != nil {
				return err
			}
		}
		return table.Render()
	},
}

var (
	syncPath string
	syncURL  string
)

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge model entries from a JSON file or URL into the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			m   map[string]ai.ModelInfo
			err error
		)
		switch {
		case syncPath != "":
			m, err = ai.LoadCatalogFromJSON(syncPath)
		case syncURL != "":
			m, err = fetchCatalog(syncURL)
		default:
			return fmt.Errorf("--file or --url is required")
		}
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		ai.MergeCatalog(m)
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Merged %d model(s) into the catalog\n", len(m))
		return nil
	},
}

// fetchCatalog downloads a JSON catalog.
func fetchCatalog(url string) (map[string]ai.ModelInfo, error) {
	client := &http.Client{Timeout: 20 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("fetch: unexpected status %s: %s", resp.Status, string(b))
	}
	var m map[string]ai.ModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return m, nil
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsSyncCmd)
	modelsShowCmd.Flags().BoolVar(&modelsJSON, "json", false, "print the catalog as JSON")
	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to a models JSON file")
	modelsSyncCmd.Flags().StringVar(&syncURL, "url", "", "URL of a models JSON file")
}
