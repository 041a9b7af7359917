package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/statloom/internal/ai"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/xuri/excelize/v2"
)

const salesCSV = "region,x,y\nNorth,1,2.1\nSouth,2,3.9\nNorth,3,6.2\nSouth,4,7.8\nNorth,5,10.1\nSouth,6,12.2\nNorth,7,13.8\nSouth,8,16.1\nNorth,9,18.2\nSouth,10,19.9\nNorth,11,22.1\n"

// resetFlags restores every flag to its default so state does not leak
// between invocations of the shared root command.
func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(resetFlag)
	c.PersistentFlags().VisitAll(resetFlag)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func resetFlag(fl *pflag.Flag) {
	if sv, ok := fl.Value.(pflag.SliceValue); ok {
		_ = sv.Replace(nil)
	} else {
		_ = fl.Value.Set(fl.DefValue)
	}
	fl.Changed = false
}

// runCmd executes the root command with args and returns its stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

func writeData(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte(salesCSV), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	return path
}

func TestCLI_Preview(t *testing.T) {
	path := writeData(t)
	out := mustRun(t, "preview", path, "--rows", "2")
	if !strings.Contains(out, "3 column(s), comma-delimited, 11 data row(s)") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
	if !strings.Contains(strings.ToUpper(out), "REGION") || !strings.Contains(out, "South") {
		t.Fatalf("table missing headers or rows:\n%s", out)
	}
	if !strings.Contains(out, "2.1") || strings.Contains(out, "6.2") {
		t.Fatalf("expected exactly two preview rows:\n%s", out)
	}

	bad := filepath.Join(t.TempDir(), "one.csv")
	if err := os.WriteFile(bad, []byte("onlyone\n1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "preview", bad); err == nil || !strings.Contains(err.Error(), "Could not parse headers") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestCLI_AnalyzeFormats(t *testing.T) {
	path := writeData(t)

	out := mustRun(t, "analyze", "descriptive", path)
	if !strings.HasPrefix(out, "## Descriptive statistics") {
		t.Fatalf("unexpected markdown:\n%s", out)
	}

	out = mustRun(t, "analyze", "regression", path, "-p", "target=y", "-f", "json", "--filter", `region == "North"`)
	var doc struct {
		Result struct {
			Method string `json:"method"`
			Rows   int    `json:"rows"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if doc.Result.Method != "regression" || doc.Result.Rows != 6 {
		t.Fatalf("unexpected result: %+v", doc.Result)
	}

	xlsx := filepath.Join(t.TempDir(), "out", "reg.xlsx")
	mustRun(t, "analyze", "regression", path, "-p", "target=y", "-f", "xlsx", "-o", xlsx)
	f, err := excelize.OpenFile(xlsx)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	if f.GetSheetList()[0] != "Summary" {
		t.Fatalf("unexpected sheets: %v", f.GetSheetList())
	}
}

func TestCLI_AnalyzeErrors(t *testing.T) {
	path := writeData(t)
	cases := map[string][]string{
		"unknown method":  {"analyze", "anova", path},
		"missing param":   {"analyze", "regression", path},
		"bad param":       {"analyze", "regression", path, "-p", "target"},
		"bad format":      {"analyze", "descriptive", path, "-f", "pdf"},
		"empty filter":    {"analyze", "descriptive", path, "--filter", "x > 100"},
		"missing file":    {"analyze", "descriptive", filepath.Join(t.TempDir(), "nope.csv")},
		"too few columns": {"analyze", "regression", path, "-p", "target=region"},
	}
	for name, args := range cases {
		if _, err := runCmd(t, args...); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestCLI_Chart(t *testing.T) {
	path := writeData(t)
	out := filepath.Join(t.TempDir(), "fit.svg")
	mustRun(t, "chart", path, "-p", "kind=scatter", "-p", "x=x", "-p", "y=y", "-o", out)
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read chart: %v", err)
	}
	if !bytes.Contains(b, []byte("<svg")) {
		t.Fatalf("expected svg output")
	}
}

func TestCLI_ConfigSetShow(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	mustRun(t, "config", "set", "narrative_provider", "openrouter")
	mustRun(t, "config", "set", "api_key", "sk-1234567890")
	out := mustRun(t, "config", "show")
	if !strings.Contains(out, "narrative_provider: openrouter") {
		t.Fatalf("setting not persisted:\n%s", out)
	}
	if strings.Contains(out, "sk-1234567890") || !strings.Contains(out, "sk-****890") {
		t.Fatalf("api key not masked:\n%s", out)
	}
	if _, err := runCmd(t, "config", "set", "cache_backend", "disk"); err == nil {
		t.Fatalf("expected invalid value error")
	}
	if keys := mustRun(t, "config", "keys"); !strings.Contains(keys, "redis_addr\n") {
		t.Fatalf("keys missing redis_addr:\n%s", keys)
	}
}

func TestCLI_ToolsAndModels(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	out := mustRun(t, "tools")
	if !strings.Contains(out, "dematel-analysis") || !strings.Contains(out, "/api/visualization") {
		t.Fatalf("tools listing incomplete:\n%s", out)
	}
	out = mustRun(t, "tools", "pls")
	if !strings.Contains(out, "bootstrap") || !strings.Contains(out, "factorial") {
		t.Fatalf("pls parameters missing:\n%s", out)
	}
	out = mustRun(t, "models", "show", "--json")
	var cat []ai.ModelInfo
	if err := json.Unmarshal([]byte(out), &cat); err != nil || len(cat) == 0 {
		t.Fatalf("models json: %v\n%s", err, out)
	}
}

func TestBuildRuntimeDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg = nil
	c, err := currentConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	rt, provider, err := buildRuntime(c)
	if err != nil || rt == nil {
		t.Fatalf("buildRuntime error: %v", err)
	}
	if provider != ai.ProviderOllama {
		t.Fatalf("expected ollama provider, got %q", provider)
	}
	if n, err := buildNarrator(c); err != nil || n != nil {
		t.Fatalf("narrator should be disabled by default: %v %v", n, err)
	}
	nc := *c
	nc.NarrativeEnabled = true
	nc.NarrativeProvider = "bard"
	if _, err := buildNarrator(&nc); err == nil {
		t.Fatalf("expected unknown provider error")
	}
	cfg = nil
}

func TestParseParams(t *testing.T) {
	p, err := parseParams([]string{"target=y", "model=A =~ a1 + a2", " predictors =x"})
	if err != nil {
		t.Fatal(err)
	}
	if p["target"] != "y" || p["model"] != "A =~ a1 + a2" || p["predictors"] != "x" {
		t.Fatalf("unexpected params: %v", p)
	}
	if _, err := parseParams([]string{"=x"}); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
