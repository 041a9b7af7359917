package ai

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// ModelInfo describes a known model. Context windows are approximate.
type ModelInfo struct {
	Name          string `json:"name" yaml:"name"`
	Provider      string `json:"provider" yaml:"provider"`
	ContextTokens int    `json:"context_tokens" yaml:"context_tokens"`
}

// DefaultContextTokens is assumed for models missing from the catalog.
const DefaultContextTokens = 8192

var (
	catalogMu sync.RWMutex
	models    = map[string]ModelInfo{
		"gpt-4o-mini":                       {Name: "gpt-4o-mini", Provider: ProviderOpenAI, ContextTokens: 128000},
		"gpt-4o":                            {Name: "gpt-4o", Provider: ProviderOpenAI, ContextTokens: 128000},
		"gpt-4.1-mini":                      {Name: "gpt-4.1-mini", Provider: ProviderOpenAI, ContextTokens: 1047576},
		"openai/gpt-4o-mini":                {Name: "openai/gpt-4o-mini", Provider: ProviderOpenRouter, ContextTokens: 128000},
		"anthropic/claude-3.5-sonnet":       {Name: "anthropic/claude-3.5-sonnet", Provider: ProviderOpenRouter, ContextTokens: 200000},
		"google/gemini-1.5-flash":           {Name: "google/gemini-1.5-flash", Provider: ProviderOpenRouter, ContextTokens: 1000000},
		"meta-llama/llama-3.1-8b-instruct":  {Name: "meta-llama/llama-3.1-8b-instruct", Provider: ProviderOpenRouter, ContextTokens: 131072},
		"meta-llama/llama-3.1-70b-instruct": {Name: "meta-llama/llama-3.1-70b-instruct", Provider: ProviderOpenRouter, ContextTokens: 131072},
		"llama3:latest":                     {Name: "llama3:latest", Provider: ProviderOllama, ContextTokens: 8192},
		"llama3.1:8b-instruct":              {Name: "llama3.1:8b-instruct", Provider: ProviderOllama, ContextTokens: 8192},
		"qwen2.5:7b-instruct":               {Name: "qwen2.5:7b-instruct", Provider: ProviderOllama, ContextTokens: 32768},
		"mistral:7b-instruct":               {Name: "mistral:7b-instruct", Provider: ProviderOllama, ContextTokens: 8192},
		"phi3:mini-4k-instruct":             {Name: "phi3:mini-4k-instruct", Provider: ProviderOllama, ContextTokens: 4096},
	}
)

// LookupModel returns the catalog entry for name.
func LookupModel(name string) (ModelInfo, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	mi, ok := models[name]
	return mi, ok
}

// ContextWindow returns the context size of model, or DefaultContextTokens.
func ContextWindow(model string) int {
	if mi, ok := LookupModel(model); ok && mi.ContextTokens > 0 {
		return mi.ContextTokens
	}
	return DefaultContextTokens
}

// Catalog returns the catalog sorted by provider, then name.
func Catalog() []ModelInfo {
	catalogMu.RLock()
	out := make([]ModelInfo, 0, len(models))
	for _, v := range models {
		out = append(out, v)
	}
	catalogMu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// MergeCatalog adds or replaces entries.
func MergeCatalog(m map[string]ModelInfo) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	for k, v := range m {
		if v.Name == "" {
			v.Name = k
		}
		models[k] = v
	}
}

// LoadCatalogFromJSON reads a JSON object of name to ModelInfo, e.g.
// {"my-model": {"provider": "ollama", "context_tokens": 32768}}.
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]ModelInfo
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for k, v := range m {
		if strings.TrimSpace(k) == "" || v.ContextTokens < 0 {
			return nil, fmt.Errorf("parse %s: invalid entry %q", path, k)
		}
	}
	return m, nil
}
