package cmd

import (
	"os"
	"strings"

	"github.com/KaramelBytes/statloom/internal/ai"
	"github.com/KaramelBytes/statloom/internal/cache"
	cfgpkg "github.com/KaramelBytes/statloom/internal/config"
	"github.com/KaramelBytes/statloom/internal/dataset"
	"github.com/KaramelBytes/statloom/internal/ingest"
	"github.com/KaramelBytes/statloom/internal/narrative"
)

// buildRuntime returns the LLM runtime configured for narratives. The API key
// falls back to OPENAI_API_KEY or OPENROUTER_API_KEY for the matching provider.
func buildRuntime(c *cfgpkg.Global) (ai.Runtime, string, error) {
	provider := strings.ToLower(strings.TrimSpace(c.NarrativeProvider))
	if provider == "" {
		provider = ai.ProviderOllama
	}
	apiKey := c.APIKey
	if apiKey == "" {
		switch provider {
		case ai.ProviderOpenAI:
			apiKey = os.Getenv("OPENAI_API_KEY")
		case ai.ProviderOpenRouter:
			apiKey = os.Getenv("OPENROUTER_API_KEY")
		}
	}
	rc := ai.RuntimeConfig{
		HTTPTimeout: c.HTTPTimeout(),
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   c.RetryBaseDelay(),
		MaxDelay:    c.RetryMaxDelay(),
		APIKey:      apiKey,
		BaseURL:     c.BaseURL,
		Host:        c.OllamaHost,
	}
	rt, err := ai.New(provider, rc)
	if err != nil {
		return nil, "", err
	}
	return rt, provider, nil
}

// buildNarrator returns nil when narratives are disabled.
func buildNarrator(c *cfgpkg.Global) (*narrative.Narrator, error) {
	if !c.NarrativeEnabled {
		return nil, nil
	}
	rt, _, err := buildRuntime(c)
	if err != nil {
		return nil, err
	}
	return narrative.New(rt, c.NarrativeModel, c.NarrativeMaxTokens, c.NarrativeTemperature), nil
}

func datasetOptions(c *cfgpkg.Global) dataset.Options {
	opt := dataset.DefaultOptions()
	if c.MaxRows > 0 {
		opt.MaxRows = c.MaxRows
	}
	return opt
}

func ingestOptions(c *cfgpkg.Global) ingest.Options {
	opt := ingest.DefaultOptions()
	if c.PreviewRows > 0 {
		opt.PreviewRows = c.PreviewRows
	}
	opt.SmallDatasetRows = c.SmallDatasetRows
	return opt
}

func cacheOptions(c *cfgpkg.Global) cache.Options {
	return cache.Options{
		Backend:       c.CacheBackend,
		TTL:           c.CacheTTL(),
		MaxEntries:    c.CacheMaxEntries,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
	}
}
