package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KaramelBytes/statloom/internal/ai"
	"github.com/KaramelBytes/statloom/internal/api"
	"github.com/KaramelBytes/statloom/internal/cache"
	"github.com/KaramelBytes/statloom/internal/ingest"
	"github.com/KaramelBytes/statloom/internal/web"
	"github.com/spf13/cobra"
)

var (
	serveAddr       string
	serveNoUI       bool
	serveModelsFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and web UI",
	Example: `  statloom serve
  statloom serve --addr :9090 --no-ui
  STATLOOM_NARRATIVE_ENABLED=true STATLOOM_NARRATIVE_PROVIDER=openai statloom serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			c.ServerAddr = serveAddr
		}
		logger := slog.Default()
		if serveModelsFile != "" {
			m, err := ai.LoadCatalogFromJSON(serveModelsFile)
			if err != nil {
				return fmt.Errorf("load models: %w", err)
			}
			ai.MergeCatalog(m)
		}

		store, err := cache.New(cacheOptions(c))
		if err != nil {
			return err
		}
		if closer, ok := store.(io.Closer); ok {
			defer closer.Close()
		}
		narrator, err := buildNarrator(c)
		if err != nil {
			return err
		}
		if narrator != nil {
			logger.Info("narratives enabled", "provider", c.NarrativeProvider, "model", c.NarrativeModel)
		}

		deps := &api.Dependencies{
			Cache:            store,
			Board:            ingest.NewBoard(ingestOptions(c), c.CacheTTL(), c.CacheMaxEntries),
			Dataset:          datasetOptions(c),
			Narrator:         narrator,
			NarrateByDefault: false,
			Logger:           logger,
			Version:          Version,
		}
		e := api.NewServer(deps, api.ServerOptions{
			BodyLimit:      c.BodyLimit,
			RequestTimeout: c.RequestTimeout(),
			EnableCORS:     c.EnableCORS,
			RequestLogging: c.RequestLogging,
		})
		if !serveNoUI {
			if err := web.RegisterRoutes(e, Version); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		errCh := make(chan error, 1)
		go func() {
			logger.Info("server starting", "addr", c.ServerAddr, "cache", c.CacheBackend, "version", Version)
			errCh <- e.Start(c.ServerAddr)
		}()
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address (overrides server_addr)")
	serveCmd.Flags().BoolVar(&serveNoUI, "no-ui", false, "serve the API only")
	serveCmd.Flags().StringVar(&serveModelsFile, "models-file", "", "JSON file merged into the model catalog at startup")
}
