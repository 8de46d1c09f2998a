package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/segmenta-io/segmenta/internal/catalog"
	"github.com/segmenta-io/segmenta/internal/cluster"
	"github.com/segmenta-io/segmenta/internal/config"
	"github.com/segmenta-io/segmenta/internal/embed"
	segerrors "github.com/segmenta-io/segmenta/internal/errors"
	"github.com/segmenta-io/segmenta/internal/httpapi"
	"github.com/segmenta-io/segmenta/internal/query"
	"github.com/segmenta-io/segmenta/internal/search"
	"github.com/segmenta-io/segmenta/internal/service"
	"github.com/segmenta-io/segmenta/internal/session"
	"github.com/segmenta-io/segmenta/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the catalog and serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Catalog.Path == "" {
		return segerrors.New(segerrors.ErrCodeConfigInvalid, "catalog path is required (--config or CATALOG_PATH)", nil)
	}

	logger, cleanup, err := setupLogging(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer cleanup()

	metrics := telemetry.New()
	breaker := segerrors.NewCircuitBreaker("embeddings",
		segerrors.WithMaxFailures(cfg.Degrade.MaxFailures),
		segerrors.WithWindow(cfg.Degrade.Window))

	var provider embed.Provider
	if cfg.SemanticEnabled() {
		p, err := embed.NewOpenAIProvider(cfg.Embeddings, breaker, logger)
		if err != nil {
			return err
		}
		provider = embed.NewCachedProvider(p, cfg.Embeddings.CacheSize)
		defer provider.Close()
	} else {
		logger.Warn("embedding API key not set, semantic search disabled")
	}

	engine := search.NewEngine(cfg.Search, cfg.Similarity, provider, logger)
	processor := query.NewProcessor(cfg.Query, query.WithLogger(logger))

	loader := catalog.NewLoader(cfg.Catalog, cfg.Embeddings.Dimensions, logger)
	reload := func(ctx context.Context) error {
		snap, stats, err := loader.Load(ctx)
		if err != nil {
			return err
		}
		set, err := search.BuildIndexSet(snap, cfg.Search.BruteForceThreshold)
		if err != nil {
			return err
		}
		if old := engine.Swap(set); old != nil {
			old.Close()
		}
		metrics.ObserveCatalogSwap(snap.Len())
		logger.Info("catalog loaded",
			"variables", stats.Variables,
			"with_embedding", stats.WithEmbedding,
			"source", stats.Source,
			"elapsed", stats.Elapsed)
		return nil
	}
	if err := reload(ctx); err != nil {
		return err
	}

	clusterer, err := buildClusterer(cfg, logger)
	if err != nil {
		return err
	}

	sessions := session.NewManager(cfg.Sessions, cfg.Clusterer, clusterer, logger)
	defer sessions.Close()

	svc := service.New(service.Deps{
		Config:    cfg,
		Processor: processor,
		Engine:    engine,
		Cache:     search.NewResultCache(cfg.Cache),
		Router:    search.NewRouter(cfg.Router),
		Sessions:  sessions,
		Metrics:   metrics,
		Logger:    logger,
	})
	srv := httpapi.NewServer(cfg.Server, svc, metrics, logger)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Catalog.WatchReload {
		watcher := catalog.NewWatcher(cfg.Catalog.Path, cfg.Catalog.WatchDebounce, reload, logger)
		g.Go(func() error {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				metrics.SetBreakerOpen("embeddings", !breaker.Allow())
				metrics.SetLiveSessions(sessions.Len())
			}
		}
	})

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func buildClusterer(cfg *config.Config, logger *slog.Logger) (cluster.Clusterer, error) {
	if cfg.Clusterer.Endpoint != "" {
		return cluster.NewHTTPClusterer(cfg.Clusterer, logger)
	}
	logger.Warn("no clusterer endpoint configured, using in-process fake")
	return &cluster.FakeClusterer{}, nil
}
