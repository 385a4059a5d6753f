package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/wonny/stockanalyzer/internal/api/handlers"
	"github.com/wonny/stockanalyzer/internal/api/router"
	"github.com/wonny/stockanalyzer/internal/domain/stock"
	"github.com/wonny/stockanalyzer/internal/infra/csvfile"
	"github.com/wonny/stockanalyzer/internal/infra/database/postgres"
	"github.com/wonny/stockanalyzer/internal/pkg/config"
	"github.com/wonny/stockanalyzer/internal/pkg/logger"
	"github.com/wonny/stockanalyzer/internal/service/pricecache"
)

const shutdownTimeout = 10 * time.Second

var servePort string

// serveCmd serve 서브커맨드
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the stocks service",
	Long: `Run the stocks service.

Endpoints:
  GET /api/stocks/{ticker}   prices for ticker as a JSON array
  GET /health                liveness

The backing store is chosen by STOCKS_STORE (file or postgres).`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (default from PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("version", serviceVersion).
		Str("store", cfg.Stocks.Store).
		Msg("Starting stocks service...")

	repo, closeRepo, err := newRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	var cacheReporter handlers.CacheReporter
	if cfg.Stocks.CacheTTL > 0 {
		log.Info().Dur("ttl", cfg.Stocks.CacheTTL).Msg("Price cache enabled")
		cache := pricecache.New(repo, cfg.Stocks.CacheTTL)
		repo, cacheReporter = cache, cache

		stopReload := invalidateOnHangup(ctx, cache)
		defer stopReload()
	}

	var accessLogger *zerolog.Logger
	if cfg.Logging.FileEnabled {
		l := logger.NewAccessLogger(cfg.Logging.FilePath, cfg.Logging.RotationSize, cfg.Logging.RetentionDays)
		accessLogger = &l
	}

	handler := router.NewRouter(router.Config{
		Repository:     repo,
		Version:        serviceVersion,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AccessLogger:   accessLogger,
		Cache:          cacheReporter,
	})

	port := servePort
	if port == "" {
		port = cfg.Server.Port
	}

	addr := fmt.Sprintf(":%s", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("address", addr).
			Msg("Stocks service listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start stocks service: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}

	log.Info().Msg("Stocks service stopped")
	return nil
}

// invalidateOnHangup clears cache on every SIGHUP until ctx is done
func invalidateOnHangup(ctx context.Context, cache *pricecache.Cache) func() {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				stats := cache.Stats()
				cache.Invalidate("")
				log.Info().
					Int("entries", stats.Entries).
					Msg("SIGHUP received, price cache cleared")
			}
		}
	}()

	return func() { signal.Stop(hup) }
}

// newRepository opens the store named by cfg.Stocks.Store
func newRepository(ctx context.Context, cfg *config.Config) (stock.Repository, func(), error) {
	switch cfg.Stocks.Store {
	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		repo := postgres.NewStockPriceRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, pool.Close, nil
	case config.StoreFile:
		log.Info().Str("path", cfg.Stocks.CSVPath).Msg("Serving prices from CSV file")
		return csvfile.NewStore(cfg.Stocks.CSVPath), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidStore, cfg.Stocks.Store)
	}
}
