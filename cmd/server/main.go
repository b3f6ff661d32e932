package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"transferledger/internal/config"
	"transferledger/internal/events/kafka"
	"transferledger/internal/interfaces"
	"transferledger/internal/ledger"
	"transferledger/internal/logging"
	"transferledger/internal/metrics"
	"transferledger/internal/server"
	"transferledger/internal/storage/memory"
	"transferledger/internal/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromEnv()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		p := kafka.NewPublisher(cfg.KafkaBrokers)
		defer p.Close()
		publisher = p
		logger.Info("event publishing enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	ledgerService := ledger.NewLedger(store, publisher, logger.Named("ledger"), m)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.NewServer(ledgerService, logger.Named("http")).Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("backend", cfg.StorageBackend))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newStore(ctx context.Context, cfg config.Config) (interfaces.LedgerStore, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		store, db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	default:
		return memory.NewStore(), func() {}, nil
	}
}
