package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vaultPricer/internal/config"
	"vaultPricer/internal/indexer"
	"vaultPricer/internal/metrics"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a, err := buildApp(ctx, cfg.Config, true, logger, m)
	if err != nil {
		return err
	}
	defer a.Close()

	vault, err := indexer.ParseAddress(cfg.Chain.Vault)
	if err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	runner, err := indexer.NewRunner(indexer.RunConfig{
		Vault:        vault,
		BatchSize:    cfg.Indexer.EventBatchSize,
		PollInterval: cfg.Indexer.PollInterval,
		MaxRetries:   cfg.Indexer.MaxRetries,
		RetryBackoff: cfg.Indexer.RetryBackoff,
	}, a.chain, a.store, func(ctx context.Context, block uint64) error {
		return a.store.Sync(ctx, a.registry.Pools(), block)
	}, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger.Info("pricer start",
		zap.String("rpc", cfg.Chain.RPCURL),
		zap.String("vault", vault.Hex()),
		zap.Int("pools", len(a.registry.Pools())),
		zap.Uint64("event_batch_size", cfg.Indexer.EventBatchSize),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.registry.Run(gctx, cfg.Registry.Refresh, cfg.Registry.DisabledRefresh)
	})
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("pricer stopped")
	return nil
}
