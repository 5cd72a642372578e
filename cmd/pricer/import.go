package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultPricer/internal/chain"
	"vaultPricer/internal/config"
	"vaultPricer/internal/dex"
	"vaultPricer/internal/indexer"
	"vaultPricer/internal/model"
	"vaultPricer/internal/registry"
	"vaultPricer/internal/storage/postgres"
)

func runImport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadImport(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	snap, err := registry.ReadSnapshot(cfg.File)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ResolveTokens {
		if err := resolveSnapshotTokens(ctx, cfg.Config, &snap, logger); err != nil {
			return err
		}
	}

	store, err := postgres.NewStore(ctx, cfg.Registry.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	if err := store.UpsertPools(ctx, snap); err != nil {
		return fmt.Errorf("upsert pools: %w", err)
	}

	logger.Info("pools imported",
		zap.String("file", cfg.File),
		zap.Int("pools", len(snap.Pools)),
		zap.Int("edges", len(snap.Edges)),
		zap.Int("disabled", len(snap.Disabled)),
	)
	return nil
}

// resolveSnapshotTokens fills decimals and symbols at the latest block for
// every distinct token in the snapshot.
func resolveSnapshotTokens(ctx context.Context, cfg config.Config, snap *registry.Snapshot, logger *zap.Logger) error {
	multicall, err := indexer.ParseAddress(cfg.Chain.Multicall)
	if err != nil {
		return fmt.Errorf("multicall: %w", err)
	}
	client, err := chain.NewClient(ctx, cfg.Chain.RPCURL, multicall)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	block, err := client.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("latest block: %w", err)
	}

	index := make(map[string]int)
	var unique []model.Token
	for i := range snap.Pools {
		snap.Pools[i].Normalize()
		for _, t := range snap.Pools[i].Tokens {
			if _, ok := index[t.Address]; !ok {
				index[t.Address] = len(unique)
				unique = append(unique, t)
			}
		}
	}
	resolved, err := dex.ResolveTokens(ctx, client, unique, block, logger)
	if err != nil {
		return err
	}
	for i := range snap.Pools {
		for j, t := range snap.Pools[i].Tokens {
			snap.Pools[i].Tokens[j] = resolved[index[t.Address]]
		}
	}
	return nil
}
