package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "pricer",
		Short:        "Vault pool pricing core",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep pool state synced and expose metrics",
		RunE:  runServe,
	}
	addCoreFlags(serveCmd.Flags())
	serveCmd.Flags().Uint64("event-batch-size", 2000, "blocks per log query")
	serveCmd.Flags().Duration("poll-interval", 12*time.Second, "log polling interval")
	serveCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	serveCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	serveCmd.Flags().String("metrics-addr", ":9090", "metrics listen address")
	root.AddCommand(serveCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price an amount ladder through every candidate pool",
		RunE:  runQuote,
	}
	addCoreFlags(quoteCmd.Flags())
	addPairFlags(quoteCmd.Flags())
	quoteCmd.Flags().String("amounts", "", "ascending amounts in native units (comma-separated, first is 0)")
	quoteCmd.Flags().String("pools", "", "pool identifier allow-list (comma-separated)")
	quoteCmd.Flags().String("out", "", "append results to this JSONL file")
	root.AddCommand(quoteCmd)

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "List pool identifiers that can price a pair",
		RunE:  runPools,
	}
	addCoreFlags(poolsCmd.Flags())
	addPairFlags(poolsCmd.Flags())
	root.AddCommand(poolsCmd)

	topCmd := &cobra.Command{
		Use:   "top",
		Short: "Rank pools holding a token by liquidity",
		RunE:  runTop,
	}
	addCoreFlags(topCmd.Flags())
	topCmd.Flags().String("token", "", "token address or alias")
	topCmd.Flags().Int("limit", 10, "maximum pools to list")
	root.AddCommand(topCmd)

	importCmd := &cobra.Command{
		Use:   "import-pools",
		Short: "Seed Postgres pool metadata from a snapshot file",
		RunE:  runImport,
	}
	addCoreFlags(importCmd.Flags())
	importCmd.Flags().String("file", "", "pool snapshot JSON file")
	importCmd.Flags().Bool("resolve-tokens", false, "fill token decimals and symbols from chain")
	root.AddCommand(importCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func addCoreFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "RPC URL")
	flags.String("vault", "", "vault contract address")
	flags.String("multicall", "", "Multicall2 contract address")
	flags.Int("chunk-size", 500, "calls per batch read")
	flags.Int("batch-concurrency", 4, "concurrent batch reads")
	flags.Float64("batch-rps", 0, "batch reads per second, 0 for unlimited")
	flags.String("metadata-file", "", "pool snapshot JSON file used as metadata source")
	flags.String("pg-dsn", "", "Postgres DSN used as metadata source")
	flags.String("redis-url", "", "Redis URL for the shared metadata cache")
	flags.Duration("registry-ttl", 5*time.Minute, "metadata cache TTL")
	flags.Duration("registry-refresh", time.Minute, "metadata refresh interval")
	flags.Duration("disabled-refresh", time.Minute, "disabled pool list refresh interval")
	flags.Int("history-depth", 32, "block snapshots kept")
	flags.Duration("fallback-ttl", 30*time.Second, "block-pinned cache lifetime")
	flags.String("identifier-prefix", "balancerv2", "pool identifier prefix")
	flags.String("token-aliases", "", "token aliases (comma-separated name=address)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addPairFlags(flags *pflag.FlagSet) {
	flags.String("from", "", "input token address or alias")
	flags.String("to", "", "output token address or alias")
	flags.String("side", "SELL", "SELL or BUY")
	flags.Uint64("block", 0, "block number, 0 means latest")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
