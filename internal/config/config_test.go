package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadServeMergesSources(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "pricer.yaml")
	yaml := []byte(`
rpc: http://file:8545
chunk-size: 250
poll-interval: 3s
token-aliases:
  USDC: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
`)
	if err := os.WriteFile(file, yaml, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PRICER_HISTORY_DEPTH", "8")
	t.Setenv("PRICER_CHUNK_SIZE", "300")

	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.String("metrics-addr", "", "")
	if err := flags.Parse([]string{"--rpc", "http://flag:8545"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadServe(file, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Chain.RPCURL != "http://flag:8545" {
		t.Fatalf("flag should win, got %s", cfg.Chain.RPCURL)
	}
	if cfg.Fetcher.ChunkSize != 300 {
		t.Fatalf("env should override file, got %d", cfg.Fetcher.ChunkSize)
	}
	if cfg.State.HistoryDepth != 8 {
		t.Fatalf("history depth = %d", cfg.State.HistoryDepth)
	}
	if cfg.Indexer.PollInterval != 3*time.Second {
		t.Fatalf("poll interval = %s", cfg.Indexer.PollInterval)
	}
	if cfg.MetricsAddr != ":9090" || cfg.IdentifierPrefix != "balancerv2" || cfg.Chain.Vault != DefaultVault {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if got := cfg.ResolveToken("usdc"); got != "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48" {
		t.Fatalf("alias = %s", got)
	}
	if got := cfg.ResolveToken("0xdead"); got != "0xdead" {
		t.Fatalf("unknown token should pass through, got %s", got)
	}
}

func TestLoadQuoteLists(t *testing.T) {
	flags := pflag.NewFlagSet("quote", pflag.ContinueOnError)
	flags.String("amounts", "", "")
	flags.String("pools", "", "")
	flags.String("token-aliases", "", "")
	flags.String("from", "", "")
	if err := flags.Parse([]string{"--amounts", "0, 1000,2000", "--pools", "balancerv2_0xa,,balancerv2_0xb", "--token-aliases", "WETH=0xc02a", "--from", "weth"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadQuote(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if err == nil {
		t.Fatalf("expected error for missing explicit config file, got %+v", cfg)
	}

	cfg, err = LoadQuote("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Amounts) != 3 || cfg.Amounts[1] != "1000" {
		t.Fatalf("amounts = %v", cfg.Amounts)
	}
	if len(cfg.Pools) != 2 {
		t.Fatalf("pools = %v", cfg.Pools)
	}
	if cfg.From != "0xc02a" || cfg.Side != "SELL" || cfg.Limit != 10 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadImportRequiresFile(t *testing.T) {
	if _, err := LoadImport("", nil); err == nil {
		t.Fatalf("expected error without file")
	}
}
