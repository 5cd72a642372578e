package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// ImportConfig holds configuration for seeding Postgres from a pool file.
type ImportConfig struct {
	Config
	File          string
	ResolveTokens bool
}

// LoadImport merges config file, environment variables, and flags into ImportConfig.
func LoadImport(cfgFile string, flags *pflag.FlagSet) (ImportConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ImportConfig{}, err
	}
	v.SetDefault("resolve-tokens", false)

	cfg := ImportConfig{
		Config:        common(v),
		File:          v.GetString("file"),
		ResolveTokens: v.GetBool("resolve-tokens"),
	}
	if cfg.File == "" {
		return ImportConfig{}, fmt.Errorf("file is required")
	}
	if cfg.Registry.PGDSN == "" {
		return ImportConfig{}, fmt.Errorf("pg-dsn is required")
	}
	if cfg.ResolveTokens && cfg.Chain.RPCURL == "" {
		return ImportConfig{}, fmt.Errorf("rpc is required to resolve tokens")
	}
	return cfg, nil
}
