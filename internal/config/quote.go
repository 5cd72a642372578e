package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// QuoteConfig holds configuration for one-shot quote, pools and top
// commands.
type QuoteConfig struct {
	Config
	From    string
	To      string
	Amounts []string
	Side    string
	Block   uint64
	Pools   []string
	Token   string
	Limit   int
	Out     string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return QuoteConfig{}, err
	}
	v.SetDefault("side", "SELL")
	v.SetDefault("limit", 10)

	cfg := QuoteConfig{
		Config:  common(v),
		Amounts: getStringSlice(v, "amounts"),
		Side:    v.GetString("side"),
		Block:   v.GetUint64("block"),
		Pools:   getStringSlice(v, "pools"),
		Limit:   v.GetInt("limit"),
		Out:     v.GetString("out"),
	}
	cfg.From = cfg.Config.ResolveToken(v.GetString("from"))
	cfg.To = cfg.Config.ResolveToken(v.GetString("to"))
	cfg.Token = cfg.Config.ResolveToken(v.GetString("token"))
	if cfg.Limit < 0 {
		return QuoteConfig{}, fmt.Errorf("limit must not be negative")
	}
	return cfg, nil
}
