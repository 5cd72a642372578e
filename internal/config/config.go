package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultVault     = "0xBA12222222228d8Ba445958a75a0704d566BF2C8"
	DefaultMulticall = "0x5BA1e12693Dc8F9c48aAD8770482f4739bEeD696"
)

// ChainConfig locates the node and the contracts read through it.
type ChainConfig struct {
	RPCURL    string
	Vault     string
	Multicall string
}

// FetcherConfig tunes batched on-chain reads.
type FetcherConfig struct {
	ChunkSize   int
	Concurrency int
	RPS         float64
}

// RegistryConfig selects the metadata source and its refresh cadence.
type RegistryConfig struct {
	MetadataFile    string
	PGDSN           string
	RedisURL        string
	TTL             time.Duration
	Refresh         time.Duration
	DisabledRefresh time.Duration
}

// StateConfig tunes the pool state store.
type StateConfig struct {
	HistoryDepth int
	FallbackTTL  time.Duration
}

// IndexerConfig tunes vault log polling.
type IndexerConfig struct {
	EventBatchSize uint64
	PollInterval   time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
}

// Config holds the settings shared by every pricing command.
type Config struct {
	Chain            ChainConfig
	Fetcher          FetcherConfig
	Registry         RegistryConfig
	State            StateConfig
	IdentifierPrefix string
	TokenAliases     map[string]string
	LogLevel         string
}

// ServeConfig holds configuration for the long-running service.
type ServeConfig struct {
	Config
	Indexer     IndexerConfig
	MetricsAddr string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}
	return common(v), nil
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ServeConfig{}, err
	}
	cfg := ServeConfig{
		Config: common(v),
		Indexer: IndexerConfig{
			EventBatchSize: v.GetUint64("event-batch-size"),
			PollInterval:   v.GetDuration("poll-interval"),
			MaxRetries:     v.GetInt("max-retries"),
			RetryBackoff:   v.GetDuration("retry-backoff"),
		},
		MetricsAddr: v.GetString("metrics-addr"),
	}
	if cfg.Indexer.EventBatchSize == 0 {
		return ServeConfig{}, fmt.Errorf("event-batch-size must be greater than zero")
	}
	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("vault", DefaultVault)
	v.SetDefault("multicall", DefaultMulticall)
	v.SetDefault("chunk-size", 500)
	v.SetDefault("batch-concurrency", 4)
	v.SetDefault("batch-rps", 0.0)
	v.SetDefault("registry-ttl", 5*time.Minute)
	v.SetDefault("registry-refresh", time.Minute)
	v.SetDefault("disabled-refresh", time.Minute)
	v.SetDefault("history-depth", 32)
	v.SetDefault("fallback-ttl", 30*time.Second)
	v.SetDefault("event-batch-size", uint64(2000))
	v.SetDefault("poll-interval", 12*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("metrics-addr", ":9090")
	v.SetDefault("identifier-prefix", "balancerv2")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func common(v *viper.Viper) Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:    v.GetString("rpc"),
			Vault:     v.GetString("vault"),
			Multicall: v.GetString("multicall"),
		},
		Fetcher: FetcherConfig{
			ChunkSize:   v.GetInt("chunk-size"),
			Concurrency: v.GetInt("batch-concurrency"),
			RPS:         v.GetFloat64("batch-rps"),
		},
		Registry: RegistryConfig{
			MetadataFile:    v.GetString("metadata-file"),
			PGDSN:           v.GetString("pg-dsn"),
			RedisURL:        v.GetString("redis-url"),
			TTL:             v.GetDuration("registry-ttl"),
			Refresh:         v.GetDuration("registry-refresh"),
			DisabledRefresh: v.GetDuration("disabled-refresh"),
		},
		State: StateConfig{
			HistoryDepth: v.GetInt("history-depth"),
			FallbackTTL:  v.GetDuration("fallback-ttl"),
		},
		IdentifierPrefix: v.GetString("identifier-prefix"),
		TokenAliases:     lowerKeys(getStringMap(v, "token-aliases")),
		LogLevel:         v.GetString("log-level"),
	}
}

// ResolveToken resolves a configured alias, or returns the input unchanged.
func (c Config) ResolveToken(input string) string {
	input = strings.TrimSpace(input)
	if addr, ok := c.TokenAliases[strings.ToLower(input)]; ok {
		return addr
	}
	return input
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}
