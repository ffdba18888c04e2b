package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StoreJsonl    = "jsonl"
	StorePostgres = "postgres"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	ExchangeEndpoint string
	BlocksEndpoint   string
	RPCURL           string
	DefiName         string
	PairCount        int
	MaxConcurrency   int
	Lookback         time.Duration
	RequestTimeout   time.Duration
	Interval         time.Duration
	Store            string
	Out              string
	PGDSN            string
	StateFile        string
	MetricsAddr      string
	LogLevel         string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SYNCER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("exchange-endpoint", "https://api.thegraph.com/subgraphs/name/uniswap/uniswap-v2")
	v.SetDefault("blocks-endpoint", "https://api.thegraph.com/subgraphs/name/blocklytics/ethereum-blocks")
	v.SetDefault("defi-name", "UniswapV2")
	v.SetDefault("pair-count", 110)
	v.SetDefault("max-concurrency", 0)
	v.SetDefault("lookback", 24*time.Hour)
	v.SetDefault("request-timeout", 30*time.Second)
	v.SetDefault("interval", time.Hour)
	v.SetDefault("store", StoreJsonl)
	v.SetDefault("out", "./data/history.jsonl")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		ExchangeEndpoint: v.GetString("exchange-endpoint"),
		BlocksEndpoint:   v.GetString("blocks-endpoint"),
		RPCURL:           v.GetString("rpc"),
		DefiName:         v.GetString("defi-name"),
		PairCount:        v.GetInt("pair-count"),
		MaxConcurrency:   v.GetInt("max-concurrency"),
		Lookback:         v.GetDuration("lookback"),
		RequestTimeout:   v.GetDuration("request-timeout"),
		Interval:         v.GetDuration("interval"),
		Store:            strings.ToLower(strings.TrimSpace(v.GetString("store"))),
		Out:              v.GetString("out"),
		PGDSN:            v.GetString("pg-dsn"),
		StateFile:        v.GetString("state-file"),
		MetricsAddr:      v.GetString("metrics-addr"),
		LogLevel:         v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks that the loaded values can drive a sync cycle.
func (c Config) Validate() error {
	if c.ExchangeEndpoint == "" {
		return fmt.Errorf("exchange endpoint is required")
	}
	if c.BlocksEndpoint == "" && c.RPCURL == "" {
		return fmt.Errorf("blocks endpoint or rpc url is required")
	}
	if c.DefiName == "" {
		return fmt.Errorf("defi name is required")
	}
	if c.PairCount <= 0 {
		return fmt.Errorf("pair count must be greater than zero")
	}
	if c.Lookback <= 0 {
		return fmt.Errorf("lookback must be positive")
	}
	switch c.Store {
	case StoreJsonl:
		if c.Out == "" {
			return fmt.Errorf("output path is required for jsonl store")
		}
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg dsn is required for postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	return nil
}
