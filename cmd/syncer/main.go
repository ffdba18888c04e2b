package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"yieldScope/internal/config"
	"yieldScope/internal/scheduler"
)

func main() {
	root := &cobra.Command{
		Use:          "syncer",
		Short:        "DEX pair yield history syncer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run sync cycles on an interval",
		RunE:  runLoop,
	}
	addSyncFlags(runCmd.Flags())
	runCmd.Flags().Duration("interval", time.Hour, "time between sync cycles")
	runCmd.Flags().String("state-file", "", "optional local state file for spacing cycles across restarts")
	runCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9102)")
	root.AddCommand(runCmd)

	onceCmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single sync cycle",
		RunE:  runOnce,
	}
	addSyncFlags(onceCmd.Flags())
	root.AddCommand(onceCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres history schema",
		RunE:  runMigrate,
	}
	migrateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	migrateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(migrateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSyncFlags(flags *pflag.FlagSet) {
	flags.String("exchange-endpoint", "https://api.thegraph.com/subgraphs/name/uniswap/uniswap-v2", "exchange subgraph URL")
	flags.String("blocks-endpoint", "https://api.thegraph.com/subgraphs/name/blocklytics/ethereum-blocks", "block index subgraph URL (empty to resolve via --rpc)")
	flags.String("rpc", "", "Ethereum RPC URL, used when blocks-endpoint is empty")
	flags.String("defi-name", "UniswapV2", "protocol name stored with each record")
	flags.Int("pair-count", 110, "number of top pairs by reserve")
	flags.Int("max-concurrency", 0, "maximum concurrent pair tasks, 0 means unbounded")
	flags.Duration("lookback", 24*time.Hour, "age of the reference block")
	flags.Duration("request-timeout", 30*time.Second, "timeout per upstream request")
	flags.String("store", config.StoreJsonl, "history store (jsonl, postgres)")
	flags.String("out", "./data/history.jsonl", "output JSONL path")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	res := app.syncer.StartCycle(ctx)
	return res.Err
}

func runLoop(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := newMetricsRegistry()
	app, err := build(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer shutdownMetrics(srv, logger)
	}

	stateName := "syncer:" + cfg.DefiName
	var state scheduler.StateStore
	if cfg.StateFile != "" {
		state = &scheduler.FileStateStore{Path: cfg.StateFile, Name: stateName}
	} else if app.pg != nil {
		state = &scheduler.DBStateStore{Store: app.pg, Name: stateName}
	}

	logger.Info("syncer start",
		zap.String("exchange_endpoint", cfg.ExchangeEndpoint),
		zap.String("blocks_endpoint", cfg.BlocksEndpoint),
		zap.String("defi_name", cfg.DefiName),
		zap.Int("pair_count", cfg.PairCount),
		zap.Duration("interval", cfg.Interval),
		zap.String("store", cfg.Store),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	loop := &scheduler.Loop{Interval: cfg.Interval, State: state, Logger: logger}
	return loop.Run(ctx, func(ctx context.Context) scheduler.Outcome {
		res := app.syncer.StartCycle(ctx)
		return scheduler.Outcome{Generation: res.Generation, Err: res.Err}
	})
}

func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}

	if err := cfg.Validate(); err != nil {
		logger.Sync()
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
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
