package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"yieldScope/internal/chain"
	"yieldScope/internal/config"
	"yieldScope/internal/metrics"
	"yieldScope/internal/storage"
	"yieldScope/internal/storage/postgres"
	"yieldScope/internal/subgraph"
	"yieldScope/internal/syncer"
)

type app struct {
	syncer  *syncer.Syncer
	pg      *postgres.Store
	chain   *chain.Client
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build wires the syncer from config. reg may be nil to skip metrics.
func build(ctx context.Context, cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// Both subgraphs share one connection pool.
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	clientOpts := []subgraph.ClientOption{
		subgraph.WithHTTPClient(httpClient),
		subgraph.WithTimeout(cfg.RequestTimeout),
		subgraph.WithLogger(logger),
	}
	exchange, err := subgraph.NewExchangeClient(cfg.ExchangeEndpoint, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("exchange client: %w", err)
	}

	var blocks syncer.BlockResolver
	if cfg.BlocksEndpoint != "" {
		blocks, err = subgraph.NewBlocksClient(cfg.BlocksEndpoint, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("blocks client: %w", err)
		}
	} else {
		a.chain, err = chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("connect rpc: %w", err)
		}
		a.closers = append(a.closers, a.chain.Close)
		blocks = chain.NewResolver(a.chain, cfg.RequestTimeout, logger)
	}

	var history storage.History
	switch cfg.Store {
	case config.StorePostgres:
		a.pg, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, a.pg.Close)
		history = a.pg
	default:
		history = storage.NewJsonlHistory(cfg.Out, logger)
	}

	opts := []syncer.Option{}
	if reg != nil {
		opts = append(opts, syncer.WithMetrics(metrics.NewMetrics(reg, "")))
	}

	a.syncer, err = syncer.New(syncer.Config{
		DefiName:       cfg.DefiName,
		PairCount:      cfg.PairCount,
		Lookback:       cfg.Lookback,
		MaxConcurrency: cfg.MaxConcurrency,
	}, blocks, exchange, history, logger, opts...)
	if err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	logger.Info("metrics listening", zap.String("addr", addr))
	return srv
}

func shutdownMetrics(srv *http.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics shutdown", zap.Error(err))
	}
}
