package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"yieldScope/internal/config"
)

func TestBuildJsonl(t *testing.T) {
	cfg := config.Config{
		ExchangeEndpoint: "http://127.0.0.1:1/exchange",
		BlocksEndpoint:   "http://127.0.0.1:1/blocks",
		DefiName:         "UniswapV2",
		PairCount:        5,
		Lookback:         24 * time.Hour,
		RequestTimeout:   time.Second,
		Store:            config.StoreJsonl,
		Out:              filepath.Join(t.TempDir(), "history.jsonl"),
	}

	a, err := build(context.Background(), cfg, zap.NewNop(), newMetricsRegistry())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()

	if a.syncer == nil {
		t.Fatalf("expected syncer")
	}
	if a.pg != nil || a.chain != nil {
		t.Fatalf("unexpected postgres or chain client")
	}
}

func TestNewLoggerLevel(t *testing.T) {
	if _, err := newLogger("debug"); err != nil {
		t.Fatalf("debug level: %v", err)
	}
	if _, err := newLogger("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestRedactDSN(t *testing.T) {
	if got := redactDSN(""); got != "" {
		t.Fatalf("empty dsn: %q", got)
	}
	if got := redactDSN("postgres://u:p@h/db"); got != "***" {
		t.Fatalf("redacted: %q", got)
	}
}
