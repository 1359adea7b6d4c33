package main

import (
	"context"
	"path/filepath"
	"reportrelay/internal/chain"
	"reportrelay/internal/chain/chaintest"
	"reportrelay/internal/config"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func testClient(t *testing.T) *chain.Client {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	contract := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	client, err := chain.New(context.Background(), chaintest.NewLedger(31337, contract), chain.Options{
		Contract: contract,
		Key:      key,
		ChainID:  31337,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Port:            "8080",
		JournalDriver:   config.JournalSQLite,
		DatabaseURL:     filepath.Join(t.TempDir(), "relay.db"),
		RecordCacheSize: 16,
		RecordCacheTTL:  time.Minute,
	}
}

// Startup failures after the journal is running must still stop its worker.
func TestServeReleasesJournalOnStartupFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad cache size", func(c *config.Config) { c.RecordCacheSize = 0 }},
		{"listener fails", func(c *config.Config) { c.Port = "-1" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient(t)
			cfg := testConfig(t)
			tt.mutate(cfg)

			defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

			err := serve(context.Background(), cfg, client, zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	client := testClient(t)
	cfg := testConfig(t)
	cfg.Port = "0"

	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, client, zap.NewNop()) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
