package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"reportrelay/internal/chain"
	"reportrelay/internal/config"
	"reportrelay/internal/db"
	"reportrelay/internal/metrics"
	"reportrelay/internal/middleware"
	"reportrelay/internal/router"
	"reportrelay/internal/services"
	"reportrelay/internal/utils"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if _, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof)); err != nil {
		logger.Warn("failed to set GOMAXPROCS", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("relay stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// 连接区块链节点
	client, err := chain.Dial(ctx, cfg.RPCURL, chain.Options{
		Contract:      cfg.Contract(),
		Key:           cfg.SignerKey(),
		ChainID:       cfg.ChainID,
		CallTimeout:   cfg.CallTimeout,
		SubmitTimeout: cfg.SubmitTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	return serve(ctx, cfg, client, logger)
}

// serve runs the HTTP relay over client until ctx is done or the listener
// fails. Everything it opens is released before it returns.
func serve(ctx context.Context, cfg *config.Config, client services.Ledger, logger *zap.Logger) error {
	// Initialize Database
	gdb, err := db.Open(cfg.JournalDriver, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// 异步提交日志
	journal := services.NewJournal(gdb, m, logger.Named("journal"))
	// Runs after srv.Shutdown so in-flight submissions are journaled.
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := journal.Close(ctx); err != nil {
			logger.Error("journal flush incomplete", zap.Error(err))
		}
	}()

	records, err := utils.NewCache[uint64, *chain.ReportRecord](cfg.RecordCacheSize, cfg.RecordCacheTTL)
	if err != nil {
		return err
	}

	reports := services.NewReportService(client, journal, records, m, logger.Named("reports"))

	// Initialize Gin
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger.Named("http")))
	router.RegisterRoutes(r, router.Deps{
		Reports:  reports,
		APIToken: cfg.APIToken,
		Gatherer: registry,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("report relay starting",
			zap.String("addr", srv.Addr),
			zap.String("contract", client.ContractAddress().Hex()),
			zap.String("signer", client.Signer().Hex()),
			zap.String("journal", cfg.JournalDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
	return nil
}
