package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"reportrelay/internal/chain"
	"reportrelay/internal/config"
	"reportrelay/internal/services"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

const programName = "relayctl"

func main() {
	// .env is optional for the CLI
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rootCmd, teardown := newRootCommand(dialReports)
	err := rootCmd.ExecuteContext(ctx)
	teardown()
	stop()
	if err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}

// dialReports connects to the node described by the environment. The CLI
// reads and writes the chain directly and keeps no journal.
func dialReports(ctx context.Context, logger *zap.Logger) (*services.ReportService, func(), error) {
	if _, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf)); err != nil {
		logger.Debug("failed to set GOMAXPROCS", zap.Error(err))
	}

	cfg, err := config.LoadClient()
	if err != nil {
		return nil, nil, err
	}

	client, err := chain.Dial(ctx, cfg.RPCURL, chain.Options{
		Contract:      cfg.Contract(),
		Key:           cfg.SignerKey(),
		ChainID:       cfg.ChainID,
		CallTimeout:   cfg.CallTimeout,
		SubmitTimeout: cfg.SubmitTimeout,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}

	return services.NewReportService(client, nil, nil, nil, logger), client.Close, nil
}
