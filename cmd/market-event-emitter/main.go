package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ticketbay/tb-projector/internal/adapter"
	"github.com/ticketbay/tb-projector/internal/config"
	"github.com/ticketbay/tb-projector/internal/logger"
	"github.com/ticketbay/tb-projector/internal/market"
	"github.com/ticketbay/tb-projector/internal/providers/jetstream"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadEmitterConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "market-event-emitter",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting market event emitter")

	clock := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()

	// Connect to the ledger over WebSocket for log subscriptions
	ethClient, err := adapter.NewEthClientDialer().Dial(ctx, cfg.Ledger.WebSocketURL)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to ledger WebSocket", zap.Error(err),
			zap.String("url", cfg.Ledger.WebSocketURL))
	}

	subscriber := market.NewSubscriber(market.Config{
		WebSocketURL:       cfg.Ledger.WebSocketURL,
		ChainID:            cfg.Ledger.ChainID,
		MarketplaceAddress: cfg.Ledger.MarketplaceAddress,
	}, ethClient, clock)

	// Connect to NATS JetStream
	publisher, err := jetstream.NewPublisher(jetstream.Config{
		URL:            cfg.NATS.URL,
		StreamName:     cfg.NATS.StreamName,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ReconnectWait:  cfg.NATS.ReconnectWait,
		ConnectionName: cfg.NATS.ConnectionName,
	}, adapter.NewNatsJetStream(), jsonAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to NATS", zap.Error(err), zap.String("url", cfg.NATS.URL))
	}
	defer publisher.Close()

	emitter := market.NewEmitter(subscriber, publisher, market.EmitterConfig{
		ChainID:    cfg.Ledger.ChainID,
		StartBlock: cfg.Ledger.StartBlock,
	})
	defer emitter.Close()

	errCh := make(chan error, 1)
	go func() {
		if err := emitter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "emitter"))
		cancel()
	}

	logger.Info("Market event emitter stopped")
}
