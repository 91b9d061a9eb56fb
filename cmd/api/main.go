package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ticketbay/tb-projector/internal/adapter"
	"github.com/ticketbay/tb-projector/internal/api/middleware"
	"github.com/ticketbay/tb-projector/internal/api/server"
	"github.com/ticketbay/tb-projector/internal/config"
	"github.com/ticketbay/tb-projector/internal/ledger"
	"github.com/ticketbay/tb-projector/internal/logger"
	"github.com/ticketbay/tb-projector/internal/metadata"
	"github.com/ticketbay/tb-projector/internal/pinning"
	"github.com/ticketbay/tb-projector/internal/projector"
	"github.com/ticketbay/tb-projector/internal/uri"

	"github.com/gowebpki/jcs"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
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
			"service": "api-server",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting TicketBay projector API")

	// Initialize adapters
	clock := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	httpClient := adapter.NewHTTPClient(cfg.Metadata.HTTPTimeout)

	// Connect to the ledger
	ethClient, err := adapter.NewEthClientDialer().Dial(ctx, cfg.Ledger.RPCURL)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to ledger RPC", zap.Error(err), zap.String("url", cfg.Ledger.RPCURL))
	}
	defer ethClient.Close()

	// Optional signer; without it the API is read-only
	var signer ledger.Signer
	if cfg.Ledger.SignerKey != "" {
		signer, err = ledger.NewKeySigner(cfg.Ledger.SignerKey)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to load signer key", zap.Error(err))
		}
	} else {
		logger.WarnCtx(ctx, "No signer key configured, mutations are disabled")
	}

	ledgerClient, err := ledger.NewClient(ethClient, signer, cfg.Ledger)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create ledger client", zap.Error(err))
	}
	if err := ledgerClient.Ready(ctx); err != nil {
		logger.FatalCtx(ctx, "Ledger not ready", zap.Error(err),
			zap.String("marketplace", cfg.Ledger.MarketplaceAddress))
	}
	logger.InfoCtx(ctx, "Connected to ledger",
		zap.String("chain", string(cfg.Ledger.ChainID)),
		zap.String("marketplace", cfg.Ledger.MarketplaceAddress))

	// Metadata resolution pipeline
	uriResolver := uri.NewResolver(httpClient, &uri.Config{IPFSGateways: cfg.URI.IPFSGateways})
	metadataResolver := metadata.NewResolver(uriResolver, httpClient, jsonAdapter, cfg.Metadata.MaxDocumentBytes)

	// Pinning uploader for the listing pipeline
	uploader := pinning.NewPinataUploader(httpClient, jsonAdapter, jcs.Transform, pinning.Config{
		APIURL: cfg.Pinning.APIURL,
		JWT:    cfg.Pinning.JWT,
	})

	// Projector and mutator
	proj := projector.New(ledgerClient, metadataResolver, clock, projector.Config{
		PoolSize:  cfg.Worker.PoolSize,
		QueueSize: cfg.Worker.QueueSize,
	})
	defer proj.Close()
	mut := projector.NewMutator(ledgerClient, uploader)

	// Create server config
	serverConfig := server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		Chain:        cfg.Ledger.ChainID,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
	}

	// Create and start server
	srv := server.New(serverConfig, proj, mut)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	logger.InfoCtx(shutdownCtx, "Shutting down server...")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.FatalCtx(shutdownCtx, "Server forced to shutdown", zap.Error(err))
	}

	// Use non-context logger for final message since original ctx is canceled
	logger.Info("API server stopped")
}
