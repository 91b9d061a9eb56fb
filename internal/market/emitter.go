package market

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ticketbay/tb-projector/internal/domain"
	"github.com/ticketbay/tb-projector/internal/logger"
	"github.com/ticketbay/tb-projector/internal/messaging"
)

// EmitterConfig holds the configuration for the event emitter
type EmitterConfig struct {
	ChainID    domain.Chain
	StartBlock uint64
}

// Emitter defines the interface for the market event emitter
type Emitter interface {
	// Run starts the event emitter and blocks until ctx is cancelled or
	// the subscription fails
	Run(ctx context.Context) error
	// Close closes the emitter and cleans up resources
	Close()
}

type emitter struct {
	subscriber messaging.Subscriber
	publisher  messaging.Publisher
	config     EmitterConfig
}

// NewEmitter creates a market event emitter bridging the contract event
// stream to the message broker
func NewEmitter(sub messaging.Subscriber, pub messaging.Publisher, cfg EmitterConfig) Emitter {
	return &emitter{
		subscriber: sub,
		publisher:  pub,
		config:     cfg,
	}
}

// Run starts the event emitter
func (e *emitter) Run(ctx context.Context) error {
	startBlock := e.config.StartBlock
	if startBlock == 0 {
		latest, err := e.subscriber.GetLatestBlock(ctx)
		if err != nil {
			return fmt.Errorf("failed to get latest block number: %w", err)
		}
		startBlock = latest
		logger.Info("Starting from latest block",
			zap.String("chain", string(e.config.ChainID)),
			zap.Uint64("block", startBlock))
	} else {
		logger.Info("Starting from configured block",
			zap.String("chain", string(e.config.ChainID)),
			zap.Uint64("block", startBlock))
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("Starting market event subscription",
			zap.String("chain", string(e.config.ChainID)))

		handler := func(event *domain.MarketEvent) error {
			if err := e.publisher.PublishEvent(ctx, event); err != nil {
				return fmt.Errorf("failed to publish event %s: %w", event.TxHash, err)
			}
			return nil
		}

		if err := e.subscriber.SubscribeEvents(ctx, startBlock, handler); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the emitter and cleans up resources
func (e *emitter) Close() {
	e.subscriber.Close()
}
