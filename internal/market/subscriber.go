package market

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/ticketbay/tb-projector/internal/adapter"
	"github.com/ticketbay/tb-projector/internal/domain"
	"github.com/ticketbay/tb-projector/internal/ledger"
	"github.com/ticketbay/tb-projector/internal/logger"
	"github.com/ticketbay/tb-projector/internal/messaging"
)

// Config holds the configuration for the marketplace event subscription
type Config struct {
	WebSocketURL       string
	ChainID            domain.Chain
	MarketplaceAddress string
}

type marketSubscriber struct {
	client     adapter.EthClient
	clock      adapter.Clock
	marketAddr common.Address
	chainID    domain.Chain
	entropy    *rand.Rand
}

// NewSubscriber creates a subscriber streaming the marketplace contract's
// events over a WebSocket connection
func NewSubscriber(cfg Config, client adapter.EthClient, clock adapter.Clock) messaging.Subscriber {
	return &marketSubscriber{
		client:     client,
		clock:      clock,
		marketAddr: common.HexToAddress(cfg.MarketplaceAddress),
		chainID:    cfg.ChainID,
		entropy:    rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
}

// SubscribeEvents subscribes to the marketplace contract's event log and
// invokes handler for each normalized event
func (s *marketSubscriber) SubscribeEvents(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) error {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{s.marketAddr},
		Topics:    [][]common.Hash{ledger.MarketTopics},
	}
	if fromBlock > 0 {
		query.FromBlock = new(big.Int).SetUint64(fromBlock)
	}

	logs := make(chan types.Log)
	sub, err := s.client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to filter logs: %w", err)
	}
	defer func() {
		logger.InfoCtx(ctx, "Unsubscribing from marketplace event logs")
		sub.Unsubscribe()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("subscription error: %w", err)
		case vLog := <-logs:
			if vLog.Removed {
				// Reorged-out log; consumers rebuild from live state,
				// so skipping is safe
				continue
			}

			event, err := ledger.ParseMarketLog(vLog)
			if err != nil {
				logger.ErrorCtx(ctx, err, zap.String("message", "Error parsing log"),
					zap.String("tx_hash", vLog.TxHash.Hex()))
				continue
			}

			now := s.clock.Now()
			event.ID = ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
			event.Timestamp = now

			if err := handler(event); err != nil {
				logger.ErrorCtx(ctx, err, zap.String("message", "Error handling event"),
					zap.String("event_id", event.ID))
			}
		}
	}
}

// GetLatestBlock returns the latest block number
func (s *marketSubscriber) GetLatestBlock(ctx context.Context) (uint64, error) {
	header, err := s.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return header.Number.Uint64(), nil
}

// Close closes the connection
func (s *marketSubscriber) Close() {
	if s.client == nil {
		return
	}

	s.client.Close()
	logger.Info("Marketplace WebSocket connection closed")
}
