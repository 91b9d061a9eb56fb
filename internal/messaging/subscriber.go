package messaging

import (
	"context"

	"github.com/ticketbay/tb-projector/internal/domain"
)

// EventHandler is called for each normalized marketplace event
type EventHandler func(event *domain.MarketEvent) error

// Subscriber defines the interface for subscribing to marketplace contract
// events
type Subscriber interface {
	// SubscribeEvents streams marketplace events starting at fromBlock
	// (0 for latest) and invokes handler for each one
	SubscribeEvents(ctx context.Context, fromBlock uint64, handler EventHandler) error

	// GetLatestBlock returns the latest block number
	GetLatestBlock(ctx context.Context) (uint64, error)

	// Close closes the connection and cleans up resources
	Close()
}
