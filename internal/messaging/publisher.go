package messaging

import (
	"context"

	"github.com/ticketbay/tb-projector/internal/domain"
)

// Publisher defines the interface for publishing marketplace events to the
// message broker
type Publisher interface {
	// PublishEvent publishes a normalized marketplace event
	PublishEvent(ctx context.Context, event *domain.MarketEvent) error
	// Close closes the connection
	Close()
}
