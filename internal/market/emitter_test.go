package market

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketbay/tb-projector/internal/domain"
	"github.com/ticketbay/tb-projector/internal/messaging"
)

// fakeSubscriber replays a fixed event list into the handler
type fakeSubscriber struct {
	mu        sync.Mutex
	latest    uint64
	latestErr error
	events    []*domain.MarketEvent
	fromBlock uint64
	closed    bool
}

func (s *fakeSubscriber) SubscribeEvents(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) error {
	s.mu.Lock()
	s.fromBlock = fromBlock
	s.mu.Unlock()

	for _, event := range s.events {
		if err := handler(event); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *fakeSubscriber) GetLatestBlock(ctx context.Context) (uint64, error) {
	return s.latest, s.latestErr
}

func (s *fakeSubscriber) Close() { s.closed = true }

func (s *fakeSubscriber) startedFrom() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fromBlock
}

type fakePublisher struct {
	mu        sync.Mutex
	published []*domain.MarketEvent
	err       error
}

func (p *fakePublisher) PublishEvent(_ context.Context, event *domain.MarketEvent) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, event)
	return nil
}

func (p *fakePublisher) Close() {}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func TestEmitter_PublishesSubscribedEvents(t *testing.T) {
	sub := &fakeSubscriber{
		latest: 42,
		events: []*domain.MarketEvent{
			{ID: "01A", Type: domain.EventTypeItemListed, ItemID: 1, TxHash: "0x1"},
			{ID: "01B", Type: domain.EventTypeItemSold, ItemID: 1, TxHash: "0x2"},
		},
	}
	pub := &fakePublisher{}
	e := NewEmitter(sub, pub, EmitterConfig{ChainID: domain.ChainBSCTestnet})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool {
		return pub.count() == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// No start block configured, the subscription begins at the chain head
	assert.Equal(t, uint64(42), sub.startedFrom())
}

func TestEmitter_ConfiguredStartBlock(t *testing.T) {
	sub := &fakeSubscriber{latest: 42}
	e := NewEmitter(sub, &fakePublisher{}, EmitterConfig{
		ChainID:    domain.ChainBSCTestnet,
		StartBlock: 7,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool {
		return sub.startedFrom() == 7
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestEmitter_LatestBlockFailure(t *testing.T) {
	sub := &fakeSubscriber{latestErr: fmt.Errorf("node down")}
	e := NewEmitter(sub, &fakePublisher{}, EmitterConfig{ChainID: domain.ChainBSCTestnet})

	err := e.Run(context.Background())
	assert.ErrorContains(t, err, "latest block")
}

func TestEmitter_PublishFailureStopsRun(t *testing.T) {
	sub := &fakeSubscriber{
		latest: 1,
		events: []*domain.MarketEvent{
			{ID: "01A", Type: domain.EventTypeItemListed, ItemID: 1, TxHash: "0x1"},
		},
	}
	pub := &fakePublisher{err: fmt.Errorf("stream gone")}
	e := NewEmitter(sub, pub, EmitterConfig{ChainID: domain.ChainBSCTestnet})

	err := e.Run(context.Background())
	assert.ErrorContains(t, err, "failed to publish")
}

func TestEmitter_Close(t *testing.T) {
	sub := &fakeSubscriber{}
	e := NewEmitter(sub, &fakePublisher{}, EmitterConfig{})

	e.Close()
	assert.True(t, sub.closed)
}
