package jetstream

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go"
	natsjs "github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketbay/tb-projector/internal/adapter"
	"github.com/ticketbay/tb-projector/internal/domain"
	"github.com/ticketbay/tb-projector/internal/messaging"
)

type fakeJetStream struct {
	streamCfg natsjs.StreamConfig
	streamErr error
	subjects  []string
	payloads  [][]byte
	pubErr    error
}

func (f *fakeJetStream) Publish(_ context.Context, subject string, data []byte, _ ...natsjs.PublishOpt) (*natsjs.PubAck, error) {
	if f.pubErr != nil {
		return nil, f.pubErr
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return &natsjs.PubAck{}, nil
}

func (f *fakeJetStream) EnsureStream(_ context.Context, cfg natsjs.StreamConfig) error {
	f.streamCfg = cfg
	return f.streamErr
}

type fakeNatsConn struct {
	closed bool
}

func (c *fakeNatsConn) Close()               { c.closed = true }
func (c *fakeNatsConn) LastError() error     { return nil }
func (c *fakeNatsConn) ConnectedUrl() string { return "nats://localhost:4222" }

type fakeNatsJetStream struct {
	conn *fakeNatsConn
	js   *fakeJetStream
	err  error
}

func (f *fakeNatsJetStream) Connect(string, ...nats.Option) (adapter.NatsConn, adapter.JetStream, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.conn, f.js, nil
}

func newTestPublisher(t *testing.T, js *fakeJetStream) (*fakeNatsConn, messaging.Publisher) {
	t.Helper()
	conn := &fakeNatsConn{}
	pub, err := NewPublisher(Config{StreamName: "MARKET_EVENTS"}, &fakeNatsJetStream{conn: conn, js: js}, adapter.NewJSON())
	require.NoError(t, err)
	return conn, pub
}

func TestNewPublisher_EnsuresStream(t *testing.T) {
	js := &fakeJetStream{}
	_, _ = newTestPublisher(t, js)

	assert.Equal(t, "MARKET_EVENTS", js.streamCfg.Name)
	assert.Equal(t, []string{"market.events.>"}, js.streamCfg.Subjects)
}

func TestNewPublisher_StreamFailureClosesConnection(t *testing.T) {
	conn := &fakeNatsConn{}
	js := &fakeJetStream{streamErr: assert.AnError}

	_, err := NewPublisher(Config{StreamName: "MARKET_EVENTS"}, &fakeNatsJetStream{conn: conn, js: js}, adapter.NewJSON())
	require.Error(t, err)
	assert.True(t, conn.closed)
}

func TestPublishEvent(t *testing.T) {
	js := &fakeJetStream{}
	_, pub := newTestPublisher(t, js)

	err := pub.PublishEvent(context.Background(), &domain.MarketEvent{
		ID:     "01J8ZQ4X5E7Y2K3M4N5P6Q7R8S",
		Type:   domain.EventTypeItemSold,
		ItemID: 3,
		TxHash: "0xabc",
	})
	require.NoError(t, err)

	require.Len(t, js.subjects, 1)
	assert.Equal(t, "market.events.item_sold", js.subjects[0])
	assert.Contains(t, string(js.payloads[0]), `"0xabc"`)
}

func TestPublishEvent_RefusesMalformed(t *testing.T) {
	js := &fakeJetStream{}
	_, pub := newTestPublisher(t, js)

	// Missing tx hash fails shape validation before hitting the broker
	err := pub.PublishEvent(context.Background(), &domain.MarketEvent{
		ID:   "01J8ZQ4X5E7Y2K3M4N5P6Q7R8S",
		Type: domain.EventTypeItemSold,
	})
	require.Error(t, err)
	assert.Empty(t, js.subjects)
}

func TestClose(t *testing.T) {
	js := &fakeJetStream{}
	conn, pub := newTestPublisher(t, js)

	pub.Close()
	assert.True(t, conn.closed)
}
