package projector

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketbay/tb-projector/internal/adapter"
	"github.com/ticketbay/tb-projector/internal/domain"
)

const (
	alice = "0xAAAAaaaaAaAAAAaaaaAAaAaaAAaaaaAAaAaaaaA1"
	bob   = "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBb2"
	carol = "0xCcccCCccCCCCcCCCCCCCcCcccCcCCCCcCccccCc3"
)

func newTestProjector(f *fakeLedger, docs map[string]domain.ItemMetadata) *Projector {
	return New(f, &fakeResolver{docs: docs}, adapter.NewClock(), Config{PoolSize: 4, QueueSize: 64})
}

func seedItem(f *fakeLedger, id, tokenID uint64, owner, issuer string, price int64, sold bool) {
	f.items[id] = domain.Item{
		ItemID:        id,
		AssetContract: "0x3333333333333333333333333333333333333333",
		TokenID:       tokenID,
		Price:         big.NewInt(price),
		CurrentOwner:  owner,
		Sold:          sold,
		Issuer:        issuer,
	}
	f.tokenURIs[tokenID] = "ipfs://meta-" + string(rune('0'+id))
}

func metaFor(f *fakeLedger, docs map[string]domain.ItemMetadata, tokenID uint64, name string) {
	docs[f.tokenURIs[tokenID]] = domain.ItemMetadata{
		Name:     name,
		Image:    "ipfs://img",
		ItemType: domain.ItemTypeTicket,
	}
}

func TestListActiveItems(t *testing.T) {
	f := newFakeLedger()
	docs := map[string]domain.ItemMetadata{}

	seedItem(f, 1, 11, alice, carol, 100, false)
	seedItem(f, 2, 12, bob, carol, 200, true) // sold, excluded
	seedItem(f, 3, 13, bob, carol, 300, false)
	seedItem(f, 4, 14, bob, carol, 400, false)
	metaFor(f, docs, 11, "Front Row")
	metaFor(f, docs, 14, "Balcony")
	// item 3 has no metadata document and is excluded from the result

	p := newTestProjector(f, docs)
	defer p.Close()

	// Caller address differs in case from the stored owner
	view, err := p.ListActiveItems(context.Background(), "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1")
	require.NoError(t, err)
	require.NotEmpty(t, view.RefreshID)
	require.Len(t, view.Items, 2)

	// Id order is preserved across the drop
	assert.Equal(t, uint64(1), view.Items[0].ItemID)
	assert.Equal(t, uint64(4), view.Items[1].ItemID)

	assert.Equal(t, "Front Row", view.Items[0].Metadata.Name)
	assert.True(t, view.Items[0].IsOwn)
	assert.Equal(t, big.NewInt(100), view.Items[0].TotalPrice)

	assert.Equal(t, "Balcony", view.Items[1].Metadata.Name)
	assert.False(t, view.Items[1].IsOwn)
}

func TestListActiveItems_Idempotent(t *testing.T) {
	f := newFakeLedger()
	docs := map[string]domain.ItemMetadata{}
	seedItem(f, 1, 11, alice, carol, 100, false)
	seedItem(f, 2, 12, bob, carol, 200, false)
	seedItem(f, 3, 13, bob, carol, 300, true)
	metaFor(f, docs, 11, "Front Row")
	metaFor(f, docs, 12, "Balcony")

	p := newTestProjector(f, docs)
	defer p.Close()

	// Two scans with no intervening mutation yield identical ordered results
	first, err := p.ListActiveItems(context.Background(), alice)
	require.NoError(t, err)
	second, err := p.ListActiveItems(context.Background(), alice)
	require.NoError(t, err)

	assert.Equal(t, first.Items, second.Items)
	assert.NotEqual(t, first.RefreshID, second.RefreshID)
}

func TestActiveItemsSnapshot(t *testing.T) {
	f := newFakeLedger()
	docs := map[string]domain.ItemMetadata{}
	seedItem(f, 1, 11, alice, carol, 100, false)
	metaFor(f, docs, 11, "Front Row")

	p := newTestProjector(f, docs)
	defer p.Close()

	_, ok := p.ActiveItemsSnapshot(alice)
	assert.False(t, ok)

	view, err := p.ListActiveItems(context.Background(), alice)
	require.NoError(t, err)

	snap, ok := p.ActiveItemsSnapshot(alice)
	require.True(t, ok)
	assert.Equal(t, view.RefreshID, snap.RefreshID)
	assert.Equal(t, view.Items, snap.Items)
}

func TestListActiveItems_FeeInTotalPrice(t *testing.T) {
	f := newFakeLedger()
	f.fee = 10
	docs := map[string]domain.ItemMetadata{}
	seedItem(f, 1, 11, alice, carol, 100, false)
	metaFor(f, docs, 11, "Ticket")

	p := newTestProjector(f, docs)
	defer p.Close()

	view, err := p.ListActiveItems(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, big.NewInt(110), view.Items[0].TotalPrice)
}

func TestListActiveItems_LedgerUnavailable(t *testing.T) {
	f := newFakeLedger()
	f.err = domain.ErrLedgerUnavailable

	p := newTestProjector(f, map[string]domain.ItemMetadata{})
	defer p.Close()

	_, err := p.ListActiveItems(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
}

func TestListActiveIssuers(t *testing.T) {
	f := newFakeLedger()
	f.roster = []string{alice, bob, carol}
	f.issuers[alice] = domain.IssuerInfo{Address: alice, Name: "Alice Events", IsActive: true}
	f.issuers[bob] = domain.IssuerInfo{Address: bob, Name: "Bob Tours", IsActive: false} // removed
	f.issuers[carol] = domain.IssuerInfo{Address: carol, Name: "Carol Live", IsActive: true}

	p := newTestProjector(f, map[string]domain.ItemMetadata{})
	defer p.Close()

	view, err := p.ListActiveIssuers(context.Background())
	require.NoError(t, err)
	require.Len(t, view.Issuers, 2)

	// First-seen roster order, inactive entries dropped
	assert.Equal(t, "Alice Events", view.Issuers[0].Name)
	assert.Equal(t, "Carol Live", view.Issuers[1].Name)
}

func TestListActiveIssuers_FetchFailureExcludesAddress(t *testing.T) {
	f := newFakeLedger()
	f.roster = []string{alice, bob}
	f.issuers[alice] = domain.IssuerInfo{Address: alice, Name: "Alice Events", IsActive: true}
	f.issuerErrs[bob] = assert.AnError

	p := newTestProjector(f, map[string]domain.ItemMetadata{})
	defer p.Close()

	// One address failing its live re-fetch must not fail the roster
	view, err := p.ListActiveIssuers(context.Background())
	require.NoError(t, err)
	require.Len(t, view.Issuers, 1)
	assert.Equal(t, "Alice Events", view.Issuers[0].Name)
}

func TestReceivedOffers(t *testing.T) {
	f := newFakeLedger()
	docs := map[string]domain.ItemMetadata{}

	seedItem(f, 1, 11, alice, carol, 100, false)
	seedItem(f, 2, 12, alice, carol, 200, false) // held but no offers
	seedItem(f, 3, 13, bob, carol, 300, false)   // not held
	metaFor(f, docs, 11, "Front Row")
	metaFor(f, docs, 12, "Balcony")

	f.offers[1] = domain.Offer{OfferID: 1, ItemID: 1, Buyer: bob, Price: big.NewInt(80)}
	f.offers[2] = domain.Offer{OfferID: 2, ItemID: 1, Buyer: carol, Price: big.NewInt(120)}
	f.offers[3] = domain.Offer{OfferID: 3, ItemID: 1, Buyer: bob, Price: big.NewInt(500), Cancelled: true}
	f.itemOffers[1] = []uint64{1, 2, 3}

	p := newTestProjector(f, docs)
	defer p.Close()

	view, err := p.ReceivedOffers(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	group := view.Items[0]
	assert.Equal(t, uint64(1), group.Item.ItemID)
	require.Len(t, group.Offers, 2)

	// Highest offer first; the cancelled one is invisible
	assert.Equal(t, uint64(2), group.Offers[0].OfferID)
	assert.Equal(t, uint64(1), group.Offers[1].OfferID)
}

func TestReceivedOffers_InvalidCaller(t *testing.T) {
	p := newTestProjector(newFakeLedger(), map[string]domain.ItemMetadata{})
	defer p.Close()

	_, err := p.ReceivedOffers(context.Background(), "nope")
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestSentOffers(t *testing.T) {
	f := newFakeLedger()
	docs := map[string]domain.ItemMetadata{}
	seedItem(f, 1, 11, alice, carol, 100, false)
	seedItem(f, 2, 12, alice, carol, 200, true)
	metaFor(f, docs, 11, "Front Row")
	metaFor(f, docs, 12, "Balcony")

	f.offers[1] = domain.Offer{OfferID: 1, ItemID: 1, Buyer: bob, Price: big.NewInt(80)}
	f.offers[2] = domain.Offer{OfferID: 2, ItemID: 1, Buyer: bob, Price: big.NewInt(90), Accepted: true}
	f.offers[3] = domain.Offer{OfferID: 3, ItemID: 2, Buyer: bob, Price: big.NewInt(150), Cancelled: true}
	f.offers[4] = domain.Offer{OfferID: 4, ItemID: 1, Buyer: bob, Price: big.NewInt(70), Cancelled: true}
	f.offers[5] = domain.Offer{OfferID: 5, ItemID: 1, Buyer: carol, Price: big.NewInt(60)} // someone else's

	// Offer 4 was cancelled by the buyer themselves; offer 3 was closed by
	// the ledger when item 2 sold
	f.cancelledBy[bob] = map[uint64]struct{}{4: {}}

	p := newTestProjector(f, docs)
	defer p.Close()

	view, err := p.SentOffers(context.Background(), bob)
	require.NoError(t, err)
	require.Len(t, view.Offers, 2)

	assert.Equal(t, uint64(1), view.Offers[0].OfferID)
	assert.Equal(t, domain.SentOfferActive, view.Offers[0].Status)
	assert.Equal(t, big.NewInt(100), view.Offers[0].ListingPrice)

	assert.Equal(t, uint64(3), view.Offers[1].OfferID)
	assert.Equal(t, domain.SentOfferClosed, view.Offers[1].Status)
}

func TestListIssuedItems(t *testing.T) {
	f := newFakeLedger()
	docs := map[string]domain.ItemMetadata{}
	seedItem(f, 1, 11, alice, carol, 100, false)
	seedItem(f, 2, 12, bob, carol, 200, true) // sold items stay visible to the issuer
	seedItem(f, 3, 13, bob, alice, 300, false)
	metaFor(f, docs, 11, "A")
	metaFor(f, docs, 12, "B")
	metaFor(f, docs, 13, "C")

	p := newTestProjector(f, docs)
	defer p.Close()

	view, err := p.ListIssuedItems(context.Background(), carol)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, uint64(1), view.Items[0].ItemID)
	assert.Equal(t, uint64(2), view.Items[1].ItemID)
	assert.True(t, view.Items[1].Sold)
}

func TestListPurchases(t *testing.T) {
	f := newFakeLedger()
	docs := map[string]domain.ItemMetadata{}
	seedItem(f, 1, 11, bob, carol, 100, true)
	metaFor(f, docs, 11, "Front Row")

	f.purchases[bob] = []domain.MarketEvent{{
		ID:     "01J8ZQ4X5E7Y2K3M4N5P6Q7R8S",
		Type:   domain.EventTypeItemSold,
		ItemID: 1,
		Buyer:  bob,
		Price:  big.NewInt(110),
		TxHash: "0xabc",
	}}

	p := newTestProjector(f, docs)
	defer p.Close()

	view, err := p.ListPurchases(context.Background(), bob)
	require.NoError(t, err)
	require.Len(t, view.Purchases, 1)
	assert.Equal(t, uint64(1), view.Purchases[0].ItemID)
	assert.Equal(t, big.NewInt(110), view.Purchases[0].PaidPrice)
	assert.Equal(t, "0xabc", view.Purchases[0].TxHash)
}

func TestHasRole(t *testing.T) {
	f := newFakeLedger()
	f.roles["issuer:"+alice] = true

	p := newTestProjector(f, map[string]domain.ItemMetadata{})
	defer p.Close()

	has, err := p.HasRole(context.Background(), domain.RoleIssuer, alice)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = p.HasRole(context.Background(), domain.RoleAdmin, alice)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = p.HasRole(context.Background(), domain.RoleAdmin, "bogus")
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestStatus(t *testing.T) {
	f := newFakeLedger()
	f.fee = 5
	f.paused = true
	seedItem(f, 1, 11, alice, carol, 100, false)
	f.offers[1] = domain.Offer{OfferID: 1, ItemID: 1, Buyer: bob, Price: big.NewInt(10)}

	p := newTestProjector(f, map[string]domain.ItemMetadata{})
	defer p.Close()

	status, err := p.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), status.FeePercent)
	assert.True(t, status.Paused)
	assert.Equal(t, uint64(1), status.ItemCount)
	assert.Equal(t, uint64(1), status.OfferCount)
}
