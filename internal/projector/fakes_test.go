package projector

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ticketbay/tb-projector/internal/domain"
	"github.com/ticketbay/tb-projector/internal/ledger"
)

// fakeLedger is an in-memory Ledger for tests. Setting err makes every
// read fail; mutations are recorded in calls.
type fakeLedger struct {
	mu sync.Mutex

	items       map[uint64]domain.Item
	offers      map[uint64]domain.Offer
	itemOffers  map[uint64][]uint64
	tokenURIs   map[uint64]string
	roster      []string
	issuers     map[string]domain.IssuerInfo
	issuerErrs  map[string]error
	cancelledBy map[string]map[uint64]struct{}
	purchases   map[string][]domain.MarketEvent
	roles       map[string]bool
	fee         uint64
	paused      bool
	tokenCount  uint64

	err     error
	waitErr error
	calls   []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		items:       map[uint64]domain.Item{},
		offers:      map[uint64]domain.Offer{},
		itemOffers:  map[uint64][]uint64{},
		tokenURIs:   map[uint64]string{},
		issuers:     map[string]domain.IssuerInfo{},
		issuerErrs:  map[string]error{},
		cancelledBy: map[string]map[uint64]struct{}{},
		purchases:   map[string][]domain.MarketEvent{},
		roles:       map[string]bool{},
	}
}

func (f *fakeLedger) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeLedger) ItemCount(ctx context.Context) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return uint64(len(f.items)), nil
}

func (f *fakeLedger) Item(ctx context.Context, id uint64) (*domain.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	item, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: item %d", domain.ErrLedgerUnavailable, id)
	}
	return &item, nil
}

func (f *fakeLedger) TotalPrice(ctx context.Context, itemID uint64) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	item, ok := f.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: item %d", domain.ErrLedgerUnavailable, itemID)
	}
	total := new(big.Int).Mul(item.Price, big.NewInt(int64(100+f.fee)))
	return total.Div(total, big.NewInt(100)), nil
}

func (f *fakeLedger) IssuerInfo(ctx context.Context, address string) (*domain.IssuerInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := f.issuerErrs[address]; err != nil {
		return nil, err
	}
	info := f.issuers[address]
	return &info, nil
}

func (f *fakeLedger) HasRole(ctx context.Context, role domain.Role, address string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.roles[string(role)+":"+address], nil
}

func (f *fakeLedger) OfferCount(ctx context.Context) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return uint64(len(f.offers)), nil
}

func (f *fakeLedger) Offer(ctx context.Context, id uint64) (*domain.Offer, error) {
	if f.err != nil {
		return nil, f.err
	}
	offer, ok := f.offers[id]
	if !ok {
		return nil, fmt.Errorf("%w: offer %d", domain.ErrLedgerUnavailable, id)
	}
	return &offer, nil
}

func (f *fakeLedger) ItemOfferIDs(ctx context.Context, itemID uint64) ([]uint64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.itemOffers[itemID], nil
}

func (f *fakeLedger) FeePercent(ctx context.Context) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.fee, nil
}

func (f *fakeLedger) Paused(ctx context.Context) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.paused, nil
}

func (f *fakeLedger) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.tokenURIs[tokenID], nil
}

func (f *fakeLedger) TokenCount(ctx context.Context) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.tokenCount, nil
}

func (f *fakeLedger) IssuerRoster(ctx context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.roster, nil
}

func (f *fakeLedger) CancelledOfferIDsBy(ctx context.Context, buyer string) (map[uint64]struct{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	ids := f.cancelledBy[buyer]
	if ids == nil {
		ids = map[uint64]struct{}{}
	}
	return ids, nil
}

func (f *fakeLedger) PurchasesBy(ctx context.Context, buyer string) ([]domain.MarketEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.purchases[buyer], nil
}

func (f *fakeLedger) MintToken(ctx context.Context, tokenURI string) (ledger.PendingTx, error) {
	f.record("mint:" + tokenURI)
	f.tokenCount++
	return f.tx("mint"), nil
}

func (f *fakeLedger) ApproveMarketplace(ctx context.Context) (ledger.PendingTx, error) {
	f.record("approve")
	return f.tx("approve"), nil
}

func (f *fakeLedger) ListItem(ctx context.Context, tokenID uint64, price *big.Int) (ledger.PendingTx, error) {
	f.record(fmt.Sprintf("list:%d:%s", tokenID, price))
	return f.tx("list"), nil
}

func (f *fakeLedger) PurchaseItem(ctx context.Context, itemID uint64, value *big.Int) (ledger.PendingTx, error) {
	f.record(fmt.Sprintf("purchase:%d:%s", itemID, value))
	return f.tx("purchase"), nil
}

func (f *fakeLedger) MakeOffer(ctx context.Context, itemID uint64, amount *big.Int) (ledger.PendingTx, error) {
	f.record(fmt.Sprintf("offer:%d:%s", itemID, amount))
	return f.tx("offer"), nil
}

func (f *fakeLedger) AcceptOffer(ctx context.Context, offerID uint64) (ledger.PendingTx, error) {
	f.record(fmt.Sprintf("accept:%d", offerID))
	return f.tx("accept"), nil
}

func (f *fakeLedger) CancelOffer(ctx context.Context, offerID uint64) (ledger.PendingTx, error) {
	f.record(fmt.Sprintf("cancel:%d", offerID))
	return f.tx("cancel"), nil
}

func (f *fakeLedger) AddIssuer(ctx context.Context, address, name, description string) (ledger.PendingTx, error) {
	f.record("add-issuer:" + address)
	return f.tx("add-issuer"), nil
}

func (f *fakeLedger) RemoveIssuer(ctx context.Context, address string) (ledger.PendingTx, error) {
	f.record("remove-issuer:" + address)
	return f.tx("remove-issuer"), nil
}

func (f *fakeLedger) SetFeePercent(ctx context.Context, percent uint64) (ledger.PendingTx, error) {
	f.record(fmt.Sprintf("set-fee:%d", percent))
	return f.tx("set-fee"), nil
}

func (f *fakeLedger) SetPaused(ctx context.Context, paused bool) (ledger.PendingTx, error) {
	f.record(fmt.Sprintf("set-paused:%t", paused))
	return f.tx("set-paused"), nil
}

func (f *fakeLedger) Ready(ctx context.Context) error { return f.err }
func (f *fakeLedger) Close()                          {}

func (f *fakeLedger) tx(hash string) ledger.PendingTx {
	return &fakePendingTx{hash: "0x" + hash, waitErr: f.waitErr}
}

type fakePendingTx struct {
	hash    string
	waitErr error
}

func (t *fakePendingTx) Hash() string                   { return t.hash }
func (t *fakePendingTx) Wait(ctx context.Context) error { return t.waitErr }

// fakeResolver resolves metadata from a fixed map; unknown URIs fail
type fakeResolver struct {
	docs map[string]domain.ItemMetadata
}

func (r *fakeResolver) Resolve(ctx context.Context, metadataURI string) (*domain.ItemMetadata, error) {
	doc, ok := r.docs[metadataURI]
	if !ok {
		return nil, fmt.Errorf("%w: no document at %s", domain.ErrMetadataInvalid, metadataURI)
	}
	return &doc, nil
}

// fakeUploader pins content into memory and returns deterministic URIs
type fakeUploader struct {
	mu    sync.Mutex
	files []string
	docs  []interface{}
	err   error
}

func (u *fakeUploader) PinFile(ctx context.Context, filename string, data []byte) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.files = append(u.files, filename)
	return fmt.Sprintf("ipfs://file-%d", len(u.files)), nil
}

func (u *fakeUploader) PinJSON(ctx context.Context, document interface{}) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.docs = append(u.docs, document)
	return fmt.Sprintf("ipfs://doc-%d", len(u.docs)), nil
}
