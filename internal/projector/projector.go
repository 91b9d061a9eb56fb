package projector

import (
	"context"
	"math/big"
	"sort"
	"strings"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/ticketbay/tb-projector/internal/adapter"
	"github.com/ticketbay/tb-projector/internal/domain"
	"github.com/ticketbay/tb-projector/internal/ledger"
	"github.com/ticketbay/tb-projector/internal/logger"
	"github.com/ticketbay/tb-projector/internal/metadata"
)

// Config holds projector worker pool sizing
type Config struct {
	PoolSize  int
	QueueSize int
}

// ItemsView is a published projection of the active listings
type ItemsView struct {
	RefreshID string                `json:"refresh_id"`
	Items     []domain.EnrichedItem `json:"items"`
}

// IssuersView is a published projection of the active issuer roster
type IssuersView struct {
	RefreshID string              `json:"refresh_id"`
	Issuers   []domain.IssuerInfo `json:"issuers"`
}

// ReceivedOffersView groups the active offers on the caller's held items
type ReceivedOffersView struct {
	RefreshID string              `json:"refresh_id"`
	Items     []domain.ItemOffers `json:"items"`
}

// SentOffersView lists the offers the caller authored that are still visible
type SentOffersView struct {
	RefreshID string             `json:"refresh_id"`
	Offers    []domain.SentOffer `json:"offers"`
}

// IssuedItemsView lists every item the caller issued, sold or not
type IssuedItemsView struct {
	RefreshID string                `json:"refresh_id"`
	Items     []domain.EnrichedItem `json:"items"`
}

// PurchasesView lists the items the caller bought
type PurchasesView struct {
	RefreshID string            `json:"refresh_id"`
	Purchases []domain.Purchase `json:"purchases"`
}

// MarketStatus is the marketplace-level state snapshot
type MarketStatus struct {
	FeePercent uint64 `json:"fee_percent"`
	Paused     bool   `json:"paused"`
	ItemCount  uint64 `json:"item_count"`
	OfferCount uint64 `json:"offer_count"`
}

// Projector derives consistent client views from the ledger. Every view is
// recomputed from live ledger state on each call; overlapping refreshes of
// the same view resolve last-completed-wins through the snapshot store.
type Projector struct {
	ledger    ledger.Ledger
	metadata  metadata.Resolver
	pool      pond.Pool
	snapshots *snapshotStore
}

func New(lgr ledger.Ledger, md metadata.Resolver, clock adapter.Clock, cfg Config) *Projector {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 8
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	return &Projector{
		ledger:    lgr,
		metadata:  md,
		pool:      pond.NewPool(poolSize, pond.WithQueueSize(queueSize)),
		snapshots: newSnapshotStore(clock.Now),
	}
}

// Close drains the worker pool
func (p *Projector) Close() {
	p.pool.StopAndWait()
}

// ListActiveItems projects the storefront: every unsold item, enriched with
// metadata and total price. When caller is set, items the caller currently
// owns are flagged. An item whose metadata cannot be resolved is excluded
// from the result; the rest of the view still succeeds.
func (p *Projector) ListActiveItems(ctx context.Context, caller string) (*ItemsView, error) {
	token := p.snapshots.begin()

	items, err := p.scanItems(ctx)
	if err != nil {
		return nil, err
	}

	var active []domain.Item
	for _, item := range items {
		if !item.Sold {
			active = append(active, item)
		}
	}

	enriched, err := p.enrichItems(ctx, active, caller)
	if err != nil {
		return nil, err
	}

	return p.publishItems(itemsKey(caller), token, enriched), nil
}

// ActiveItemsSnapshot returns the last published active-listings view for
// caller without touching the ledger. Hosts poll this as the displayed
// snapshot; a changed refresh id means some refresh completed since,
// including the reconciliation pass after a failed purchase.
func (p *Projector) ActiveItemsSnapshot(caller string) (*ItemsView, bool) {
	snap, ok := p.snapshots.current(itemsKey(caller))
	if !ok {
		return nil, false
	}
	return snap.data.(*ItemsView), true
}

func itemsKey(caller string) string {
	return "items:" + strings.ToLower(caller)
}

// ListActiveIssuers projects the issuer directory: every address that ever
// appeared in an IssuerAdded event, re-fetched live and filtered to the
// still-active ones. Roster order is first-seen order. The event payload is
// historical, so each address is re-read; an address whose live fetch fails
// is excluded without failing the view.
func (p *Projector) ListActiveIssuers(ctx context.Context) (*IssuersView, error) {
	token := p.snapshots.begin()

	roster, err := p.ledger.IssuerRoster(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]*domain.IssuerInfo, len(roster))
	group := p.pool.NewGroup()
	for i, addr := range roster {
		i, addr := i, addr
		group.Submit(func() {
			info, err := p.ledger.IssuerInfo(ctx, addr)
			if err != nil {
				logger.WarnCtx(ctx, "issuer info fetch failed, excluding address",
					zap.String("address", addr),
					zap.Error(err))
				return
			}
			infos[i] = info
		})
	}
	group.Wait()

	issuers := make([]domain.IssuerInfo, 0, len(infos))
	for _, info := range infos {
		if info != nil && info.IsActive {
			issuers = append(issuers, *info)
		}
	}

	view := &IssuersView{RefreshID: token.id, Issuers: issuers}
	p.snapshots.complete("issuers", token, view)
	return view, nil
}

// ReceivedOffers projects the offers awaiting the caller's decision: for
// each unsold item the caller holds, its still-open offers ordered by
// offered amount descending.
func (p *Projector) ReceivedOffers(ctx context.Context, caller string) (*ReceivedOffersView, error) {
	if !domain.IsValidAddress(caller) {
		return nil, &domain.ValidationError{Field: "caller", Detail: "must be a hex address"}
	}
	token := p.snapshots.begin()

	items, err := p.scanItems(ctx)
	if err != nil {
		return nil, err
	}

	var held []domain.Item
	for _, item := range items {
		if !item.Sold && strings.EqualFold(item.CurrentOwner, caller) {
			held = append(held, item)
		}
	}

	results := make([]*domain.ItemOffers, len(held))
	group := p.pool.NewGroup()
	for i, item := range held {
		i, item := i, item
		group.SubmitErr(func() error {
			offers, err := p.activeOffersOn(ctx, item.ItemID)
			if err != nil {
				return err
			}
			if len(offers) == 0 {
				return nil
			}

			enriched, err := p.enrichItem(ctx, item, caller)
			if err != nil {
				return err
			}
			if enriched == nil {
				return nil
			}
			results[i] = &domain.ItemOffers{Item: *enriched, Offers: offers}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	view := &ReceivedOffersView{RefreshID: token.id, Items: []domain.ItemOffers{}}
	for _, r := range results {
		if r != nil {
			view.Items = append(view.Items, *r)
		}
	}

	p.snapshots.complete("received:"+strings.ToLower(caller), token, view)
	return view, nil
}

// SentOffers projects the offers the caller authored. Open offers show as
// active. A cancelled offer is shown tagged closed only when no
// OfferCancelled event names both that offer and the caller, meaning the
// ledger closed it out from under them; offers the caller cancelled
// themselves disappear, and accepted offers never show.
func (p *Projector) SentOffers(ctx context.Context, caller string) (*SentOffersView, error) {
	if !domain.IsValidAddress(caller) {
		return nil, &domain.ValidationError{Field: "caller", Detail: "must be a hex address"}
	}
	token := p.snapshots.begin()

	count, err := p.ledger.OfferCount(ctx)
	if err != nil {
		return nil, err
	}

	offers := make([]*domain.Offer, count)
	group := p.pool.NewGroup()
	for id := uint64(1); id <= count; id++ {
		id := id
		group.SubmitErr(func() error {
			offer, err := p.ledger.Offer(ctx, id)
			if err != nil {
				return err
			}
			offers[id-1] = offer
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var mine []domain.Offer
	needCancelled := false
	for _, offer := range offers {
		if offer == nil || !strings.EqualFold(offer.Buyer, caller) || offer.Accepted {
			continue
		}
		if offer.Cancelled {
			needCancelled = true
		}
		mine = append(mine, *offer)
	}

	// Self-cancelled offers are distinguished from ledger-closed ones by
	// the caller's own OfferCancelled events
	selfCancelled := map[uint64]struct{}{}
	if needCancelled {
		selfCancelled, err = p.ledger.CancelledOfferIDsBy(ctx, caller)
		if err != nil {
			return nil, err
		}
	}

	view := &SentOffersView{RefreshID: token.id, Offers: []domain.SentOffer{}}
	for _, offer := range mine {
		status := domain.SentOfferActive
		if offer.Cancelled {
			if _, self := selfCancelled[offer.OfferID]; self {
				continue
			}
			status = domain.SentOfferClosed
		}

		item, err := p.ledger.Item(ctx, offer.ItemID)
		if err != nil {
			return nil, err
		}
		enriched, err := p.enrichItem(ctx, *item, caller)
		if err != nil {
			return nil, err
		}
		if enriched == nil {
			continue
		}

		view.Offers = append(view.Offers, domain.SentOffer{
			Offer:        offer,
			Status:       status,
			Item:         *enriched,
			ListingPrice: item.Price,
		})
	}

	p.snapshots.complete("sent:"+strings.ToLower(caller), token, view)
	return view, nil
}

// ListIssuedItems projects every item the caller listed as issuer,
// including sold ones
func (p *Projector) ListIssuedItems(ctx context.Context, caller string) (*IssuedItemsView, error) {
	if !domain.IsValidAddress(caller) {
		return nil, &domain.ValidationError{Field: "caller", Detail: "must be a hex address"}
	}
	token := p.snapshots.begin()

	items, err := p.scanItems(ctx)
	if err != nil {
		return nil, err
	}

	var issued []domain.Item
	for _, item := range items {
		if strings.EqualFold(item.Issuer, caller) {
			issued = append(issued, item)
		}
	}

	enriched, err := p.enrichItems(ctx, issued, caller)
	if err != nil {
		return nil, err
	}

	view := &IssuedItemsView{RefreshID: token.id, Items: enriched}
	p.snapshots.complete("issued:"+strings.ToLower(caller), token, view)
	return view, nil
}

// ListPurchases projects the items the caller bought, derived from the
// Bought event log
func (p *Projector) ListPurchases(ctx context.Context, caller string) (*PurchasesView, error) {
	if !domain.IsValidAddress(caller) {
		return nil, &domain.ValidationError{Field: "caller", Detail: "must be a hex address"}
	}
	token := p.snapshots.begin()

	events, err := p.ledger.PurchasesBy(ctx, caller)
	if err != nil {
		return nil, err
	}

	purchases := make([]*domain.Purchase, len(events))
	group := p.pool.NewGroup()
	for i, event := range events {
		i, event := i, event
		group.SubmitErr(func() error {
			item, err := p.ledger.Item(ctx, event.ItemID)
			if err != nil {
				return err
			}
			enriched, err := p.enrichItem(ctx, *item, caller)
			if err != nil {
				return err
			}
			if enriched == nil {
				return nil
			}
			purchases[i] = &domain.Purchase{
				EnrichedItem: *enriched,
				PaidPrice:    event.Price,
				TxHash:       event.TxHash,
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	view := &PurchasesView{RefreshID: token.id, Purchases: []domain.Purchase{}}
	for _, pu := range purchases {
		if pu != nil {
			view.Purchases = append(view.Purchases, *pu)
		}
	}
	return view, nil
}

// HasRole reports whether the address carries the given marketplace role
func (p *Projector) HasRole(ctx context.Context, role domain.Role, address string) (bool, error) {
	if !domain.IsValidAddress(address) {
		return false, &domain.ValidationError{Field: "address", Detail: "must be a hex address"}
	}
	return p.ledger.HasRole(ctx, role, address)
}

// Status reads the marketplace-level state
func (p *Projector) Status(ctx context.Context) (*MarketStatus, error) {
	fee, err := p.ledger.FeePercent(ctx)
	if err != nil {
		return nil, err
	}
	paused, err := p.ledger.Paused(ctx)
	if err != nil {
		return nil, err
	}
	itemCount, err := p.ledger.ItemCount(ctx)
	if err != nil {
		return nil, err
	}
	offerCount, err := p.ledger.OfferCount(ctx)
	if err != nil {
		return nil, err
	}

	return &MarketStatus{
		FeePercent: fee,
		Paused:     paused,
		ItemCount:  itemCount,
		OfferCount: offerCount,
	}, nil
}

// scanItems reads the full dense item range 1..itemCount in parallel and
// reassembles it in id order
func (p *Projector) scanItems(ctx context.Context) ([]domain.Item, error) {
	count, err := p.ledger.ItemCount(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]domain.Item, count)
	group := p.pool.NewGroup()
	for id := uint64(1); id <= count; id++ {
		id := id
		group.SubmitErr(func() error {
			item, err := p.ledger.Item(ctx, id)
			if err != nil {
				return err
			}
			items[id-1] = *item
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// enrichItems enriches a batch of items in parallel. Input order is
// preserved; items whose metadata cannot be resolved are compacted out.
func (p *Projector) enrichItems(ctx context.Context, items []domain.Item, caller string) ([]domain.EnrichedItem, error) {
	slots := make([]*domain.EnrichedItem, len(items))
	group := p.pool.NewGroup()
	for i, item := range items {
		i, item := i, item
		group.SubmitErr(func() error {
			e, err := p.enrichItem(ctx, item, caller)
			if err != nil {
				return err
			}
			slots[i] = e
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	enriched := make([]domain.EnrichedItem, 0, len(slots))
	for _, e := range slots {
		if e != nil {
			enriched = append(enriched, *e)
		}
	}
	return enriched, nil
}

// enrichItem joins one item with its resolved metadata and total price.
// A metadata failure drops the single record (nil, nil) instead of failing
// the whole view; ledger failures still do.
func (p *Projector) enrichItem(ctx context.Context, item domain.Item, caller string) (*domain.EnrichedItem, error) {
	total, err := p.ledger.TotalPrice(ctx, item.ItemID)
	if err != nil {
		return nil, err
	}

	tokenURI, err := p.ledger.TokenURI(ctx, item.TokenID)
	if err != nil {
		return nil, err
	}

	md, err := p.metadata.Resolve(ctx, tokenURI)
	if err != nil {
		logger.WarnCtx(ctx, "metadata resolution failed, excluding record",
			zap.Uint64("item_id", item.ItemID),
			zap.String("token_uri", tokenURI),
			zap.Error(err))
		return nil, nil
	}

	return &domain.EnrichedItem{
		Item:       item,
		Metadata:   *md,
		TotalPrice: total,
		IsOwn:      caller != "" && strings.EqualFold(item.CurrentOwner, caller),
	}, nil
}

// activeOffersOn returns the still-open offers on an item, ordered by
// offered amount descending with offer id as the tiebreak
func (p *Projector) activeOffersOn(ctx context.Context, itemID uint64) ([]domain.Offer, error) {
	ids, err := p.ledger.ItemOfferIDs(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var offers []domain.Offer
	for _, id := range ids {
		offer, err := p.ledger.Offer(ctx, id)
		if err != nil {
			return nil, err
		}
		if offer.Active() {
			offers = append(offers, *offer)
		}
	}

	sort.SliceStable(offers, func(i, j int) bool {
		cmp := compareAmounts(offers[i].Price, offers[j].Price)
		if cmp != 0 {
			return cmp > 0
		}
		return offers[i].OfferID < offers[j].OfferID
	})
	return offers, nil
}

func (p *Projector) publishItems(key string, token refreshToken, items []domain.EnrichedItem) *ItemsView {
	view := &ItemsView{RefreshID: token.id, Items: items}
	p.snapshots.complete(key, token, view)
	return view
}

func compareAmounts(a, b *big.Int) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	return a.Cmp(b)
}
