package projector

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ticketbay/tb-projector/internal/domain"
	"github.com/ticketbay/tb-projector/internal/ledger"
	"github.com/ticketbay/tb-projector/internal/logger"
	"github.com/ticketbay/tb-projector/internal/pinning"
)

// CreateItemRequest carries everything needed to mint and list a new item
type CreateItemRequest struct {
	Name        string
	Description string
	ItemType    domain.ItemType
	Filename    string
	Image       []byte
	Price       *big.Int
}

// CreateItemResult reports the outcome of a completed listing pipeline
type CreateItemResult struct {
	ItemID      uint64 `json:"item_id"`
	TokenID     uint64 `json:"token_id"`
	MetadataURI string `json:"metadata_uri"`
	ImageURI    string `json:"image_uri"`
	TxHash      string `json:"tx_hash"`
}

// MutationResult reports a single awaited ledger mutation
type MutationResult struct {
	TxHash string `json:"tx_hash"`
}

// Mutator submits ledger mutations. At most one mutation pipeline runs at a
// time; a second submission while one is in flight fails fast with
// domain.ErrMutationInFlight instead of queueing.
type Mutator struct {
	ledger   ledger.Ledger
	uploader pinning.Uploader
	inFlight atomic.Bool
}

func NewMutator(lgr ledger.Ledger, uploader pinning.Uploader) *Mutator {
	return &Mutator{
		ledger:   lgr,
		uploader: uploader,
	}
}

func (m *Mutator) begin() error {
	if !m.inFlight.CompareAndSwap(false, true) {
		return domain.ErrMutationInFlight
	}
	return nil
}

func (m *Mutator) end() {
	m.inFlight.Store(false)
}

// CreateItem runs the full listing pipeline: pin the image, pin the
// metadata document, mint the token, approve the marketplace and list the
// item. Each ledger step is awaited before the next starts.
func (m *Mutator) CreateItem(ctx context.Context, req CreateItemRequest) (*CreateItemResult, error) {
	if err := validateCreateItem(req); err != nil {
		return nil, err
	}
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	imageURI, err := m.uploader.PinFile(ctx, req.Filename, req.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to pin image: %w", err)
	}

	doc := domain.ItemMetadata{
		Name:        req.Name,
		Description: req.Description,
		Image:       imageURI,
		ItemType:    req.ItemType,
	}
	metadataURI, err := m.uploader.PinJSON(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to pin metadata: %w", err)
	}

	mintTx, err := m.ledger.MintToken(ctx, metadataURI)
	if err != nil {
		return nil, err
	}
	if err := mintTx.Wait(ctx); err != nil {
		return nil, err
	}

	tokenID, err := m.ledger.TokenCount(ctx)
	if err != nil {
		return nil, err
	}

	approveTx, err := m.ledger.ApproveMarketplace(ctx)
	if err != nil {
		return nil, err
	}
	if err := approveTx.Wait(ctx); err != nil {
		return nil, err
	}

	listTx, err := m.ledger.ListItem(ctx, tokenID, req.Price)
	if err != nil {
		return nil, err
	}
	if err := listTx.Wait(ctx); err != nil {
		return nil, err
	}

	itemID, err := m.ledger.ItemCount(ctx)
	if err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "item listed",
		zap.Uint64("item_id", itemID),
		zap.Uint64("token_id", tokenID),
		zap.String("metadata_uri", metadataURI))

	return &CreateItemResult{
		ItemID:      itemID,
		TokenID:     tokenID,
		MetadataURI: metadataURI,
		ImageURI:    imageURI,
		TxHash:      listTx.Hash(),
	}, nil
}

// Purchase buys an item at its current total price. The value sent is the
// ledger's own total at submission time, so a fee change between read and
// submit surfaces as a revert rather than an underpayment.
func (m *Mutator) Purchase(ctx context.Context, itemID uint64) (*MutationResult, error) {
	if itemID == 0 {
		return nil, &domain.ValidationError{Field: "item_id", Detail: "must be positive"}
	}
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	total, err := m.ledger.TotalPrice(ctx, itemID)
	if err != nil {
		return nil, err
	}

	tx, err := m.ledger.PurchaseItem(ctx, itemID, total)
	if err != nil {
		return nil, err
	}
	return m.await(ctx, tx)
}

// MakeOffer places an offer of the given amount on an item
func (m *Mutator) MakeOffer(ctx context.Context, itemID uint64, amount *big.Int) (*MutationResult, error) {
	if itemID == 0 {
		return nil, &domain.ValidationError{Field: "item_id", Detail: "must be positive"}
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, &domain.ValidationError{Field: "amount", Detail: "must be positive"}
	}
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	tx, err := m.ledger.MakeOffer(ctx, itemID, amount)
	if err != nil {
		return nil, err
	}
	return m.await(ctx, tx)
}

// AcceptOffer accepts an offer on an item the caller holds
func (m *Mutator) AcceptOffer(ctx context.Context, offerID uint64) (*MutationResult, error) {
	if offerID == 0 {
		return nil, &domain.ValidationError{Field: "offer_id", Detail: "must be positive"}
	}
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	tx, err := m.ledger.AcceptOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	return m.await(ctx, tx)
}

// CancelOffer withdraws an offer the caller authored
func (m *Mutator) CancelOffer(ctx context.Context, offerID uint64) (*MutationResult, error) {
	if offerID == 0 {
		return nil, &domain.ValidationError{Field: "offer_id", Detail: "must be positive"}
	}
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	tx, err := m.ledger.CancelOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	return m.await(ctx, tx)
}

// AddIssuer grants the issuer role and records the roster entry
func (m *Mutator) AddIssuer(ctx context.Context, address, name, description string) (*MutationResult, error) {
	if !domain.IsValidAddress(address) {
		return nil, &domain.ValidationError{Field: "address", Detail: "must be a hex address"}
	}
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Detail: "must not be empty"}
	}
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	tx, err := m.ledger.AddIssuer(ctx, address, name, description)
	if err != nil {
		return nil, err
	}
	return m.await(ctx, tx)
}

// RemoveIssuer deactivates an issuer
func (m *Mutator) RemoveIssuer(ctx context.Context, address string) (*MutationResult, error) {
	if !domain.IsValidAddress(address) {
		return nil, &domain.ValidationError{Field: "address", Detail: "must be a hex address"}
	}
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	tx, err := m.ledger.RemoveIssuer(ctx, address)
	if err != nil {
		return nil, err
	}
	return m.await(ctx, tx)
}

// SetFeePercent updates the marketplace fee
func (m *Mutator) SetFeePercent(ctx context.Context, percent uint64) (*MutationResult, error) {
	if percent > 100 {
		return nil, &domain.ValidationError{Field: "fee_percent", Detail: "must be at most 100"}
	}
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	tx, err := m.ledger.SetFeePercent(ctx, percent)
	if err != nil {
		return nil, err
	}
	return m.await(ctx, tx)
}

// SetPaused toggles the marketplace pause switch
func (m *Mutator) SetPaused(ctx context.Context, paused bool) (*MutationResult, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	tx, err := m.ledger.SetPaused(ctx, paused)
	if err != nil {
		return nil, err
	}
	return m.await(ctx, tx)
}

func (m *Mutator) await(ctx context.Context, tx ledger.PendingTx) (*MutationResult, error) {
	if err := tx.Wait(ctx); err != nil {
		return nil, err
	}
	return &MutationResult{TxHash: tx.Hash()}, nil
}

func validateCreateItem(req CreateItemRequest) error {
	if req.Name == "" {
		return &domain.ValidationError{Field: "name", Detail: "must not be empty"}
	}
	if len(req.Image) == 0 {
		return &domain.ValidationError{Field: "image", Detail: "must not be empty"}
	}
	if req.Filename == "" {
		return &domain.ValidationError{Field: "filename", Detail: "must not be empty"}
	}
	if req.Price == nil || req.Price.Sign() <= 0 {
		return &domain.ValidationError{Field: "price", Detail: "must be positive"}
	}
	return nil
}
