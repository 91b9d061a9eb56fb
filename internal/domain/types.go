package domain

import (
	"math/big"
	"regexp"
	"time"
)

// Chain represents the blockchain network identifier using CAIP-2 format
type Chain string

const (
	ChainEthereumMainnet Chain = "eip155:1"
	ChainEthereumSepolia Chain = "eip155:11155111"
	ChainBSCMainnet      Chain = "eip155:56"
	ChainBSCTestnet      Chain = "eip155:97"
)

// IsValidChain checks if a chain is valid
func IsValidChain(chain Chain) bool {
	return chain == ChainEthereumMainnet ||
		chain == ChainEthereumSepolia ||
		chain == ChainBSCMainnet ||
		chain == ChainBSCTestnet
}

// Role represents a marketplace role tag
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleIssuer Role = "issuer"
)

// ItemType classifies the asset behind a listing
type ItemType string

const (
	ItemTypeTicket     ItemType = "TICKET"
	ItemTypeVoucher    ItemType = "VOUCHER"
	ItemTypeMembership ItemType = "MEMBERSHIP"
)

var addressRegexp = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsValidAddress checks whether s looks like a hex-encoded EVM address
func IsValidAddress(s string) bool {
	return addressRegexp.MatchString(s)
}

// Item is a marketplace listing as recorded by the ledger.
// Item ids are dense positive integers assigned by the ledger; the sold
// flag is monotonic (false -> true, never back).
type Item struct {
	ItemID        uint64   `json:"item_id"`
	AssetContract string   `json:"asset_contract"`
	TokenID       uint64   `json:"token_id"`
	Price         *big.Int `json:"price"`
	CurrentOwner  string   `json:"current_owner"`
	Sold          bool     `json:"sold"`
	Issuer        string   `json:"issuer"`
}

// Offer is a conditional bid on an item. The (accepted, cancelled) pair is
// append-only: once either flag is true it stays true forever.
type Offer struct {
	OfferID   uint64   `json:"offer_id"`
	ItemID    uint64   `json:"item_id"`
	Buyer     string   `json:"buyer"`
	Price     *big.Int `json:"price"`
	Accepted  bool     `json:"accepted"`
	Cancelled bool     `json:"cancelled"`
}

// Active reports whether the offer is still open
func (o Offer) Active() bool {
	return !o.Accepted && !o.Cancelled
}

// IssuerInfo is the live issuer record fetched from the ledger
type IssuerInfo struct {
	Address           string `json:"address"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	IsActive          bool   `json:"is_active"`
	TotalItemsCreated uint64 `json:"total_items_created"`
	TotalSales        uint64 `json:"total_sales"`
}

// ItemMetadata is the normalized off-chain metadata document for an item
type ItemMetadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	ItemType    ItemType `json:"item_type,omitempty"`
}

// EnrichedItem is an item joined with its resolved metadata and total price
// (base price + marketplace fee, computed by the ledger)
type EnrichedItem struct {
	Item
	Metadata   ItemMetadata `json:"metadata"`
	TotalPrice *big.Int     `json:"total_price"`
	IsOwn      bool         `json:"is_own"`
}

// ItemOffers groups the active offers received on a single held item,
// ordered by offered amount descending
type ItemOffers struct {
	Item   EnrichedItem `json:"item"`
	Offers []Offer      `json:"offers"`
}

// SentOfferStatus describes why a sent offer is still visible
type SentOfferStatus string

const (
	// SentOfferActive is an open offer awaiting the holder's decision
	SentOfferActive SentOfferStatus = "active"
	// SentOfferClosed is an offer the ledger cancelled on the buyer's
	// behalf (typically because the item sold to someone else)
	SentOfferClosed SentOfferStatus = "closed"
)

// SentOffer is an offer authored by the caller, joined with its target item
type SentOffer struct {
	Offer
	Status       SentOfferStatus `json:"status"`
	Item         EnrichedItem    `json:"item"`
	ListingPrice *big.Int        `json:"listing_price"`
}

// Purchase is an item the caller bought, derived from the Bought event log
type Purchase struct {
	EnrichedItem
	PaidPrice *big.Int `json:"paid_price"`
	TxHash    string   `json:"tx_hash"`
}

// MarketEventType enumerates the normalized marketplace events
type MarketEventType string

const (
	EventTypeItemListed     MarketEventType = "item_listed"
	EventTypeItemSold       MarketEventType = "item_sold"
	EventTypeOfferMade      MarketEventType = "offer_made"
	EventTypeOfferCancelled MarketEventType = "offer_cancelled"
	EventTypeIssuerAdded    MarketEventType = "issuer_added"
	EventTypeIssuerRemoved  MarketEventType = "issuer_removed"
)

// MarketEvent is a normalized marketplace event. This is the standard
// format published to NATS.
type MarketEvent struct {
	ID          string          `json:"id"` // ULID, sortable by emission time
	Type        MarketEventType `json:"type"`
	ItemID      uint64          `json:"item_id,omitempty"`
	OfferID     uint64          `json:"offer_id,omitempty"`
	TokenID     uint64          `json:"token_id,omitempty"`
	Seller      string          `json:"seller,omitempty"`
	Buyer       string          `json:"buyer,omitempty"`
	Issuer      string          `json:"issuer,omitempty"`
	Price       *big.Int        `json:"price,omitempty"`
	TxHash      string          `json:"tx_hash"`
	BlockNumber uint64          `json:"block_number"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Valid performs basic shape validation before an event is published
func (e *MarketEvent) Valid() bool {
	if e.ID == "" || e.TxHash == "" {
		return false
	}

	switch e.Type {
	case EventTypeItemListed, EventTypeItemSold:
		return e.ItemID > 0
	case EventTypeOfferMade, EventTypeOfferCancelled:
		return e.OfferID > 0 && e.ItemID > 0 && e.Buyer != ""
	case EventTypeIssuerAdded, EventTypeIssuerRemoved:
		return IsValidAddress(e.Issuer)
	default:
		return false
	}
}
