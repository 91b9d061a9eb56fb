package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ticketbay/tb-projector/internal/adapter"
	"github.com/ticketbay/tb-projector/internal/config"
	"github.com/ticketbay/tb-projector/internal/domain"
)

// Role identifiers as the marketplace contract defines them
var (
	adminRoleHash  = crypto.Keccak256Hash([]byte("ADMIN_ROLE"))
	issuerRoleHash = crypto.Keccak256Hash([]byte("ISSUER_ROLE"))
)

// Ledger is the read/write surface of the on-chain marketplace. Every read
// reflects ledger state at call time; reads never mutate. Any failure to
// reach the ledger wraps domain.ErrLedgerUnavailable.
type Ledger interface {
	// Marketplace reads
	ItemCount(ctx context.Context) (uint64, error)
	Item(ctx context.Context, id uint64) (*domain.Item, error)
	TotalPrice(ctx context.Context, itemID uint64) (*big.Int, error)
	IssuerInfo(ctx context.Context, address string) (*domain.IssuerInfo, error)
	HasRole(ctx context.Context, role domain.Role, address string) (bool, error)
	OfferCount(ctx context.Context) (uint64, error)
	Offer(ctx context.Context, id uint64) (*domain.Offer, error)
	ItemOfferIDs(ctx context.Context, itemID uint64) ([]uint64, error)
	FeePercent(ctx context.Context) (uint64, error)
	Paused(ctx context.Context) (bool, error)

	// NFT reads
	TokenURI(ctx context.Context, tokenID uint64) (string, error)
	TokenCount(ctx context.Context) (uint64, error)

	// Event log queries
	IssuerRoster(ctx context.Context) ([]string, error)
	CancelledOfferIDsBy(ctx context.Context, buyer string) (map[uint64]struct{}, error)
	PurchasesBy(ctx context.Context, buyer string) ([]domain.MarketEvent, error)

	// Mutations. Each submits a signed transaction and returns a handle
	// for awaiting its receipt.
	MintToken(ctx context.Context, tokenURI string) (PendingTx, error)
	ApproveMarketplace(ctx context.Context) (PendingTx, error)
	ListItem(ctx context.Context, tokenID uint64, price *big.Int) (PendingTx, error)
	PurchaseItem(ctx context.Context, itemID uint64, value *big.Int) (PendingTx, error)
	MakeOffer(ctx context.Context, itemID uint64, amount *big.Int) (PendingTx, error)
	AcceptOffer(ctx context.Context, offerID uint64) (PendingTx, error)
	CancelOffer(ctx context.Context, offerID uint64) (PendingTx, error)
	AddIssuer(ctx context.Context, address, name, description string) (PendingTx, error)
	RemoveIssuer(ctx context.Context, address string) (PendingTx, error)
	SetFeePercent(ctx context.Context, percent uint64) (PendingTx, error)
	SetPaused(ctx context.Context, paused bool) (PendingTx, error)

	// Ready verifies the marketplace contract is deployed and reachable
	Ready(ctx context.Context) error

	Close()
}

// Client implements Ledger against an EVM node
type Client struct {
	eth        adapter.EthClient
	signer     Signer
	marketAddr common.Address
	nftAddr    common.Address
	marketABI  abi.ABI
	nftABI     abi.ABI
	chainID    *big.Int
	startBlock uint64
	receiptMax time.Duration
}

// NewClient creates a ledger client. signer may be nil; mutations then
// fail with domain.ErrSubmissionDeclined.
func NewClient(eth adapter.EthClient, signer Signer, cfg config.LedgerConfig) (*Client, error) {
	marketParsed, err := abi.JSON(strings.NewReader(marketplaceABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse marketplace abi: %w", err)
	}
	nftParsed, err := abi.JSON(strings.NewReader(nftABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse nft abi: %w", err)
	}

	chainID, err := chainNumericID(cfg.ChainID)
	if err != nil {
		return nil, err
	}

	return &Client{
		eth:        eth,
		signer:     signer,
		marketAddr: common.HexToAddress(cfg.MarketplaceAddress),
		nftAddr:    common.HexToAddress(cfg.NFTAddress),
		marketABI:  marketParsed,
		nftABI:     nftParsed,
		chainID:    chainID,
		startBlock: cfg.StartBlock,
		receiptMax: cfg.ReceiptPollMax,
	}, nil
}

// chainNumericID extracts the numeric chain id from a CAIP-2 identifier
func chainNumericID(chain domain.Chain) (*big.Int, error) {
	ref, ok := strings.CutPrefix(string(chain), "eip155:")
	if !ok {
		return nil, fmt.Errorf("unsupported chain namespace %q", chain)
	}
	id, err := strconv.ParseUint(ref, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chain reference %q: %w", chain, err)
	}
	return new(big.Int).SetUint64(id), nil
}

func (c *Client) Ready(ctx context.Context) error {
	code, err := c.eth.CodeAt(ctx, c.marketAddr, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	if len(code) == 0 {
		return fmt.Errorf("%w: no contract deployed at %s", domain.ErrLedgerUnavailable, c.marketAddr.Hex())
	}
	return nil
}

func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) ItemCount(ctx context.Context) (uint64, error) {
	var count *big.Int
	if err := c.call(ctx, c.marketAddr, c.marketABI, "itemCount", &count); err != nil {
		return 0, err
	}
	return count.Uint64(), nil
}

func (c *Client) Item(ctx context.Context, id uint64) (*domain.Item, error) {
	var out struct {
		ItemId       *big.Int
		Nft          common.Address
		TokenId      *big.Int
		Price        *big.Int
		CurrentOwner common.Address
		Sold         bool
		Issuer       common.Address
	}
	if err := c.call(ctx, c.marketAddr, c.marketABI, "items", &out, new(big.Int).SetUint64(id)); err != nil {
		return nil, err
	}

	return &domain.Item{
		ItemID:        out.ItemId.Uint64(),
		AssetContract: out.Nft.Hex(),
		TokenID:       out.TokenId.Uint64(),
		Price:         out.Price,
		CurrentOwner:  out.CurrentOwner.Hex(),
		Sold:          out.Sold,
		Issuer:        out.Issuer.Hex(),
	}, nil
}

func (c *Client) TotalPrice(ctx context.Context, itemID uint64) (*big.Int, error) {
	var total *big.Int
	if err := c.call(ctx, c.marketAddr, c.marketABI, "getTotalPrice", &total, new(big.Int).SetUint64(itemID)); err != nil {
		return nil, err
	}
	return total, nil
}

func (c *Client) IssuerInfo(ctx context.Context, address string) (*domain.IssuerInfo, error) {
	var out struct {
		Name              string
		Description       string
		IsActive          bool
		TotalItemsCreated *big.Int
		TotalSales        *big.Int
	}
	if err := c.call(ctx, c.marketAddr, c.marketABI, "getIssuerInfo", &out, common.HexToAddress(address)); err != nil {
		return nil, err
	}

	return &domain.IssuerInfo{
		Address:           common.HexToAddress(address).Hex(),
		Name:              out.Name,
		Description:       out.Description,
		IsActive:          out.IsActive,
		TotalItemsCreated: out.TotalItemsCreated.Uint64(),
		TotalSales:        out.TotalSales.Uint64(),
	}, nil
}

func (c *Client) HasRole(ctx context.Context, role domain.Role, address string) (bool, error) {
	var roleHash common.Hash
	switch role {
	case domain.RoleAdmin:
		roleHash = adminRoleHash
	case domain.RoleIssuer:
		roleHash = issuerRoleHash
	default:
		return false, fmt.Errorf("unknown role %q", role)
	}

	var has bool
	if err := c.call(ctx, c.marketAddr, c.marketABI, "hasRole", &has, [32]byte(roleHash), common.HexToAddress(address)); err != nil {
		return false, err
	}
	return has, nil
}

func (c *Client) OfferCount(ctx context.Context) (uint64, error) {
	var count *big.Int
	if err := c.call(ctx, c.marketAddr, c.marketABI, "offerCount", &count); err != nil {
		return 0, err
	}
	return count.Uint64(), nil
}

func (c *Client) Offer(ctx context.Context, id uint64) (*domain.Offer, error) {
	var out struct {
		OfferId   *big.Int
		ItemId    *big.Int
		Buyer     common.Address
		Price     *big.Int
		Accepted  bool
		Cancelled bool
	}
	if err := c.call(ctx, c.marketAddr, c.marketABI, "getOffer", &out, new(big.Int).SetUint64(id)); err != nil {
		return nil, err
	}

	return &domain.Offer{
		OfferID:   out.OfferId.Uint64(),
		ItemID:    out.ItemId.Uint64(),
		Buyer:     out.Buyer.Hex(),
		Price:     out.Price,
		Accepted:  out.Accepted,
		Cancelled: out.Cancelled,
	}, nil
}

func (c *Client) ItemOfferIDs(ctx context.Context, itemID uint64) ([]uint64, error) {
	var raw []*big.Int
	if err := c.call(ctx, c.marketAddr, c.marketABI, "getItemOffers", &raw, new(big.Int).SetUint64(itemID)); err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, id.Uint64())
	}
	return ids, nil
}

func (c *Client) FeePercent(ctx context.Context) (uint64, error) {
	var fee *big.Int
	if err := c.call(ctx, c.marketAddr, c.marketABI, "feePercent", &fee); err != nil {
		return 0, err
	}
	return fee.Uint64(), nil
}

func (c *Client) Paused(ctx context.Context) (bool, error) {
	var paused bool
	if err := c.call(ctx, c.marketAddr, c.marketABI, "paused", &paused); err != nil {
		return false, err
	}
	return paused, nil
}

func (c *Client) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	var uri string
	if err := c.call(ctx, c.nftAddr, c.nftABI, "tokenURI", &uri, new(big.Int).SetUint64(tokenID)); err != nil {
		return "", err
	}
	return uri, nil
}

func (c *Client) TokenCount(ctx context.Context) (uint64, error) {
	var count *big.Int
	if err := c.call(ctx, c.nftAddr, c.nftABI, "tokenCount", &count); err != nil {
		return 0, err
	}
	return count.Uint64(), nil
}

func (c *Client) MintToken(ctx context.Context, tokenURI string) (PendingTx, error) {
	return c.transact(ctx, c.nftAddr, c.nftABI, "mint", nil, tokenURI)
}

func (c *Client) ApproveMarketplace(ctx context.Context) (PendingTx, error) {
	return c.transact(ctx, c.nftAddr, c.nftABI, "setApprovalForAll", nil, c.marketAddr, true)
}

func (c *Client) ListItem(ctx context.Context, tokenID uint64, price *big.Int) (PendingTx, error) {
	return c.transact(ctx, c.marketAddr, c.marketABI, "makeItem", nil, c.nftAddr, new(big.Int).SetUint64(tokenID), price)
}

func (c *Client) PurchaseItem(ctx context.Context, itemID uint64, value *big.Int) (PendingTx, error) {
	return c.transact(ctx, c.marketAddr, c.marketABI, "purchaseItem", value, new(big.Int).SetUint64(itemID))
}

func (c *Client) MakeOffer(ctx context.Context, itemID uint64, amount *big.Int) (PendingTx, error) {
	return c.transact(ctx, c.marketAddr, c.marketABI, "makeOffer", amount, new(big.Int).SetUint64(itemID))
}

func (c *Client) AcceptOffer(ctx context.Context, offerID uint64) (PendingTx, error) {
	return c.transact(ctx, c.marketAddr, c.marketABI, "acceptOffer", nil, new(big.Int).SetUint64(offerID))
}

func (c *Client) CancelOffer(ctx context.Context, offerID uint64) (PendingTx, error) {
	return c.transact(ctx, c.marketAddr, c.marketABI, "cancelOffer", nil, new(big.Int).SetUint64(offerID))
}

func (c *Client) AddIssuer(ctx context.Context, address, name, description string) (PendingTx, error) {
	return c.transact(ctx, c.marketAddr, c.marketABI, "addIssuer", nil, common.HexToAddress(address), name, description)
}

func (c *Client) RemoveIssuer(ctx context.Context, address string) (PendingTx, error) {
	return c.transact(ctx, c.marketAddr, c.marketABI, "removeIssuer", nil, common.HexToAddress(address))
}

func (c *Client) SetFeePercent(ctx context.Context, percent uint64) (PendingTx, error) {
	return c.transact(ctx, c.marketAddr, c.marketABI, "setFeePercent", nil, new(big.Int).SetUint64(percent))
}

func (c *Client) SetPaused(ctx context.Context, paused bool) (PendingTx, error) {
	return c.transact(ctx, c.marketAddr, c.marketABI, "setPaused", nil, paused)
}

// call packs a read-only method, executes it against the latest block and
// unpacks the result into out
func (c *Client) call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, out interface{}, args ...interface{}) error {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", method, err)
	}

	res, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrLedgerUnavailable, method, err)
	}

	if err := parsed.UnpackIntoInterface(out, method, res); err != nil {
		return fmt.Errorf("%w: failed to unpack %s: %v", domain.ErrLedgerUnavailable, method, err)
	}
	return nil
}

// transact packs a state-changing method, signs it and broadcasts it
func (c *Client) transact(ctx context.Context, to common.Address, parsed abi.ABI, method string, value *big.Int, args ...interface{}) (PendingTx, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("%w: no signer configured", domain.ErrSubmissionDeclined)
	}

	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	from := c.signer.Address()
	msg := ethereum.CallMsg{From: from, To: &to, Value: value, Data: data}

	gas, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		// Estimation replays the call; a revert here carries the same
		// reason the mined transaction would
		if reason, reverted := revertReason(err); reverted {
			return nil, asExecutionError(reason)
		}
		return nil, fmt.Errorf("%w: gas estimate for %s: %v", domain.ErrLedgerUnavailable, method, err)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", domain.ErrLedgerUnavailable, err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: gas price: %v", domain.ErrLedgerUnavailable, err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	})

	signed, err := c.signer.SignTx(ctx, tx, c.chainID)
	if err != nil {
		return nil, err
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("%w: broadcast %s: %v", domain.ErrLedgerUnavailable, method, err)
	}

	return &pendingTx{
		eth:     c.eth,
		hash:    signed.Hash(),
		replay:  msg,
		maxWait: c.receiptMax,
	}, nil
}
