package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ticketbay/tb-projector/internal/domain"
)

// Event signature hashes, matching the declarations in marketplaceABI
var (
	TopicItemListed     = crypto.Keccak256Hash([]byte("ItemListed(uint256,address,address,uint256,uint256)"))
	TopicBought         = crypto.Keccak256Hash([]byte("Bought(uint256,address,address,address,uint256,uint256)"))
	TopicOfferMade      = crypto.Keccak256Hash([]byte("OfferMade(uint256,uint256,address,uint256)"))
	TopicOfferCancelled = crypto.Keccak256Hash([]byte("OfferCancelled(uint256,uint256,address)"))
	TopicIssuerAdded    = crypto.Keccak256Hash([]byte("IssuerAdded(address,string)"))
	TopicIssuerRemoved  = crypto.Keccak256Hash([]byte("IssuerRemoved(address)"))
)

// MarketTopics lists every marketplace event topic the emitter subscribes to
var MarketTopics = []common.Hash{
	TopicItemListed,
	TopicBought,
	TopicOfferMade,
	TopicOfferCancelled,
	TopicIssuerAdded,
	TopicIssuerRemoved,
}

var marketEventABI = mustParseABI(marketplaceABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ParseMarketLog normalizes a raw marketplace log into a MarketEvent.
// The caller is responsible for assigning the event ID and timestamp.
func ParseMarketLog(lg types.Log) (*domain.MarketEvent, error) {
	if len(lg.Topics) == 0 {
		return nil, fmt.Errorf("log %s has no topics", lg.TxHash.Hex())
	}

	event := &domain.MarketEvent{
		TxHash:      lg.TxHash.Hex(),
		BlockNumber: lg.BlockNumber,
	}

	switch lg.Topics[0] {
	case TopicItemListed:
		if len(lg.Topics) < 4 {
			return nil, fmt.Errorf("malformed ItemListed log %s", lg.TxHash.Hex())
		}
		event.Type = domain.EventTypeItemListed
		event.ItemID = topicUint64(lg.Topics[1])
		event.Issuer = topicAddress(lg.Topics[3])

		data := map[string]interface{}{}
		if err := marketEventABI.UnpackIntoMap(data, "ItemListed", lg.Data); err != nil {
			return nil, fmt.Errorf("failed to unpack ItemListed log: %w", err)
		}
		event.TokenID = dataUint64(data, "tokenId")
		event.Price = dataBigInt(data, "price")

	case TopicBought:
		if len(lg.Topics) < 4 {
			return nil, fmt.Errorf("malformed Bought log %s", lg.TxHash.Hex())
		}
		event.Type = domain.EventTypeItemSold
		event.ItemID = topicUint64(lg.Topics[1])
		event.Seller = topicAddress(lg.Topics[2])
		event.Buyer = topicAddress(lg.Topics[3])

		data := map[string]interface{}{}
		if err := marketEventABI.UnpackIntoMap(data, "Bought", lg.Data); err != nil {
			return nil, fmt.Errorf("failed to unpack Bought log: %w", err)
		}
		event.TokenID = dataUint64(data, "tokenId")
		event.Price = dataBigInt(data, "price")

	case TopicOfferMade:
		if len(lg.Topics) < 4 {
			return nil, fmt.Errorf("malformed OfferMade log %s", lg.TxHash.Hex())
		}
		event.Type = domain.EventTypeOfferMade
		event.OfferID = topicUint64(lg.Topics[1])
		event.ItemID = topicUint64(lg.Topics[2])
		event.Buyer = topicAddress(lg.Topics[3])

		data := map[string]interface{}{}
		if err := marketEventABI.UnpackIntoMap(data, "OfferMade", lg.Data); err != nil {
			return nil, fmt.Errorf("failed to unpack OfferMade log: %w", err)
		}
		event.Price = dataBigInt(data, "price")

	case TopicOfferCancelled:
		if len(lg.Topics) < 4 {
			return nil, fmt.Errorf("malformed OfferCancelled log %s", lg.TxHash.Hex())
		}
		event.Type = domain.EventTypeOfferCancelled
		event.OfferID = topicUint64(lg.Topics[1])
		event.ItemID = topicUint64(lg.Topics[2])
		event.Buyer = topicAddress(lg.Topics[3])

	case TopicIssuerAdded:
		if len(lg.Topics) < 2 {
			return nil, fmt.Errorf("malformed IssuerAdded log %s", lg.TxHash.Hex())
		}
		event.Type = domain.EventTypeIssuerAdded
		event.Issuer = topicAddress(lg.Topics[1])

	case TopicIssuerRemoved:
		if len(lg.Topics) < 2 {
			return nil, fmt.Errorf("malformed IssuerRemoved log %s", lg.TxHash.Hex())
		}
		event.Type = domain.EventTypeIssuerRemoved
		event.Issuer = topicAddress(lg.Topics[1])

	default:
		return nil, fmt.Errorf("unrecognized event topic %s", lg.Topics[0].Hex())
	}

	return event, nil
}

// IssuerRoster returns the distinct addresses that ever appeared in an
// IssuerAdded event, in first-seen order. Removed issuers stay in the
// roster; their live record decides visibility.
func (c *Client) IssuerRoster(ctx context.Context) ([]string, error) {
	logs, err := c.filterLogs(ctx, [][]common.Hash{{TopicIssuerAdded}})
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	var roster []string
	for _, lg := range logs {
		if len(lg.Topics) < 2 {
			continue
		}
		addr := topicAddress(lg.Topics[1])
		key := strings.ToLower(addr)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		roster = append(roster, addr)
	}
	return roster, nil
}

// CancelledOfferIDsBy returns the ids of every offer the given buyer
// cancelled themselves, derived from OfferCancelled events carrying the
// buyer's address.
func (c *Client) CancelledOfferIDsBy(ctx context.Context, buyer string) (map[uint64]struct{}, error) {
	logs, err := c.filterLogs(ctx, [][]common.Hash{
		{TopicOfferCancelled},
		nil,
		nil,
		{addressTopic(buyer)},
	})
	if err != nil {
		return nil, err
	}

	ids := map[uint64]struct{}{}
	for _, lg := range logs {
		if len(lg.Topics) < 4 {
			continue
		}
		ids[topicUint64(lg.Topics[1])] = struct{}{}
	}
	return ids, nil
}

// PurchasesBy returns the Bought events where the given address was the buyer
func (c *Client) PurchasesBy(ctx context.Context, buyer string) ([]domain.MarketEvent, error) {
	logs, err := c.filterLogs(ctx, [][]common.Hash{
		{TopicBought},
		nil,
		nil,
		{addressTopic(buyer)},
	})
	if err != nil {
		return nil, err
	}

	events := make([]domain.MarketEvent, 0, len(logs))
	for _, lg := range logs {
		event, err := ParseMarketLog(lg)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, nil
}

func (c *Client) filterLogs(ctx context.Context, topics [][]common.Hash) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(c.startBlock),
		Addresses: []common.Address{c.marketAddr},
		Topics:    topics,
	}

	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: event query failed: %v", domain.ErrLedgerUnavailable, err)
	}
	return logs, nil
}

func topicUint64(h common.Hash) uint64 {
	return new(big.Int).SetBytes(h.Bytes()).Uint64()
}

func topicAddress(h common.Hash) string {
	return common.BytesToAddress(h.Bytes()).Hex()
}

func addressTopic(addr string) common.Hash {
	return common.BytesToHash(common.HexToAddress(addr).Bytes())
}

func dataUint64(data map[string]interface{}, key string) uint64 {
	if v, ok := data[key].(*big.Int); ok {
		return v.Uint64()
	}
	return 0
}

func dataBigInt(data map[string]interface{}, key string) *big.Int {
	if v, ok := data[key].(*big.Int); ok {
		return v
	}
	return nil
}
