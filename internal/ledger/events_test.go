package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketbay/tb-projector/internal/domain"
)

var (
	testBuyer  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testSeller = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testNFT    = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testIssuer = common.HexToAddress("0x4444444444444444444444444444444444444444")
	testTx     = common.HexToHash("0xdeadbeef")
)

func uintTopic(v uint64) common.Hash {
	return common.BytesToHash(new(big.Int).SetUint64(v).Bytes())
}

func addrTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func word(v uint64) []byte {
	return common.LeftPadBytes(new(big.Int).SetUint64(v).Bytes(), 32)
}

func addrWord(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}

func TestParseMarketLog_ItemListed(t *testing.T) {
	data := append(word(7), word(1000000)...)

	event, err := ParseMarketLog(types.Log{
		Topics:      []common.Hash{TopicItemListed, uintTopic(5), addrTopic(testNFT), addrTopic(testIssuer)},
		Data:        data,
		TxHash:      testTx,
		BlockNumber: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.EventTypeItemListed, event.Type)
	assert.Equal(t, uint64(5), event.ItemID)
	assert.Equal(t, uint64(7), event.TokenID)
	assert.Equal(t, testIssuer.Hex(), event.Issuer)
	assert.Equal(t, big.NewInt(1000000), event.Price)
	assert.Equal(t, testTx.Hex(), event.TxHash)
	assert.Equal(t, uint64(100), event.BlockNumber)
}

func TestParseMarketLog_Bought(t *testing.T) {
	data := append(addrWord(testNFT), append(word(7), word(2000000)...)...)

	event, err := ParseMarketLog(types.Log{
		Topics:      []common.Hash{TopicBought, uintTopic(5), addrTopic(testSeller), addrTopic(testBuyer)},
		Data:        data,
		TxHash:      testTx,
		BlockNumber: 101,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.EventTypeItemSold, event.Type)
	assert.Equal(t, uint64(5), event.ItemID)
	assert.Equal(t, uint64(7), event.TokenID)
	assert.Equal(t, testSeller.Hex(), event.Seller)
	assert.Equal(t, testBuyer.Hex(), event.Buyer)
	assert.Equal(t, big.NewInt(2000000), event.Price)
}

func TestParseMarketLog_OfferMade(t *testing.T) {
	event, err := ParseMarketLog(types.Log{
		Topics:      []common.Hash{TopicOfferMade, uintTopic(9), uintTopic(5), addrTopic(testBuyer)},
		Data:        word(500),
		TxHash:      testTx,
		BlockNumber: 102,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.EventTypeOfferMade, event.Type)
	assert.Equal(t, uint64(9), event.OfferID)
	assert.Equal(t, uint64(5), event.ItemID)
	assert.Equal(t, testBuyer.Hex(), event.Buyer)
	assert.Equal(t, big.NewInt(500), event.Price)
}

func TestParseMarketLog_OfferCancelled(t *testing.T) {
	event, err := ParseMarketLog(types.Log{
		Topics:      []common.Hash{TopicOfferCancelled, uintTopic(9), uintTopic(5), addrTopic(testBuyer)},
		TxHash:      testTx,
		BlockNumber: 103,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.EventTypeOfferCancelled, event.Type)
	assert.Equal(t, uint64(9), event.OfferID)
	assert.Equal(t, uint64(5), event.ItemID)
	assert.Equal(t, testBuyer.Hex(), event.Buyer)
}

func TestParseMarketLog_IssuerEvents(t *testing.T) {
	added, err := ParseMarketLog(types.Log{
		Topics: []common.Hash{TopicIssuerAdded, addrTopic(testIssuer)},
		TxHash: testTx,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EventTypeIssuerAdded, added.Type)
	assert.Equal(t, testIssuer.Hex(), added.Issuer)

	removed, err := ParseMarketLog(types.Log{
		Topics: []common.Hash{TopicIssuerRemoved, addrTopic(testIssuer)},
		TxHash: testTx,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EventTypeIssuerRemoved, removed.Type)
	assert.Equal(t, testIssuer.Hex(), removed.Issuer)
}

func TestParseMarketLog_Malformed(t *testing.T) {
	_, err := ParseMarketLog(types.Log{TxHash: testTx})
	assert.Error(t, err)

	_, err = ParseMarketLog(types.Log{
		Topics: []common.Hash{common.HexToHash("0x1234")},
		TxHash: testTx,
	})
	assert.Error(t, err)

	// ItemListed with missing indexed topics
	_, err = ParseMarketLog(types.Log{
		Topics: []common.Hash{TopicItemListed, uintTopic(5)},
		TxHash: testTx,
	})
	assert.Error(t, err)
}

func TestChainNumericID(t *testing.T) {
	id, err := chainNumericID(domain.ChainBSCTestnet)
	require.NoError(t, err)
	assert.Equal(t, uint64(97), id.Uint64())

	_, err = chainNumericID(domain.Chain("tezos:mainnet"))
	assert.Error(t, err)
}

func TestAsExecutionError(t *testing.T) {
	err := asExecutionError("item already sold")
	assert.ErrorIs(t, err, domain.ErrItemAlreadySold)

	err = asExecutionError("insufficient funds to cover asking price")
	var execErr *domain.ExecutionError
	assert.ErrorAs(t, err, &execErr)
	assert.Equal(t, "insufficient funds to cover asking price", execErr.Reason)
}
