package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/ticketbay/tb-projector/internal/adapter"
	"github.com/ticketbay/tb-projector/internal/domain"
)

// PendingTx is a broadcast transaction awaiting its receipt
type PendingTx interface {
	// Hash returns the transaction hash
	Hash() string

	// Wait blocks until the transaction is mined or ctx is cancelled.
	// A reverted transaction yields a domain.ExecutionError carrying the
	// revert reason, or domain.ErrItemAlreadySold when the reason names a
	// completed sale.
	Wait(ctx context.Context) error
}

type pendingTx struct {
	eth     adapter.EthClient
	hash    common.Hash
	replay  ethereum.CallMsg
	maxWait time.Duration
}

func (p *pendingTx) Hash() string {
	return p.hash.Hex()
}

func (p *pendingTx) Wait(ctx context.Context) error {
	var receipt *types.Receipt

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 15 * time.Second
	bo.MaxElapsedTime = p.maxWait

	err := backoff.Retry(func() error {
		r, err := p.eth.TransactionReceipt(ctx, p.hash)
		if err != nil {
			// ethereum.NotFound means not mined yet; transport blips
			// are equally worth retrying within the window
			return err
		}
		receipt = r
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return fmt.Errorf("%w: transaction %s not mined within %s", domain.ErrLedgerUnavailable, p.hash.Hex(), p.maxWait)
		}
		return fmt.Errorf("%w: awaiting receipt for %s: %v", domain.ErrLedgerUnavailable, p.hash.Hex(), err)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return asExecutionError(p.revertReasonAt(ctx, receipt.BlockNumber))
	}
	return nil
}

// revertReasonAt replays the call at the block the transaction was mined in
// to recover the revert reason
func (p *pendingTx) revertReasonAt(ctx context.Context, blockNumber *big.Int) string {
	res, err := p.eth.CallContract(ctx, p.replay, blockNumber)
	if err != nil {
		if reason, reverted := revertReason(err); reverted {
			return reason
		}
		return "execution reverted"
	}
	if reason, uerr := abi.UnpackRevert(res); uerr == nil {
		return reason
	}
	return "execution reverted"
}

// revertReason extracts the revert reason from an RPC error, if the error
// represents a reverted execution
func revertReason(err error) (string, bool) {
	var de rpc.DataError
	if errors.As(err, &de) {
		if hexData, ok := de.ErrorData().(string); ok {
			if data, derr := hexutil.Decode(hexData); derr == nil {
				if reason, uerr := abi.UnpackRevert(data); uerr == nil {
					return reason, true
				}
			}
		}
		return de.Error(), true
	}
	if strings.Contains(strings.ToLower(err.Error()), "execution reverted") {
		return err.Error(), true
	}
	return "", false
}

// asExecutionError maps a revert reason to its domain error
func asExecutionError(reason string) error {
	if strings.Contains(strings.ToLower(reason), "already sold") {
		return fmt.Errorf("%w: %s", domain.ErrItemAlreadySold, reason)
	}
	return &domain.ExecutionError{Reason: reason}
}
