package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ChainReader is the read-only capability over a chain's contracts. Every
// read is taken against the latest block; callers must read immediately
// before use and never cache across the validate-execute boundary.
type ChainReader interface {
	// AdapterAPY returns the adapter's current annualized yield in bps.
	AdapterAPY(ctx context.Context, chainID uint64, adapter, asset common.Address) (int64, error)
	// AdapterHealthy reports the adapter's health flag.
	AdapterHealthy(ctx context.Context, chainID uint64, adapter common.Address) (bool, error)
	// AdapterTVL returns the vault's balance held through the adapter.
	AdapterTVL(ctx context.Context, chainID uint64, adapter, vault common.Address) (*big.Int, error)
	// ProtocolBalance returns a user's balance in one protocol via the vault.
	ProtocolBalance(ctx context.Context, chainID uint64, vault, user common.Address, protocolID uint64) (*big.Int, error)
	// Guardrails reads the user's configured limits from the vault.
	Guardrails(ctx context.Context, chainID uint64, vault, user common.Address) (UserGuardrails, error)
	// CanRebalance queries the automation contract's cooldown for
	// (user, chain). The on-chain answer is authoritative.
	CanRebalance(ctx context.Context, chainID uint64, user common.Address) (allowed bool, remaining time.Duration, err error)
}

// PendingTx is the handle returned by a submitted state-changing call.
type PendingTx struct {
	ChainID uint64
	Hash    common.Hash
}

// Receipt resolves a PendingTx to its confirmed result.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Success     bool
}

// ChainWriter submits state-changing calls against the automation contract
// and resolves their receipts.
type ChainWriter interface {
	SubmitSameChainRebalance(ctx context.Context, d RebalanceDecision) (PendingTx, error)
	SubmitCrossChainRebalance(ctx context.Context, d RebalanceDecision) (PendingTx, error)
	// RecordAPY publishes an observed APY on-chain for the automation
	// contract's own accounting.
	RecordAPY(ctx context.Context, chainID, protocolID uint64, apyBps int64) (PendingTx, error)
	// WaitReceipt blocks until the transaction is mined or ctx expires.
	WaitReceipt(ctx context.Context, tx PendingTx) (Receipt, error)
}
