package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OutcomeStore persists the execution outcome log. Rows are created at
// pending and advanced phase by phase so a restart can resume observation of
// in-flight cross-chain moves.
type OutcomeStore interface {
	Create(ctx context.Context, out ExecutionOutcome) error
	SetSubmitted(ctx context.Context, id, txHash string) error
	SetConfirmed(ctx context.Context, id string, gasUSD, gainBps int64) error
	SetFailed(ctx context.Context, id, detail string) error
	SetBridging(ctx context.Context, id string) error
	SetCompleted(ctx context.Context, id string, gainBps int64) error
	SetBridgeFailed(ctx context.Context, id, detail string) error
	GetByID(ctx context.Context, id string) (ExecutionOutcome, error)
	ListByUser(ctx context.Context, user common.Address, opts ListOpts) ([]ExecutionOutcome, error)
	ListByStatus(ctx context.Context, status OutcomeStatus) ([]ExecutionOutcome, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]ExecutionOutcome, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CooldownCache holds the last-seen cooldown state per (user, chain). It is
// observational only; the automation contract's on-chain cooldown is the
// single source of truth even when this cache disagrees.
type CooldownCache interface {
	SetLastRebalance(ctx context.Context, user common.Address, chainID uint64, at time.Time) error
	LastRebalance(ctx context.Context, user common.Address, chainID uint64) (time.Time, error)
}

// LockManager provides distributed locks. Acquire returns ErrLockHeld when
// the lock is taken; the returned unlock func is safe to call repeatedly.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
