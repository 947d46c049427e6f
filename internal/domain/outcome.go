package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// OutcomeStatus is the executor's state machine. Same-chain rebalances end at
// confirmed or failed; cross-chain ones fan out from confirmed into bridging
// and end at completed or bridge-failed. An outcome stuck in bridging past
// the operational timeout is left there for reconciliation, never force
// failed: bridge completion is outside this engine's authority.
type OutcomeStatus string

const (
	OutcomePending      OutcomeStatus = "pending"
	OutcomeSubmitted    OutcomeStatus = "submitted"
	OutcomeConfirmed    OutcomeStatus = "confirmed"
	OutcomeFailed       OutcomeStatus = "failed"
	OutcomeBridging     OutcomeStatus = "bridging"
	OutcomeCompleted    OutcomeStatus = "completed"
	OutcomeBridgeFailed OutcomeStatus = "bridge-failed"
)

// Terminal reports whether the status is an end state.
func (s OutcomeStatus) Terminal() bool {
	switch s {
	case OutcomeConfirmed, OutcomeFailed, OutcomeCompleted, OutcomeBridgeFailed:
		return true
	}
	return false
}

// ExecutionOutcome is the append-only record of one decision's execution, the
// sole durable artifact the engine persists. It feeds cooldown enforcement
// and user-facing history.
type ExecutionOutcome struct {
	ID         string
	DecisionID string
	User       common.Address

	SourceChainID    uint64
	SourceProtocolID uint64
	DestChainID      uint64
	DestProtocolID   uint64
	Amount           *big.Int
	CrossChain       bool

	Status   OutcomeStatus
	TxHash   string
	GasUSD   int64 // realized, micro-USD
	GainBps  int64 // realized
	ErrorMsg string

	CreatedAt time.Time
	UpdatedAt time.Time
}
