package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RejectReason is the closed set of verdicts the guardrail validator can
// return. Reasons are stable strings suitable for direct display.
type RejectReason string

const (
	ReasonOK                 RejectReason = "ok"
	ReasonAutomationDisabled RejectReason = "automation-disabled"
	ReasonGainBelowMinimum   RejectReason = "gain-below-user-minimum"
	ReasonGasAboveCeiling    RejectReason = "gas-above-user-ceiling"
	ReasonCooldownActive     RejectReason = "cooldown-active"
	ReasonNotProfitable      RejectReason = "not-profitable"
)

// Verdict is the validator's accept/reject outcome with its reason and a
// human-readable detail line.
type Verdict struct {
	Valid  bool
	Reason RejectReason
	Detail string
}

// RebalanceDecision carries one validated (user, opportunity) pairing to the
// executor. It lives for exactly one cycle; only its outcome is durable.
type RebalanceDecision struct {
	ID   string
	User common.Address

	SourceChainID    uint64
	SourceProtocolID uint64
	DestChainID      uint64
	DestProtocolID   uint64
	DestAdapter      common.Address

	// Amount never exceeds the position balance read immediately before
	// validation.
	Amount           *big.Int
	MinAPYGainBps    int64
	EstimatedCostUSD int64 // micro-USD

	Verdict Verdict
}

// CrossChain reports whether the decision moves funds between networks.
func (d RebalanceDecision) CrossChain() bool {
	return d.SourceChainID != d.DestChainID
}
