package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BridgeProgressKind enumerates the lifecycle notifications a bridge
// collaborator emits while a transfer is in flight.
type BridgeProgressKind string

const (
	BridgeExpectedSteps BridgeProgressKind = "expected_steps"
	BridgeStepComplete  BridgeProgressKind = "step_complete"
	BridgeStarted       BridgeProgressKind = "started"
	BridgeCompleted     BridgeProgressKind = "completed"
	BridgeError         BridgeProgressKind = "error"
)

// BridgeProgress is one lifecycle notification from the bridge collaborator.
type BridgeProgress struct {
	Kind       BridgeProgressKind
	Step       string
	StepsTotal int
	TxHash     string
	Error      string
}

// BridgeRequest asks the collaborator to move tokens to another chain and
// optionally invoke a destination contract call on arrival.
type BridgeRequest struct {
	Token        common.Address
	Amount       *big.Int
	SrcChainID   uint64
	DestChainID  uint64
	DestContract common.Address
	DestCalldata []byte
}

// Bridger is the externally supplied bridge-and-execute capability. The
// engine only calls it and observes its progress stream; routing and
// liquidity are the collaborator's problem.
type Bridger interface {
	BridgeAndExecute(ctx context.Context, req BridgeRequest) (<-chan BridgeProgress, error)
}
