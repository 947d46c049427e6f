package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RebalanceInitiatedEvent is emitted by a source vault when a cross-chain
// rebalance has been confirmed on the source side and the bridge transfer is
// under way.
type RebalanceInitiatedEvent struct {
	ChainID      uint64
	User         common.Address
	FromProtocol uint64
	ToProtocol   uint64
	Amount       *big.Int
	SrcChainID   uint64
	DstChainID   uint64
	Automation   common.Address
	TxHash       common.Hash
	BlockNumber  uint64
	ObservedAt   time.Time
}

// RebalanceCompletedEvent is emitted by the destination vault once the moved
// funds have been deposited. It carries the realized yield gain.
type RebalanceCompletedEvent struct {
	ChainID      uint64
	User         common.Address
	FromProtocol uint64
	ToProtocol   uint64
	Amount       *big.Int
	SrcChainID   uint64
	DstChainID   uint64
	GainBps      int64
	TxHash       common.Hash
	ObservedAt   time.Time
}
