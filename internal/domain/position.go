package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// UserPosition is a user's balance in one protocol on one chain. Positions
// are derived from on-chain state on demand and never cached across cycles;
// balances change with every deposit, withdrawal and completed rebalance.
type UserPosition struct {
	User       common.Address
	ChainID    uint64
	ProtocolID uint64
	Balance    *big.Int // asset-native units
}

// Key returns the position's (chain, protocol) key.
func (p UserPosition) Key() ProtocolKey {
	return ProtocolKey{ChainID: p.ChainID, ProtocolID: p.ProtocolID}
}
