package domain

import "github.com/ethereum/go-ethereum/common"

// ProtocolKind classifies the on-chain protocol behind an adapter.
type ProtocolKind string

const (
	ProtocolLendingPool  ProtocolKind = "lending-pool"
	ProtocolMoneyMarket  ProtocolKind = "money-market"
	ProtocolCuratedVault ProtocolKind = "curated-vault"
)

// ChainDescriptor describes one supported network. Loaded at process start
// and immutable afterwards; chain IDs must be unique across the registry.
type ChainDescriptor struct {
	ID       uint64
	Name     string
	RPCURL   string
	WSURL    string
	Vault    common.Address
	HasVault bool
}

// ProtocolAdapter is the integration point for one protocol on one chain.
// Deployed=false is the explicit "not deployed yet" variant: the adapter is
// listed in configuration but must never be queried or matched against.
type ProtocolAdapter struct {
	ChainID  uint64
	ID       uint64
	Name     string
	Kind     ProtocolKind
	Address  common.Address
	Asset    common.Address
	Deployed bool
}

// ProtocolKey identifies a (chain, protocol) pair, the unit everything in a
// cycle is keyed by.
type ProtocolKey struct {
	ChainID    uint64
	ProtocolID uint64
}

// Key returns the adapter's protocol key.
func (a ProtocolAdapter) Key() ProtocolKey {
	return ProtocolKey{ChainID: a.ChainID, ProtocolID: a.ID}
}
