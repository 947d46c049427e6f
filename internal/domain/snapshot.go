package domain

import (
	"math/big"
	"time"
)

// YieldSnapshot is one adapter's observed state at collection time. Snapshots
// are regenerated every cycle and never mutated, only superseded.
type YieldSnapshot struct {
	ChainID     uint64
	ProtocolID  uint64
	APYBps      int64    // annualized yield in basis points, never negative
	TVL         *big.Int // asset-native units
	Healthy     bool
	CollectedAt time.Time
}

// Key returns the snapshot's (chain, protocol) key.
func (s YieldSnapshot) Key() ProtocolKey {
	return ProtocolKey{ChainID: s.ChainID, ProtocolID: s.ProtocolID}
}

// SnapshotSet is the output of one collection cycle: an unordered set keyed
// by (chain id, protocol id). Opportunities are only ever derived from
// snapshots of the same set, so stale and fresh data cannot mix.
type SnapshotSet struct {
	CollectedAt time.Time
	Snapshots   map[ProtocolKey]YieldSnapshot
}

// Age reports how long ago the set was collected.
func (s SnapshotSet) Age(now time.Time) time.Duration {
	return now.Sub(s.CollectedAt)
}

// Get returns the snapshot for key, if present.
func (s SnapshotSet) Get(key ProtocolKey) (YieldSnapshot, bool) {
	snap, ok := s.Snapshots[key]
	return snap, ok
}
