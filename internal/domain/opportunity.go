package domain

// YieldOpportunity pairs a source position slot with a higher-yielding
// destination. Derived from two snapshots of the same cycle, recomputed every
// cycle, never persisted.
type YieldOpportunity struct {
	Source      ProtocolKey
	SourceAPY   int64 // bps
	Dest        ProtocolKey
	DestAPY     int64 // bps
	DestAdapter ProtocolAdapter

	GainBps            int64 // always > 0
	CrossChain         bool
	EstimatedCostUSD   int64 // micro-USD
	ProjectedProfitUSD int64 // micro-USD over the reference window and size
	ProfitableAfterGas bool
}
