package opportunity

// CostModel estimates the all-in cost of moving a position, in micro-USD.
// The estimate feeds both the profitability projection and the gas-ceiling
// guardrail, so one model must serve both.
type CostModel interface {
	EstimateCostUSD(crossChain bool) int64
}

// StaticCostModel prices every move with two flat figures: one for
// same-chain moves and a higher one for cross-chain moves covering bridge
// fees on top of gas.
type StaticCostModel struct {
	SameChainUSD  int64 // micro-USD
	CrossChainUSD int64 // micro-USD
}

var _ CostModel = StaticCostModel{}

func (m StaticCostModel) EstimateCostUSD(crossChain bool) int64 {
	if crossChain {
		return m.CrossChainUSD
	}
	return m.SameChainUSD
}
