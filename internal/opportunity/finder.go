// Package opportunity derives candidate yield moves from one snapshot set.
// The finder is pure comparison logic; it holds no chain access and no
// per-user state.
package opportunity

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
	"github.com/chameleonfi/chameleon-bot/internal/registry"
)

const (
	bpsDenominator = 10_000
	daysPerYear    = 365
)

// Finder compares every eligible snapshot pair and emits the gainful ones.
type Finder struct {
	reg            *registry.Registry
	cost           CostModel
	refAmountUSD   int64 // micro-USD position used for the projection
	projectionDays int64
	maxAge         time.Duration
	logger         *slog.Logger
}

// NewFinder builds a Finder. refAmountUSD and projectionDays define the
// reference projection reported on each opportunity; the real per-user
// profitability check happens later against the actual position size.
func NewFinder(reg *registry.Registry, cost CostModel, refAmountUSD, projectionDays int64, maxAge time.Duration, logger *slog.Logger) *Finder {
	return &Finder{
		reg:            reg,
		cost:           cost,
		refAmountUSD:   refAmountUSD,
		projectionDays: projectionDays,
		maxAge:         maxAge,
		logger:         logger.With("component", "finder"),
	}
}

// Find returns every ordered pair of snapshots whose yield difference meets
// minGainBps, sorted by gain descending with cheaper moves first on ties.
// The whole set is rejected with domain.ErrStaleSnapshot once it is older
// than the configured maximum; deciding on stale yields is worse than
// skipping a cycle.
func (f *Finder) Find(set *domain.SnapshotSet, minGainBps int64) ([]domain.YieldOpportunity, error) {
	if age := set.Age(time.Now().UTC()); age > f.maxAge {
		return nil, fmt.Errorf("opportunity: set collected %s ago: %w", age.Round(time.Second), domain.ErrStaleSnapshot)
	}

	eligible := make([]domain.YieldSnapshot, 0, len(set.Snapshots))
	for _, snap := range set.Snapshots {
		if snap.Healthy && snap.APYBps > 0 {
			eligible = append(eligible, snap)
		}
	}

	var out []domain.YieldOpportunity
	for _, src := range eligible {
		for _, dst := range eligible {
			if src.Key() == dst.Key() {
				continue
			}

			gain := dst.APYBps - src.APYBps
			if gain < minGainBps {
				continue
			}

			destAdapter, ok := f.reg.Adapter(dst.Key())
			if !ok || !destAdapter.Deployed {
				continue
			}

			crossChain := src.ChainID != dst.ChainID
			cost := f.cost.EstimateCostUSD(crossChain)
			profit := f.projectProfitUSD(gain, cost)

			out = append(out, domain.YieldOpportunity{
				Source:             src.Key(),
				SourceAPY:          src.APYBps,
				Dest:               dst.Key(),
				DestAPY:            dst.APYBps,
				DestAdapter:        destAdapter,
				GainBps:            gain,
				CrossChain:         crossChain,
				EstimatedCostUSD:   cost,
				ProjectedProfitUSD: profit,
				ProfitableAfterGas: profit > 0,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].GainBps != out[j].GainBps {
			return out[i].GainBps > out[j].GainBps
		}
		return out[i].EstimatedCostUSD < out[j].EstimatedCostUSD
	})

	f.logger.Debug("opportunity scan complete",
		slog.Int("eligible_snapshots", len(eligible)),
		slog.Int("opportunities", len(out)),
	)
	return out, nil
}

// projectProfitUSD estimates the net gain of holding the reference position
// at the improved yield for the projection window.
func (f *Finder) projectProfitUSD(gainBps, costUSD int64) int64 {
	yield := f.refAmountUSD * gainBps * f.projectionDays / (bpsDenominator * daysPerYear)
	return yield - costUSD
}

// ForPosition filters opportunities down to those whose source matches the
// given position slot, preserving order.
func ForPosition(opps []domain.YieldOpportunity, pos domain.UserPosition) []domain.YieldOpportunity {
	key := domain.ProtocolKey{ChainID: pos.ChainID, ProtocolID: pos.ProtocolID}
	var out []domain.YieldOpportunity
	for _, o := range opps {
		if o.Source == key {
			out = append(out, o)
		}
	}
	return out
}
