// Package collector takes point-in-time yield snapshots across every
// deployed adapter on every configured chain.
package collector

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
	"github.com/chameleonfi/chameleon-bot/internal/registry"
)

// Collector fans out adapter reads with a bounded per-chain concurrency and
// folds the results into one SnapshotSet.
type Collector struct {
	reg              *registry.Registry
	reader           domain.ChainReader
	maxReadsPerChain int
	logger           *slog.Logger
}

// New builds a Collector. maxReadsPerChain caps concurrent RPC reads against
// any single chain so public endpoints are not hammered.
func New(reg *registry.Registry, reader domain.ChainReader, maxReadsPerChain int, logger *slog.Logger) *Collector {
	if maxReadsPerChain <= 0 {
		maxReadsPerChain = 1
	}
	return &Collector{
		reg:              reg,
		reader:           reader,
		maxReadsPerChain: maxReadsPerChain,
		logger:           logger.With("component", "collector"),
	}
}

// Collect reads APY, health, and TVL for every deployed adapter and returns
// the combined set stamped with a single collection time. A failed or
// partially failed read degrades that adapter to an unhealthy zero-yield
// snapshot instead of failing the whole pass; comparison logic then skips it
// naturally. Undeployed adapters never appear in the set.
func (c *Collector) Collect(ctx context.Context) (*domain.SnapshotSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collectedAt := time.Now().UTC()
	set := &domain.SnapshotSet{
		CollectedAt: collectedAt,
		Snapshots:   make(map[domain.ProtocolKey]domain.YieldSnapshot),
	}

	var mu sync.Mutex
	outer, ctx := errgroup.WithContext(ctx)

	for _, ch := range c.reg.Chains() {
		adapters := c.deployedOn(ch)
		if len(adapters) == 0 {
			continue
		}
		ch := ch

		outer.Go(func() error {
			inner, ctx := errgroup.WithContext(ctx)
			inner.SetLimit(c.maxReadsPerChain)

			for _, a := range adapters {
				a := a
				inner.Go(func() error {
					snap := c.read(ctx, ch, a, collectedAt)
					mu.Lock()
					set.Snapshots[a.Key()] = snap
					mu.Unlock()
					return nil
				})
			}
			return inner.Wait()
		})
	}

	if err := outer.Wait(); err != nil {
		return nil, err
	}

	c.logger.Info("snapshot collection complete",
		slog.Int("snapshots", len(set.Snapshots)),
		slog.Duration("elapsed", time.Since(collectedAt)),
	)
	return set, nil
}

// read performs the three adapter reads. Any failure is logged and the
// adapter is reported unhealthy for this pass.
func (c *Collector) read(ctx context.Context, ch domain.ChainDescriptor, a domain.ProtocolAdapter, at time.Time) domain.YieldSnapshot {
	snap := domain.YieldSnapshot{
		ChainID:     a.ChainID,
		ProtocolID:  a.ID,
		TVL:         new(big.Int),
		CollectedAt: at,
	}

	apy, err := c.reader.AdapterAPY(ctx, a.ChainID, a.Address, a.Asset)
	if err != nil {
		c.logger.Warn("apy read failed, marking adapter unhealthy",
			slog.Uint64("chain_id", a.ChainID),
			slog.String("protocol", a.Name),
			slog.String("error", err.Error()),
		)
		return snap
	}

	healthy, err := c.reader.AdapterHealthy(ctx, a.ChainID, a.Address)
	if err != nil {
		c.logger.Warn("health read failed, marking adapter unhealthy",
			slog.Uint64("chain_id", a.ChainID),
			slog.String("protocol", a.Name),
			slog.String("error", err.Error()),
		)
		return snap
	}

	tvl, err := c.reader.AdapterTVL(ctx, a.ChainID, a.Address, ch.Vault)
	if err != nil {
		c.logger.Warn("tvl read failed, marking adapter unhealthy",
			slog.Uint64("chain_id", a.ChainID),
			slog.String("protocol", a.Name),
			slog.String("error", err.Error()),
		)
		return snap
	}

	snap.APYBps = apy
	snap.Healthy = healthy
	snap.TVL = tvl
	return snap
}

// deployedOn filters the chain's adapters down to the queryable ones.
func (c *Collector) deployedOn(ch domain.ChainDescriptor) []domain.ProtocolAdapter {
	if !ch.HasVault {
		return nil
	}
	var out []domain.ProtocolAdapter
	for _, a := range c.reg.Adapters(ch.ID) {
		if a.Deployed {
			out = append(out, a)
		}
	}
	return out
}
