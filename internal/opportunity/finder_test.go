package opportunity

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
	"github.com/chameleonfi/chameleon-bot/internal/registry"
)

var (
	adapterAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	assetAddr   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	vaultAddr   = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// twoChainRegistry has two vault chains, each with two deployed adapters,
// except protocol 2 on chain 2 which is an undeployed placeholder.
func twoChainRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	chains := []domain.ChainDescriptor{
		{ID: 1, Name: "one", RPCURL: "https://one", Vault: vaultAddr, HasVault: true},
		{ID: 2, Name: "two", RPCURL: "https://two", Vault: vaultAddr, HasVault: true},
	}
	adapters := []domain.ProtocolAdapter{
		{ChainID: 1, ID: 1, Name: "aave-v3", Kind: domain.ProtocolLendingPool, Address: adapterAddr, Asset: assetAddr, Deployed: true},
		{ChainID: 1, ID: 2, Name: "compound-v3", Kind: domain.ProtocolMoneyMarket, Address: adapterAddr, Asset: assetAddr, Deployed: true},
		{ChainID: 2, ID: 1, Name: "aave-v3", Kind: domain.ProtocolLendingPool, Address: adapterAddr, Asset: assetAddr, Deployed: true},
		{ChainID: 2, ID: 2, Name: "morpho", Kind: domain.ProtocolCuratedVault},
	}
	reg, err := registry.New(chains, adapters)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	return reg
}

func testFinder(t *testing.T) *Finder {
	t.Helper()
	cost := StaticCostModel{SameChainUSD: 1_000_000, CrossChainUSD: 5_000_000}
	return NewFinder(twoChainRegistry(t), cost, 1_000_000_000, 30, 2*time.Minute, discardLogger())
}

func snapshotSet(age time.Duration, snaps ...domain.YieldSnapshot) *domain.SnapshotSet {
	set := &domain.SnapshotSet{
		CollectedAt: time.Now().UTC().Add(-age),
		Snapshots:   make(map[domain.ProtocolKey]domain.YieldSnapshot, len(snaps)),
	}
	for _, s := range snaps {
		set.Snapshots[s.Key()] = s
	}
	return set
}

func TestFindRejectsStaleSet(t *testing.T) {
	f := testFinder(t)
	set := snapshotSet(10*time.Minute,
		domain.YieldSnapshot{ChainID: 1, ProtocolID: 1, APYBps: 300, Healthy: true},
	)
	_, err := f.Find(set, 50)
	if !errors.Is(err, domain.ErrStaleSnapshot) {
		t.Fatalf("expected ErrStaleSnapshot, got %v", err)
	}
}

func TestFindAppliesGainThreshold(t *testing.T) {
	f := testFinder(t)
	set := snapshotSet(0,
		domain.YieldSnapshot{ChainID: 1, ProtocolID: 1, APYBps: 300, Healthy: true},
		domain.YieldSnapshot{ChainID: 1, ProtocolID: 2, APYBps: 340, Healthy: true},
	)

	opps, err := f.Find(set, 50)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(opps) != 0 {
		t.Fatalf("40 bps gain should not clear a 50 bps threshold, got %d opportunities", len(opps))
	}

	opps, err = f.Find(set, 40)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("expected exactly one opportunity, got %d", len(opps))
	}
	if opps[0].GainBps != 40 || opps[0].CrossChain {
		t.Fatalf("unexpected opportunity: %+v", opps[0])
	}
}

func TestFindSkipsUnhealthyAndZeroYieldSnapshots(t *testing.T) {
	f := testFinder(t)
	set := snapshotSet(0,
		domain.YieldSnapshot{ChainID: 1, ProtocolID: 1, APYBps: 100, Healthy: false},
		domain.YieldSnapshot{ChainID: 1, ProtocolID: 2, APYBps: 0, Healthy: true},
		domain.YieldSnapshot{ChainID: 2, ProtocolID: 1, APYBps: 900, Healthy: true},
	)
	opps, err := f.Find(set, 50)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(opps) != 0 {
		t.Fatalf("ineligible snapshots produced opportunities: %+v", opps)
	}
}

func TestFindSkipsUndeployedDestinations(t *testing.T) {
	f := testFinder(t)
	// Protocol 2 on chain 2 is a placeholder; even a huge gain toward it
	// must be discarded.
	set := snapshotSet(0,
		domain.YieldSnapshot{ChainID: 1, ProtocolID: 1, APYBps: 100, Healthy: true},
		domain.YieldSnapshot{ChainID: 2, ProtocolID: 2, APYBps: 2_000, Healthy: true},
	)
	opps, err := f.Find(set, 50)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(opps) != 0 {
		t.Fatalf("undeployed destination produced opportunities: %+v", opps)
	}
}

func TestFindOrdersByGainThenCost(t *testing.T) {
	f := testFinder(t)
	// Chain 1 protocol 1 at 100 bps has a 200 bps same-chain move and a
	// 200 bps cross-chain move; the same-chain one is cheaper and must rank
	// first. A 400 bps cross-chain move tops both.
	set := snapshotSet(0,
		domain.YieldSnapshot{ChainID: 1, ProtocolID: 1, APYBps: 100, Healthy: true},
		domain.YieldSnapshot{ChainID: 1, ProtocolID: 2, APYBps: 300, Healthy: true},
		domain.YieldSnapshot{ChainID: 2, ProtocolID: 1, APYBps: 500, Healthy: true},
	)

	opps, err := f.Find(set, 200)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(opps) != 3 {
		t.Fatalf("expected 3 opportunities, got %d: %+v", len(opps), opps)
	}

	if opps[0].GainBps != 400 || !opps[0].CrossChain {
		t.Fatalf("expected 400 bps cross-chain first, got %+v", opps[0])
	}
	if opps[1].GainBps != 200 || opps[1].CrossChain {
		t.Fatalf("expected 200 bps same-chain before cross-chain tie, got %+v", opps[1])
	}
	if opps[2].GainBps != 200 || !opps[2].CrossChain {
		t.Fatalf("expected 200 bps cross-chain last, got %+v", opps[2])
	}
}

func TestFindProjectsProfit(t *testing.T) {
	f := testFinder(t)
	set := snapshotSet(0,
		domain.YieldSnapshot{ChainID: 1, ProtocolID: 1, APYBps: 100, Healthy: true},
		domain.YieldSnapshot{ChainID: 1, ProtocolID: 2, APYBps: 300, Healthy: true},
	)

	opps, err := f.Find(set, 50)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}

	// $1000 at +200 bps for 30 days: 1e9 * 200 * 30 / (10000 * 365)
	// = 1_643_835 micro-USD yield, minus the $1 same-chain cost.
	want := int64(1_643_835 - 1_000_000)
	got := opps[0].ProjectedProfitUSD
	if got != want {
		t.Fatalf("projected profit = %d, want %d", got, want)
	}
	if !opps[0].ProfitableAfterGas {
		t.Fatal("expected opportunity to be profitable after gas")
	}
}

func TestForPositionFiltersBySource(t *testing.T) {
	opps := []domain.YieldOpportunity{
		{Source: domain.ProtocolKey{ChainID: 1, ProtocolID: 1}, GainBps: 300},
		{Source: domain.ProtocolKey{ChainID: 1, ProtocolID: 2}, GainBps: 200},
		{Source: domain.ProtocolKey{ChainID: 1, ProtocolID: 1}, GainBps: 100},
	}
	pos := domain.UserPosition{ChainID: 1, ProtocolID: 1}

	got := ForPosition(opps, pos)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].GainBps != 300 || got[1].GainBps != 100 {
		t.Fatalf("order not preserved: %+v", got)
	}
}
