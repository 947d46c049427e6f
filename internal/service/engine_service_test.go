package service

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chameleonfi/chameleon-bot/internal/collector"
	"github.com/chameleonfi/chameleon-bot/internal/domain"
	"github.com/chameleonfi/chameleon-bot/internal/opportunity"
	"github.com/chameleonfi/chameleon-bot/internal/registry"
)

var (
	svcVault = common.HexToAddress("0x8888888888888888888888888888888888888880")
	svcAsset = common.HexToAddress("0x8888888888888888888888888888888888888881")
	svcAddrA = common.HexToAddress("0x8888888888888888888888888888888888888882")
	svcAddrB = common.HexToAddress("0x8888888888888888888888888888888888888883")
)

// yieldReader serves fixed APYs keyed by adapter address.
type yieldReader struct {
	apys map[common.Address]int64
}

func (r *yieldReader) AdapterAPY(ctx context.Context, chainID uint64, adapter, asset common.Address) (int64, error) {
	return r.apys[adapter], nil
}

func (r *yieldReader) AdapterHealthy(ctx context.Context, chainID uint64, adapter common.Address) (bool, error) {
	return true, nil
}

func (r *yieldReader) AdapterTVL(ctx context.Context, chainID uint64, adapter, vault common.Address) (*big.Int, error) {
	return big.NewInt(1_000_000_000_000), nil
}

func (r *yieldReader) ProtocolBalance(ctx context.Context, chainID uint64, vault, user common.Address, protocolID uint64) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (r *yieldReader) Guardrails(ctx context.Context, chainID uint64, vault, user common.Address) (domain.UserGuardrails, error) {
	return domain.UserGuardrails{}, nil
}

func (r *yieldReader) CanRebalance(ctx context.Context, chainID uint64, user common.Address) (bool, time.Duration, error) {
	return true, 0, nil
}

// newTestService wires a real collector and finder over one vault chain with
// adapters at 100 and 400 bps, so the only opportunity gains 300 bps. The
// configured floor is 50 bps.
func newTestService(t *testing.T) *EngineService {
	t.Helper()

	chains := []domain.ChainDescriptor{
		{ID: 1, Name: "one", RPCURL: "https://one", Vault: svcVault, HasVault: true},
	}
	adapters := []domain.ProtocolAdapter{
		{ChainID: 1, ID: 1, Name: "aave-v3", Kind: domain.ProtocolLendingPool, Address: svcAddrA, Asset: svcAsset, Deployed: true},
		{ChainID: 1, ID: 2, Name: "compound-v3", Kind: domain.ProtocolMoneyMarket, Address: svcAddrB, Asset: svcAsset, Deployed: true},
	}
	reg, err := registry.New(chains, adapters)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reader := &yieldReader{apys: map[common.Address]int64{svcAddrA: 100, svcAddrB: 400}}
	coll := collector.New(reg, reader, 4, logger)
	cost := opportunity.StaticCostModel{SameChainUSD: 1_000_000, CrossChainUSD: 5_000_000}
	finder := opportunity.NewFinder(reg, cost, 1_000_000_000, 30, 2*time.Minute, logger)

	return NewEngineService(coll, finder, nil, nil, 50, logger)
}

func TestOpportunitiesUsesConfiguredFloorByDefault(t *testing.T) {
	svc := newTestService(t)

	opps, err := svc.Opportunities(context.Background(), 0)
	if err != nil {
		t.Fatalf("Opportunities: %v", err)
	}
	if len(opps) != 1 || opps[0].GainBps != 300 {
		t.Fatalf("expected the 300 bps opportunity at the configured floor, got %+v", opps)
	}
}

func TestOpportunitiesHonorsCallerFloor(t *testing.T) {
	svc := newTestService(t)

	opps, err := svc.Opportunities(context.Background(), 350)
	if err != nil {
		t.Fatalf("Opportunities: %v", err)
	}
	if len(opps) != 0 {
		t.Fatalf("a 350 bps caller floor must hide the 300 bps opportunity, got %+v", opps)
	}

	opps, err = svc.Opportunities(context.Background(), 250)
	if err != nil {
		t.Fatalf("Opportunities: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("a 250 bps caller floor must keep the opportunity, got %+v", opps)
	}
}

func TestTriggerCycleWithoutSchedulerErrors(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.TriggerCycle(context.Background()); err == nil {
		t.Fatal("expected error when no scheduler is wired")
	}
}
