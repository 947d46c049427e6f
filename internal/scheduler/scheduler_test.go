package scheduler

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chameleonfi/chameleon-bot/internal/collector"
	"github.com/chameleonfi/chameleon-bot/internal/domain"
	"github.com/chameleonfi/chameleon-bot/internal/executor"
	"github.com/chameleonfi/chameleon-bot/internal/guardrail"
	"github.com/chameleonfi/chameleon-bot/internal/opportunity"
	"github.com/chameleonfi/chameleon-bot/internal/registry"
)

var (
	cycleUser    = common.HexToAddress("0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
	cycleVault   = common.HexToAddress("0xffffffffffffffffffffffffffffffffffffff00")
	cycleAsset   = common.HexToAddress("0xffffffffffffffffffffffffffffffffffffff01")
	adapterOne   = common.HexToAddress("0xffffffffffffffffffffffffffffffffffffff02")
	adapterTwo   = common.HexToAddress("0xffffffffffffffffffffffffffffffffffffff03")
	adapterThree = common.HexToAddress("0xffffffffffffffffffffffffffffffffffffff04")
)

// cycleReader serves the whole read surface of one cycle from fixed maps:
// APYs keyed by adapter address, balances keyed by (chain, protocol).
type cycleReader struct {
	apys       map[common.Address]int64
	balances   map[domain.ProtocolKey]*big.Int
	guardrails domain.UserGuardrails
	allowed    bool
}

func (r *cycleReader) AdapterAPY(ctx context.Context, chainID uint64, adapter, asset common.Address) (int64, error) {
	return r.apys[adapter], nil
}

func (r *cycleReader) AdapterHealthy(ctx context.Context, chainID uint64, adapter common.Address) (bool, error) {
	return true, nil
}

func (r *cycleReader) AdapterTVL(ctx context.Context, chainID uint64, adapter, vault common.Address) (*big.Int, error) {
	return big.NewInt(1_000_000_000_000), nil
}

func (r *cycleReader) ProtocolBalance(ctx context.Context, chainID uint64, vault, user common.Address, protocolID uint64) (*big.Int, error) {
	if b, ok := r.balances[domain.ProtocolKey{ChainID: chainID, ProtocolID: protocolID}]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (r *cycleReader) Guardrails(ctx context.Context, chainID uint64, vault, user common.Address) (domain.UserGuardrails, error) {
	return r.guardrails, nil
}

func (r *cycleReader) CanRebalance(ctx context.Context, chainID uint64, user common.Address) (bool, time.Duration, error) {
	if r.allowed {
		return true, 0, nil
	}
	return false, 30 * time.Minute, nil
}

type cycleWriter struct {
	mu         sync.Mutex
	sameCalls  int
	crossCalls int
}

func (w *cycleWriter) SubmitSameChainRebalance(ctx context.Context, d domain.RebalanceDecision) (domain.PendingTx, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sameCalls++
	return domain.PendingTx{ChainID: d.SourceChainID, Hash: common.HexToHash("0x10")}, nil
}

func (w *cycleWriter) SubmitCrossChainRebalance(ctx context.Context, d domain.RebalanceDecision) (domain.PendingTx, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.crossCalls++
	return domain.PendingTx{ChainID: d.SourceChainID, Hash: common.HexToHash("0x11")}, nil
}

func (w *cycleWriter) RecordAPY(ctx context.Context, chainID, protocolID uint64, apyBps int64) (domain.PendingTx, error) {
	return domain.PendingTx{ChainID: chainID, Hash: common.HexToHash("0x12")}, nil
}

func (w *cycleWriter) WaitReceipt(ctx context.Context, tx domain.PendingTx) (domain.Receipt, error) {
	return domain.Receipt{TxHash: tx.Hash, BlockNumber: 7, GasUsed: 180_000, Success: true}, nil
}

type cycleStore struct {
	mu   sync.Mutex
	rows map[string]domain.ExecutionOutcome
}

func newCycleStore() *cycleStore {
	return &cycleStore{rows: make(map[string]domain.ExecutionOutcome)}
}

func (s *cycleStore) Create(ctx context.Context, out domain.ExecutionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[out.ID] = out
	return nil
}

func (s *cycleStore) update(id string, fn func(*domain.ExecutionOutcome)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(&row)
	s.rows[id] = row
	return nil
}

func (s *cycleStore) SetSubmitted(ctx context.Context, id, txHash string) error {
	return s.update(id, func(o *domain.ExecutionOutcome) {
		o.Status = domain.OutcomeSubmitted
		o.TxHash = txHash
	})
}

func (s *cycleStore) SetConfirmed(ctx context.Context, id string, gasUSD, gainBps int64) error {
	return s.update(id, func(o *domain.ExecutionOutcome) {
		o.Status = domain.OutcomeConfirmed
		o.GasUSD = gasUSD
		o.GainBps = gainBps
	})
}

func (s *cycleStore) SetFailed(ctx context.Context, id, detail string) error {
	return s.update(id, func(o *domain.ExecutionOutcome) {
		o.Status = domain.OutcomeFailed
		o.ErrorMsg = detail
	})
}

func (s *cycleStore) SetBridging(ctx context.Context, id string) error {
	return s.update(id, func(o *domain.ExecutionOutcome) { o.Status = domain.OutcomeBridging })
}

func (s *cycleStore) SetCompleted(ctx context.Context, id string, gainBps int64) error {
	return s.update(id, func(o *domain.ExecutionOutcome) {
		o.Status = domain.OutcomeCompleted
		o.GainBps = gainBps
	})
}

func (s *cycleStore) SetBridgeFailed(ctx context.Context, id, detail string) error {
	return s.update(id, func(o *domain.ExecutionOutcome) {
		o.Status = domain.OutcomeBridgeFailed
		o.ErrorMsg = detail
	})
}

func (s *cycleStore) GetByID(ctx context.Context, id string) (domain.ExecutionOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return domain.ExecutionOutcome{}, domain.ErrNotFound
	}
	return row, nil
}

func (s *cycleStore) ListByUser(ctx context.Context, user common.Address, opts domain.ListOpts) ([]domain.ExecutionOutcome, error) {
	return nil, nil
}

func (s *cycleStore) ListByStatus(ctx context.Context, status domain.OutcomeStatus) ([]domain.ExecutionOutcome, error) {
	return nil, nil
}

func (s *cycleStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ExecutionOutcome, error) {
	return nil, nil
}

func (s *cycleStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s *cycleStore) statuses() []domain.OutcomeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.OutcomeStatus
	for _, row := range s.rows {
		out = append(out, row.Status)
	}
	return out
}

type cycleLocks struct {
	held     bool
	acquired int
}

func (l *cycleLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	l.acquired++
	return func() {}, nil
}

type cycleNotifier struct {
	executed int
	cycles   int
}

func (n *cycleNotifier) RebalanceExecuted(ctx context.Context, out domain.ExecutionOutcome) {
	n.executed++
}

func (n *cycleNotifier) CycleFinished(ctx context.Context, summary domain.CycleSummary) {
	n.cycles++
}

type cycleFixture struct {
	reader   *cycleReader
	writer   *cycleWriter
	store    *cycleStore
	locks    *cycleLocks
	notifier *cycleNotifier
	sched    *Scheduler
}

// newCycleFixture wires a real pipeline over one vault chain with three
// deployed adapters. Adapter 1 yields 100 bps, adapter 2 yields 400 bps, and
// adapter 3 starts at zero so it stays invisible until a test raises it. The
// baseline opportunity is a 300 bps same-chain move from 1 to 2; the user
// holds $5000 in adapter 1 and automation is fully permitted.
func newCycleFixture(t *testing.T) *cycleFixture {
	t.Helper()

	chains := []domain.ChainDescriptor{
		{ID: 1, Name: "one", RPCURL: "https://one", Vault: cycleVault, HasVault: true},
	}
	adapters := []domain.ProtocolAdapter{
		{ChainID: 1, ID: 1, Name: "aave-v3", Kind: domain.ProtocolLendingPool, Address: adapterOne, Asset: cycleAsset, Deployed: true},
		{ChainID: 1, ID: 2, Name: "compound-v3", Kind: domain.ProtocolMoneyMarket, Address: adapterTwo, Asset: cycleAsset, Deployed: true},
		{ChainID: 1, ID: 3, Name: "morpho", Kind: domain.ProtocolCuratedVault, Address: adapterThree, Asset: cycleAsset, Deployed: true},
	}
	reg, err := registry.New(chains, adapters)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reader := &cycleReader{
		apys: map[common.Address]int64{adapterOne: 100, adapterTwo: 400},
		balances: map[domain.ProtocolKey]*big.Int{
			{ChainID: 1, ProtocolID: 1}: big.NewInt(5_000_000_000),
		},
		guardrails: domain.UserGuardrails{
			User:          cycleUser,
			AutoRebalance: true,
			MinAPYDiffBps: 50,
			GasCeilingUSD: 10_000_000,
		},
		allowed: true,
	}
	writer := &cycleWriter{}
	store := newCycleStore()
	locks := &cycleLocks{}
	notifier := &cycleNotifier{}

	coll := collector.New(reg, reader, 4, logger)
	cost := opportunity.StaticCostModel{SameChainUSD: 1_000_000, CrossChainUSD: 5_000_000}
	finder := opportunity.NewFinder(reg, cost, 1_000_000_000, 30, 2*time.Minute, logger)
	validator := guardrail.NewValidator(reg, reader, nil, time.Hour, 1_000_000, 30, logger)
	exec := executor.New(writer, store, nil, nil, logger)

	cfg := Config{
		CycleInterval: time.Hour,
		MinGainBps:    50,
		UserLockTTL:   time.Minute,
		Users:         []common.Address{cycleUser},
	}
	sched := New(cfg, reg, coll, nil, finder, validator, exec, reader, locks, notifier, logger)

	return &cycleFixture{
		reader:   reader,
		writer:   writer,
		store:    store,
		locks:    locks,
		notifier: notifier,
		sched:    sched,
	}
}

func TestRunCycleExecutesBestOpportunity(t *testing.T) {
	fx := newCycleFixture(t)

	summary, err := fx.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if summary.Executed != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want one execution", summary)
	}
	if fx.writer.sameCalls != 1 || fx.writer.crossCalls != 0 {
		t.Fatalf("wrong submission path: same=%d cross=%d", fx.writer.sameCalls, fx.writer.crossCalls)
	}
	if fx.locks.acquired != 1 {
		t.Fatalf("user lock acquired %d times, want 1", fx.locks.acquired)
	}
	if fx.notifier.executed != 1 {
		t.Fatalf("executed notifications = %d, want 1", fx.notifier.executed)
	}

	statuses := fx.store.statuses()
	if len(statuses) != 1 || statuses[0] != domain.OutcomeConfirmed {
		t.Fatalf("stored outcomes = %v, want one confirmed row", statuses)
	}
}

func TestRunCycleExecutesAtMostOncePerUser(t *testing.T) {
	fx := newCycleFixture(t)

	// With adapter 3 at 700 bps, both funded positions have an uphill move
	// available in the same cycle. Only the first may be taken.
	fx.reader.apys[adapterThree] = 700
	fx.reader.balances[domain.ProtocolKey{ChainID: 1, ProtocolID: 2}] = big.NewInt(3_000_000_000)

	summary, err := fx.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if summary.Executed != 1 {
		t.Fatalf("executed = %d, want exactly 1 per user per cycle", summary.Executed)
	}
	if fx.writer.sameCalls != 1 {
		t.Fatalf("writer called %d times, want 1", fx.writer.sameCalls)
	}
}

func TestRunCycleSkipsUserWhenLockHeld(t *testing.T) {
	fx := newCycleFixture(t)
	fx.locks.held = true

	summary, err := fx.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if summary.Executed != 0 || summary.SkippedGuardrail != 1 {
		t.Fatalf("summary = %+v, want one guardrail skip and no executions", summary)
	}
	if fx.writer.sameCalls != 0 && fx.writer.crossCalls != 0 {
		t.Fatal("writer must not be touched when the user lock is held")
	}
}

func TestRunCycleCountsGuardrailRejections(t *testing.T) {
	fx := newCycleFixture(t)
	fx.reader.guardrails.AutoRebalance = false

	summary, err := fx.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if summary.Executed != 0 || summary.SkippedGuardrail != 1 || summary.SkippedNotProfitable != 0 {
		t.Fatalf("summary = %+v, want one guardrail skip", summary)
	}
	if len(fx.store.statuses()) != 0 {
		t.Fatal("rejected decision must not create an outcome row")
	}
}

func TestRunCycleCountsUnprofitableRejections(t *testing.T) {
	fx := newCycleFixture(t)

	// $100 at +300 bps over 30 days projects about $0.25, below the $1 cost
	// let alone the profit floor.
	fx.reader.balances[domain.ProtocolKey{ChainID: 1, ProtocolID: 1}] = big.NewInt(100_000_000)

	summary, err := fx.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if summary.Executed != 0 || summary.SkippedNotProfitable != 1 {
		t.Fatalf("summary = %+v, want one not-profitable skip", summary)
	}
}

func TestRunCycleNoOpportunitiesIsQuiet(t *testing.T) {
	fx := newCycleFixture(t)
	fx.reader.apys = map[common.Address]int64{adapterOne: 250, adapterTwo: 250}

	summary, err := fx.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if summary.Executed != 0 || summary.SkippedGuardrail != 0 || summary.SkippedNotProfitable != 0 {
		t.Fatalf("flat yields still produced activity: %+v", summary)
	}
	if fx.locks.acquired != 0 {
		t.Fatal("no user should be locked when the cycle has no opportunities")
	}
}

func TestRunCycleSkipsUserWithoutPositions(t *testing.T) {
	fx := newCycleFixture(t)
	fx.reader.balances = map[domain.ProtocolKey]*big.Int{}

	summary, err := fx.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if summary.Executed != 0 || fx.writer.sameCalls != 0 {
		t.Fatalf("empty positions still executed: %+v", summary)
	}
}
