package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
)

var execUser = common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")

// memStore is an in-memory OutcomeStore for executor and watcher tests.
type memStore struct {
	mu   sync.Mutex
	rows map[string]domain.ExecutionOutcome
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]domain.ExecutionOutcome)}
}

func (m *memStore) Create(ctx context.Context, out domain.ExecutionOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[out.ID] = out
	return nil
}

func (m *memStore) update(id string, fn func(*domain.ExecutionOutcome)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(&row)
	row.UpdatedAt = time.Now().UTC()
	m.rows[id] = row
	return nil
}

func (m *memStore) SetSubmitted(ctx context.Context, id, txHash string) error {
	return m.update(id, func(o *domain.ExecutionOutcome) {
		o.Status = domain.OutcomeSubmitted
		o.TxHash = txHash
	})
}

func (m *memStore) SetConfirmed(ctx context.Context, id string, gasUSD, gainBps int64) error {
	return m.update(id, func(o *domain.ExecutionOutcome) {
		o.Status = domain.OutcomeConfirmed
		o.GasUSD = gasUSD
		o.GainBps = gainBps
	})
}

func (m *memStore) SetFailed(ctx context.Context, id, detail string) error {
	return m.update(id, func(o *domain.ExecutionOutcome) {
		o.Status = domain.OutcomeFailed
		o.ErrorMsg = detail
	})
}

func (m *memStore) SetBridging(ctx context.Context, id string) error {
	return m.update(id, func(o *domain.ExecutionOutcome) {
		o.Status = domain.OutcomeBridging
	})
}

func (m *memStore) SetCompleted(ctx context.Context, id string, gainBps int64) error {
	return m.update(id, func(o *domain.ExecutionOutcome) {
		o.Status = domain.OutcomeCompleted
		o.GainBps = gainBps
	})
}

func (m *memStore) SetBridgeFailed(ctx context.Context, id, detail string) error {
	return m.update(id, func(o *domain.ExecutionOutcome) {
		o.Status = domain.OutcomeBridgeFailed
		o.ErrorMsg = detail
	})
}

func (m *memStore) GetByID(ctx context.Context, id string) (domain.ExecutionOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return domain.ExecutionOutcome{}, domain.ErrNotFound
	}
	return row, nil
}

func (m *memStore) ListByUser(ctx context.Context, user common.Address, opts domain.ListOpts) ([]domain.ExecutionOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ExecutionOutcome
	for _, row := range m.rows {
		if row.User == user {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memStore) ListByStatus(ctx context.Context, status domain.OutcomeStatus) ([]domain.ExecutionOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ExecutionOutcome
	for _, row := range m.rows {
		if row.Status == status {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ExecutionOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ExecutionOutcome
	for _, row := range m.rows {
		if row.CreatedAt.Before(cutoff) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, row := range m.rows {
		if row.CreatedAt.Before(cutoff) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

// single returns the only row in the store.
func (m *memStore) single(t *testing.T) domain.ExecutionOutcome {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rows) != 1 {
		t.Fatalf("expected exactly one outcome row, got %d", len(m.rows))
	}
	for _, row := range m.rows {
		return row
	}
	panic("unreachable")
}

type memCooldowns struct {
	mu   sync.Mutex
	seen map[common.Address]uint64
}

func (m *memCooldowns) SetLastRebalance(ctx context.Context, user common.Address, chainID uint64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = make(map[common.Address]uint64)
	}
	m.seen[user] = chainID
	return nil
}

func (m *memCooldowns) LastRebalance(ctx context.Context, user common.Address, chainID uint64) (time.Time, error) {
	return time.Time{}, domain.ErrNotFound
}

type fakeWriter struct {
	sameCalls  int
	crossCalls int
	submitErr  error
	receiptErr error
	reverted   bool
}

func (f *fakeWriter) SubmitSameChainRebalance(ctx context.Context, d domain.RebalanceDecision) (domain.PendingTx, error) {
	f.sameCalls++
	if f.submitErr != nil {
		return domain.PendingTx{}, f.submitErr
	}
	return domain.PendingTx{ChainID: d.SourceChainID, Hash: common.HexToHash("0x01")}, nil
}

func (f *fakeWriter) SubmitCrossChainRebalance(ctx context.Context, d domain.RebalanceDecision) (domain.PendingTx, error) {
	f.crossCalls++
	if f.submitErr != nil {
		return domain.PendingTx{}, f.submitErr
	}
	return domain.PendingTx{ChainID: d.SourceChainID, Hash: common.HexToHash("0x02")}, nil
}

func (f *fakeWriter) RecordAPY(ctx context.Context, chainID, protocolID uint64, apyBps int64) (domain.PendingTx, error) {
	return domain.PendingTx{ChainID: chainID, Hash: common.HexToHash("0x03")}, nil
}

func (f *fakeWriter) WaitReceipt(ctx context.Context, tx domain.PendingTx) (domain.Receipt, error) {
	if f.receiptErr != nil {
		return domain.Receipt{}, f.receiptErr
	}
	return domain.Receipt{TxHash: tx.Hash, BlockNumber: 42, GasUsed: 210_000, Success: !f.reverted}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validDecision(srcChain, dstChain uint64) domain.RebalanceDecision {
	return domain.RebalanceDecision{
		ID:               "d-1",
		User:             execUser,
		SourceChainID:    srcChain,
		SourceProtocolID: 1,
		DestChainID:      dstChain,
		DestProtocolID:   2,
		Amount:           big.NewInt(5_000_000_000),
		MinAPYGainBps:    200,
		EstimatedCostUSD: 1_000_000,
		Verdict:          domain.Verdict{Valid: true, Reason: domain.ReasonOK},
	}
}

func TestExecuteRefusesUnvalidatedDecision(t *testing.T) {
	store := newMemStore()
	exec := New(&fakeWriter{}, store, nil, nil, quietLogger())

	d := validDecision(1, 1)
	d.Verdict = domain.Verdict{}

	if _, err := exec.Execute(context.Background(), d); err == nil {
		t.Fatal("expected error for unvalidated decision")
	}
	if len(store.rows) != 0 {
		t.Fatal("no outcome row may be created for an unvalidated decision")
	}
}

func TestExecuteSameChainConfirms(t *testing.T) {
	store := newMemStore()
	writer := &fakeWriter{}
	cooldowns := &memCooldowns{}
	exec := New(writer, store, cooldowns, nil, quietLogger())

	out, err := exec.Execute(context.Background(), validDecision(1, 1))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if out.Status != domain.OutcomeConfirmed {
		t.Fatalf("status = %s, want confirmed", out.Status)
	}
	if writer.sameCalls != 1 || writer.crossCalls != 0 {
		t.Fatalf("wrong submission path: same=%d cross=%d", writer.sameCalls, writer.crossCalls)
	}

	row := store.single(t)
	if row.Status != domain.OutcomeConfirmed || row.TxHash == "" {
		t.Fatalf("stored row not confirmed: %+v", row)
	}
	if row.GasUSD != 1_000_000 || row.GainBps != 200 {
		t.Fatalf("realized figures not recorded: %+v", row)
	}
	if chainID, ok := cooldowns.seen[execUser]; !ok || chainID != 1 {
		t.Fatal("cooldown cache not marked on the source chain")
	}
}

func TestExecuteRevertedTransactionFails(t *testing.T) {
	store := newMemStore()
	exec := New(&fakeWriter{reverted: true}, store, nil, nil, quietLogger())

	out, err := exec.Execute(context.Background(), validDecision(1, 1))
	if err == nil {
		t.Fatal("expected error for reverted transaction")
	}
	if out.Status != domain.OutcomeFailed {
		t.Fatalf("status = %s, want failed", out.Status)
	}

	row := store.single(t)
	if row.Status != domain.OutcomeFailed || !strings.Contains(row.ErrorMsg, "reverted") {
		t.Fatalf("stored row not failed with revert detail: %+v", row)
	}
}

func TestExecuteSubmissionErrorFails(t *testing.T) {
	store := newMemStore()
	submitErr := errors.New("nonce too low")
	exec := New(&fakeWriter{submitErr: submitErr}, store, nil, nil, quietLogger())

	_, err := exec.Execute(context.Background(), validDecision(1, 1))
	if !errors.Is(err, submitErr) {
		t.Fatalf("expected wrapped submit error, got %v", err)
	}

	row := store.single(t)
	if row.Status != domain.OutcomeFailed {
		t.Fatalf("stored row status = %s, want failed", row.Status)
	}
}

func TestExecuteCrossChainEntersBridging(t *testing.T) {
	store := newMemStore()
	writer := &fakeWriter{}
	watcher := NewCompletionWatcher(store, time.Hour, quietLogger())
	exec := New(writer, store, nil, watcher, quietLogger())

	out, err := exec.Execute(context.Background(), validDecision(1, 2))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if out.Status != domain.OutcomeBridging || !out.CrossChain {
		t.Fatalf("expected bridging cross-chain outcome, got %+v", out)
	}
	if writer.crossCalls != 1 || writer.sameCalls != 0 {
		t.Fatalf("wrong submission path: same=%d cross=%d", writer.sameCalls, writer.crossCalls)
	}
	if watcher.PendingCount() != 1 {
		t.Fatalf("watcher pending = %d, want 1", watcher.PendingCount())
	}

	row := store.single(t)
	if row.Status != domain.OutcomeBridging {
		t.Fatalf("stored row status = %s, want bridging", row.Status)
	}
}
