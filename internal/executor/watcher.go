package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
)

// watchKey identifies one in-flight bridge leg. The destination vault's
// completion event carries user and both chain ids, which is enough to match
// it back to the outcome that started it.
type watchKey struct {
	user     common.Address
	srcChain uint64
	dstChain uint64
}

type watchEntry struct {
	outcomeID string
	deadline  time.Time
}

// CompletionWatcher finishes cross-chain outcomes. The executor hands it
// every outcome that enters bridging; the event feed notifies it when a
// destination vault reports completion. An entry past its deadline is
// dropped from memory but its outcome row stays in bridging: declaring a
// bridge transfer dead is an operator call, not a timer's.
type CompletionWatcher struct {
	outcomes domain.OutcomeStore
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[watchKey]watchEntry
}

// NewCompletionWatcher builds a watcher with the given bridge timeout.
func NewCompletionWatcher(outcomes domain.OutcomeStore, timeout time.Duration, logger *slog.Logger) *CompletionWatcher {
	return &CompletionWatcher{
		outcomes: outcomes,
		timeout:  timeout,
		logger:   logger.With(slog.String("component", "completion_watcher")),
		pending:  make(map[watchKey]watchEntry),
	}
}

// Watch registers a bridging outcome for completion matching. A second
// registration for the same (user, source, destination) replaces the first;
// the scheduler's per-user serialization makes that case unreachable in
// normal operation.
func (w *CompletionWatcher) Watch(out domain.ExecutionOutcome) {
	key := watchKey{user: out.User, srcChain: out.SourceChainID, dstChain: out.DestChainID}
	w.mu.Lock()
	w.pending[key] = watchEntry{outcomeID: out.ID, deadline: time.Now().UTC().Add(w.timeout)}
	w.mu.Unlock()

	w.logger.Info("watching bridge leg",
		slog.String("outcome_id", out.ID),
		slog.String("user", out.User.Hex()),
		slog.Uint64("source_chain", out.SourceChainID),
		slog.Uint64("dest_chain", out.DestChainID),
	)
}

// Resume reloads every outcome still marked bridging, typically after a
// restart, and re-registers it with a fresh deadline.
func (w *CompletionWatcher) Resume(ctx context.Context) error {
	stuck, err := w.outcomes.ListByStatus(ctx, domain.OutcomeBridging)
	if err != nil {
		return fmt.Errorf("executor: resuming bridging outcomes: %w", err)
	}
	for _, out := range stuck {
		w.Watch(out)
	}
	if len(stuck) > 0 {
		w.logger.Info("resumed in-flight bridge legs", slog.Int("count", len(stuck)))
	}
	return nil
}

// NotifyCompleted matches a destination-vault completion event against the
// pending set and promotes the outcome to completed with the realized gain.
// Events with no pending match are ignored; they belong to rebalances this
// instance did not start.
func (w *CompletionWatcher) NotifyCompleted(ctx context.Context, ev domain.RebalanceCompletedEvent) {
	key := watchKey{user: ev.User, srcChain: ev.SrcChainID, dstChain: ev.DstChainID}

	w.mu.Lock()
	entry, ok := w.pending[key]
	if ok {
		delete(w.pending, key)
	}
	w.mu.Unlock()
	if !ok {
		return
	}

	if err := w.outcomes.SetCompleted(ctx, entry.outcomeID, ev.GainBps); err != nil {
		w.logger.Error("outcome update failed on bridge completion",
			slog.String("outcome_id", entry.outcomeID), slog.String("error", err.Error()))
		return
	}

	w.logger.Info("cross-chain rebalance completed",
		slog.String("outcome_id", entry.outcomeID),
		slog.String("user", ev.User.Hex()),
		slog.Uint64("dest_chain", ev.DstChainID),
		slog.Int64("gain_bps", ev.GainBps),
	)
}

// NotifyBridgeError marks the matching outcome bridge-failed. This is the
// only path into that state; timeouts deliberately do not take it.
func (w *CompletionWatcher) NotifyBridgeError(ctx context.Context, user common.Address, srcChain, dstChain uint64, detail string) {
	key := watchKey{user: user, srcChain: srcChain, dstChain: dstChain}

	w.mu.Lock()
	entry, ok := w.pending[key]
	if ok {
		delete(w.pending, key)
	}
	w.mu.Unlock()
	if !ok {
		return
	}

	if err := w.outcomes.SetBridgeFailed(ctx, entry.outcomeID, detail); err != nil {
		w.logger.Error("outcome update failed on bridge error",
			slog.String("outcome_id", entry.outcomeID), slog.String("error", err.Error()))
		return
	}

	w.logger.Warn("bridge leg failed",
		slog.String("outcome_id", entry.outcomeID),
		slog.String("user", user.Hex()),
		slog.String("detail", detail),
	)
}

// Run expires overdue entries until ctx is cancelled.
func (w *CompletionWatcher) Run(ctx context.Context) error {
	interval := w.timeout / 10
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			w.expire(now.UTC())
		}
	}
}

func (w *CompletionWatcher) expire(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, entry := range w.pending {
		if now.Before(entry.deadline) {
			continue
		}
		delete(w.pending, key)
		w.logger.Warn("bridge leg timed out, leaving outcome in bridging for reconciliation",
			slog.String("outcome_id", entry.outcomeID),
			slog.String("user", key.user.Hex()),
			slog.Uint64("source_chain", key.srcChain),
			slog.Uint64("dest_chain", key.dstChain),
		)
	}
}

// PendingCount reports how many bridge legs are currently being watched.
func (w *CompletionWatcher) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
