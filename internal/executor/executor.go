// Package executor turns validated decisions into on-chain transactions and
// tracks each one through its lifecycle. Every phase transition is persisted
// before the next step runs, so a crash can never lose an in-flight move.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
)

// Executor submits rebalance decisions through the automation contract.
// Same-chain moves run to a terminal state inside Execute; cross-chain moves
// end Execute in bridging and are finished later by the CompletionWatcher.
type Executor struct {
	writer    domain.ChainWriter
	outcomes  domain.OutcomeStore
	cooldowns domain.CooldownCache
	watcher   *CompletionWatcher
	logger    *slog.Logger
}

// New builds an Executor. cooldowns and watcher may be nil; a nil watcher
// means cross-chain outcomes stay in bridging until a restart resumes them.
func New(
	writer domain.ChainWriter,
	outcomes domain.OutcomeStore,
	cooldowns domain.CooldownCache,
	watcher *CompletionWatcher,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		writer:    writer,
		outcomes:  outcomes,
		cooldowns: cooldowns,
		watcher:   watcher,
		logger:    logger.With(slog.String("component", "executor")),
	}
}

// Execute runs one valid decision. Exactly one outcome row is created per
// call; there are no retries here, a failed decision simply surfaces again
// next cycle if it is still the best move.
func (e *Executor) Execute(ctx context.Context, d domain.RebalanceDecision) (domain.ExecutionOutcome, error) {
	if !d.Verdict.Valid {
		return domain.ExecutionOutcome{}, fmt.Errorf("executor: decision %s was not validated", d.ID)
	}

	now := time.Now().UTC()
	out := domain.ExecutionOutcome{
		ID:               uuid.NewString(),
		DecisionID:       d.ID,
		User:             d.User,
		SourceChainID:    d.SourceChainID,
		SourceProtocolID: d.SourceProtocolID,
		DestChainID:      d.DestChainID,
		DestProtocolID:   d.DestProtocolID,
		Amount:           d.Amount,
		CrossChain:       d.CrossChain(),
		Status:           domain.OutcomePending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.outcomes.Create(ctx, out); err != nil {
		return out, fmt.Errorf("executor: recording pending outcome: %w", err)
	}

	tx, err := e.submit(ctx, d)
	if err != nil {
		e.fail(ctx, &out, fmt.Sprintf("submission failed: %v", err))
		return out, fmt.Errorf("executor: submitting decision %s: %w", d.ID, err)
	}

	out.Status = domain.OutcomeSubmitted
	out.TxHash = tx.Hash.Hex()
	if err := e.outcomes.SetSubmitted(ctx, out.ID, out.TxHash); err != nil {
		e.logger.Error("outcome update failed after submit",
			slog.String("outcome_id", out.ID), slog.String("error", err.Error()))
	}

	receipt, err := e.writer.WaitReceipt(ctx, tx)
	if err != nil {
		e.fail(ctx, &out, fmt.Sprintf("waiting for receipt: %v", err))
		return out, fmt.Errorf("executor: confirming decision %s: %w", d.ID, err)
	}
	if !receipt.Success {
		e.fail(ctx, &out, fmt.Sprintf("transaction reverted in block %d", receipt.BlockNumber))
		return out, fmt.Errorf("executor: decision %s reverted on-chain", d.ID)
	}

	out.Status = domain.OutcomeConfirmed
	out.GasUSD = d.EstimatedCostUSD
	out.GainBps = d.MinAPYGainBps
	if err := e.outcomes.SetConfirmed(ctx, out.ID, out.GasUSD, out.GainBps); err != nil {
		e.logger.Error("outcome update failed after confirmation",
			slog.String("outcome_id", out.ID), slog.String("error", err.Error()))
	}

	// The source-chain rebalance has happened, so the cooldown starts now
	// regardless of how a bridge leg turns out.
	e.markCooldown(ctx, d.User, d.SourceChainID)

	e.logger.Info("rebalance confirmed",
		slog.String("outcome_id", out.ID),
		slog.String("user", d.User.Hex()),
		slog.Uint64("source_chain", d.SourceChainID),
		slog.Uint64("dest_chain", d.DestChainID),
		slog.String("tx_hash", out.TxHash),
		slog.Bool("cross_chain", out.CrossChain),
	)

	if !out.CrossChain {
		return out, nil
	}

	out.Status = domain.OutcomeBridging
	if err := e.outcomes.SetBridging(ctx, out.ID); err != nil {
		e.logger.Error("outcome update failed entering bridging",
			slog.String("outcome_id", out.ID), slog.String("error", err.Error()))
	}
	if e.watcher != nil {
		e.watcher.Watch(out)
	}
	return out, nil
}

func (e *Executor) submit(ctx context.Context, d domain.RebalanceDecision) (domain.PendingTx, error) {
	if d.CrossChain() {
		return e.writer.SubmitCrossChainRebalance(ctx, d)
	}
	return e.writer.SubmitSameChainRebalance(ctx, d)
}

func (e *Executor) fail(ctx context.Context, out *domain.ExecutionOutcome, detail string) {
	out.Status = domain.OutcomeFailed
	out.ErrorMsg = detail
	if err := e.outcomes.SetFailed(ctx, out.ID, detail); err != nil {
		e.logger.Error("outcome update failed while recording failure",
			slog.String("outcome_id", out.ID), slog.String("error", err.Error()))
	}
}

func (e *Executor) markCooldown(ctx context.Context, user common.Address, chainID uint64) {
	if e.cooldowns == nil {
		return
	}
	if err := e.cooldowns.SetLastRebalance(ctx, user, chainID, time.Now().UTC()); err != nil {
		e.logger.Warn("cooldown cache update failed",
			slog.Uint64("chain_id", chainID), slog.String("error", err.Error()))
	}
}
