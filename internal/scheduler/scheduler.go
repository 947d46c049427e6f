// Package scheduler drives the periodic decision cycle: collect snapshots
// once, then walk the configured users sequentially and execute at most one
// validated rebalance per user.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/chameleonfi/chameleon-bot/internal/collector"
	"github.com/chameleonfi/chameleon-bot/internal/domain"
	"github.com/chameleonfi/chameleon-bot/internal/executor"
	"github.com/chameleonfi/chameleon-bot/internal/guardrail"
	"github.com/chameleonfi/chameleon-bot/internal/opportunity"
	"github.com/chameleonfi/chameleon-bot/internal/registry"
)

// Notifier receives engine milestones. Implementations must not block the
// cycle; slow deliveries are their problem to buffer.
type Notifier interface {
	RebalanceExecuted(ctx context.Context, out domain.ExecutionOutcome)
	CycleFinished(ctx context.Context, summary domain.CycleSummary)
}

// Config is the scheduler's tuning block, taken from the engine section of
// the configuration file.
type Config struct {
	CycleInterval time.Duration
	UserPacing    time.Duration
	MinGainBps    int64
	RecordAPYs    bool
	UserLockTTL   time.Duration
	Users         []common.Address
}

// Scheduler owns the cycle loop. One instance runs per deployment; the
// per-user distributed lock keeps accidentally doubled deployments from
// racing each other on the same user.
type Scheduler struct {
	cfg       Config
	reg       *registry.Registry
	collector *collector.Collector
	recorder  *collector.Recorder
	finder    *opportunity.Finder
	validator *guardrail.Validator
	executor  *executor.Executor
	reader    domain.ChainReader
	locks     domain.LockManager
	notifier  Notifier
	logger    *slog.Logger
}

// New wires a Scheduler. recorder, locks, and notifier may be nil; each
// simply disables its feature.
func New(
	cfg Config,
	reg *registry.Registry,
	coll *collector.Collector,
	recorder *collector.Recorder,
	finder *opportunity.Finder,
	validator *guardrail.Validator,
	exec *executor.Executor,
	reader domain.ChainReader,
	locks domain.LockManager,
	notifier Notifier,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		reg:       reg,
		collector: coll,
		recorder:  recorder,
		finder:    finder,
		validator: validator,
		executor:  exec,
		reader:    reader,
		locks:     locks,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "scheduler")),
	}
}

// Run executes one cycle immediately, then one per interval until ctx is
// cancelled. A failed cycle is logged and the loop continues; transient RPC
// trouble should not take the engine down.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler starting",
		slog.Duration("cycle_interval", s.cfg.CycleInterval),
		slog.Int("users", len(s.cfg.Users)),
	)

	ticker := time.NewTicker(s.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		summary, err := s.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("cycle failed", slog.String("error", err.Error()))
		} else {
			s.logCycle(summary)
			if s.notifier != nil {
				s.notifier.CycleFinished(ctx, summary)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle performs one full pass: one snapshot collection shared by every
// user, then a sequential walk over the user list. Opportunities are derived
// once; amounts and guardrails are re-read per user immediately before
// validation.
func (s *Scheduler) RunCycle(ctx context.Context) (domain.CycleSummary, error) {
	summary := domain.CycleSummary{StartedAt: time.Now().UTC(), Users: len(s.cfg.Users)}

	set, err := s.collector.Collect(ctx)
	if err != nil {
		return summary, fmt.Errorf("scheduler: collecting snapshots: %w", err)
	}

	if s.cfg.RecordAPYs && s.recorder != nil {
		s.recorder.Publish(ctx, set)
	}

	opps, err := s.finder.Find(set, s.cfg.MinGainBps)
	if err != nil {
		return summary, fmt.Errorf("scheduler: finding opportunities: %w", err)
	}
	if len(opps) == 0 {
		summary.FinishedAt = time.Now().UTC()
		return summary, nil
	}

	for i, user := range s.cfg.Users {
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = time.Now().UTC()
			return summary, err
		}
		if i > 0 && s.cfg.UserPacing > 0 {
			select {
			case <-ctx.Done():
				summary.FinishedAt = time.Now().UTC()
				return summary, ctx.Err()
			case <-time.After(s.cfg.UserPacing):
			}
		}

		s.processUser(ctx, user, opps, &summary)
	}

	summary.FinishedAt = time.Now().UTC()
	return summary, nil
}

// processUser evaluates one user's positions against the cycle's
// opportunities and executes at most one move.
func (s *Scheduler) processUser(ctx context.Context, user common.Address, opps []domain.YieldOpportunity, summary *domain.CycleSummary) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, userLockKey(user), s.cfg.UserLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				s.logger.Info("user locked by another instance, skipping",
					slog.String("user", user.Hex()))
			} else {
				s.logger.Warn("user lock unavailable, skipping",
					slog.String("user", user.Hex()), slog.String("error", err.Error()))
			}
			summary.SkippedGuardrail++
			return
		}
		defer unlock()
	}

	positions := s.userPositions(ctx, user)
	for _, pos := range positions {
		matches := opportunity.ForPosition(opps, pos)
		if len(matches) == 0 {
			continue
		}

		// Highest gain first; one attempt per position slot.
		if s.tryRebalance(ctx, user, pos, matches[0], summary) {
			return
		}
	}
}

// tryRebalance validates and executes a single (position, opportunity)
// pairing. It reports whether an execution was attempted, successful or not,
// which ends the user's turn for this cycle.
func (s *Scheduler) tryRebalance(ctx context.Context, user common.Address, pos domain.UserPosition, opp domain.YieldOpportunity, summary *domain.CycleSummary) bool {
	// Re-read the balance right before deciding; the collection-time figure
	// may be minutes old by now.
	srcChain, ok := s.reg.Chain(pos.ChainID)
	if !ok || !srcChain.HasVault {
		return false
	}
	balance, err := s.reader.ProtocolBalance(ctx, pos.ChainID, srcChain.Vault, user, pos.ProtocolID)
	if err != nil {
		s.logger.Warn("balance re-read failed, skipping position",
			slog.String("user", user.Hex()),
			slog.Uint64("chain_id", pos.ChainID),
			slog.Uint64("protocol_id", pos.ProtocolID),
			slog.String("error", err.Error()),
		)
		summary.SkippedGuardrail++
		return false
	}
	if balance.Sign() <= 0 {
		return false
	}

	decision := domain.RebalanceDecision{
		ID:               uuid.NewString(),
		User:             user,
		SourceChainID:    opp.Source.ChainID,
		SourceProtocolID: opp.Source.ProtocolID,
		DestChainID:      opp.Dest.ChainID,
		DestProtocolID:   opp.Dest.ProtocolID,
		DestAdapter:      opp.DestAdapter.Address,
		Amount:           balance,
		MinAPYGainBps:    opp.GainBps,
		EstimatedCostUSD: opp.EstimatedCostUSD,
	}

	verdict, err := s.validator.Validate(ctx, decision)
	if err != nil {
		s.logger.Warn("validation unavailable, skipping decision",
			slog.String("user", user.Hex()), slog.String("error", err.Error()))
		summary.SkippedGuardrail++
		return false
	}
	decision.Verdict = verdict

	if !verdict.Valid {
		s.logger.Info("decision rejected",
			slog.String("user", user.Hex()),
			slog.String("reason", string(verdict.Reason)),
			slog.String("detail", verdict.Detail),
		)
		if verdict.Reason == domain.ReasonNotProfitable {
			summary.SkippedNotProfitable++
		} else {
			summary.SkippedGuardrail++
		}
		return false
	}

	out, err := s.executor.Execute(ctx, decision)
	if err != nil {
		summary.Failed++
		s.logger.Error("execution failed",
			slog.String("user", user.Hex()),
			slog.String("decision_id", decision.ID),
			slog.String("error", err.Error()),
		)
		return true
	}

	summary.Executed++
	if s.notifier != nil {
		s.notifier.RebalanceExecuted(ctx, out)
	}
	return true
}

// userPositions reads the user's balance in every deployed adapter and keeps
// the non-zero ones. Individual read failures skip that slot only.
func (s *Scheduler) userPositions(ctx context.Context, user common.Address) []domain.UserPosition {
	var out []domain.UserPosition
	for _, a := range s.reg.DeployedAdapters() {
		ch, ok := s.reg.Chain(a.ChainID)
		if !ok {
			continue
		}
		balance, err := s.reader.ProtocolBalance(ctx, a.ChainID, ch.Vault, user, a.ID)
		if err != nil {
			s.logger.Warn("position read failed",
				slog.String("user", user.Hex()),
				slog.Uint64("chain_id", a.ChainID),
				slog.Uint64("protocol_id", a.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if balance.Sign() > 0 {
			out = append(out, domain.UserPosition{
				User:       user,
				ChainID:    a.ChainID,
				ProtocolID: a.ID,
				Balance:    balance,
			})
		}
	}
	return out
}

func (s *Scheduler) logCycle(summary domain.CycleSummary) {
	s.logger.Info("cycle finished",
		slog.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
		slog.Int("users", summary.Users),
		slog.Int("executed", summary.Executed),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped_not_profitable", summary.SkippedNotProfitable),
		slog.Int("skipped_guardrail", summary.SkippedGuardrail),
	)
}

func userLockKey(user common.Address) string {
	return "chambot:user:" + user.Hex()
}
