// Package service exposes the engine's read and trigger surface to the HTTP
// API and CLI modes, decoupling them from the underlying components.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chameleonfi/chameleon-bot/internal/collector"
	"github.com/chameleonfi/chameleon-bot/internal/domain"
	"github.com/chameleonfi/chameleon-bot/internal/opportunity"
	"github.com/chameleonfi/chameleon-bot/internal/scheduler"
)

// EngineService is the facade over the decision engine.
type EngineService struct {
	collector  *collector.Collector
	finder     *opportunity.Finder
	sched      *scheduler.Scheduler
	outcomes   domain.OutcomeStore
	minGainBps int64
	logger     *slog.Logger
}

// NewEngineService creates the facade. sched may be nil for read-only modes;
// TriggerCycle then reports an error instead of running.
func NewEngineService(
	coll *collector.Collector,
	finder *opportunity.Finder,
	sched *scheduler.Scheduler,
	outcomes domain.OutcomeStore,
	minGainBps int64,
	logger *slog.Logger,
) *EngineService {
	return &EngineService{
		collector:  coll,
		finder:     finder,
		sched:      sched,
		outcomes:   outcomes,
		minGainBps: minGainBps,
		logger:     logger.With(slog.String("component", "engine_service")),
	}
}

// Opportunities takes a fresh snapshot pass and returns the current ranked
// opportunity list. A positive minGainBps overrides the configured floor for
// this call. Each call hits the chains; there is no caching layer because a
// stale answer here is worse than a slow one.
func (s *EngineService) Opportunities(ctx context.Context, minGainBps int64) ([]domain.YieldOpportunity, error) {
	if minGainBps <= 0 {
		minGainBps = s.minGainBps
	}
	set, err := s.collector.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: collecting snapshots: %w", err)
	}
	opps, err := s.finder.Find(set, minGainBps)
	if err != nil {
		return nil, fmt.Errorf("service: finding opportunities: %w", err)
	}
	return opps, nil
}

// OutcomeHistory returns a user's execution history, newest first.
func (s *EngineService) OutcomeHistory(ctx context.Context, user common.Address, opts domain.ListOpts) ([]domain.ExecutionOutcome, error) {
	outcomes, err := s.outcomes.ListByUser(ctx, user, opts)
	if err != nil {
		return nil, fmt.Errorf("service: listing outcomes for %s: %w", user.Hex(), err)
	}
	return outcomes, nil
}

// Outcome returns one outcome by id.
func (s *EngineService) Outcome(ctx context.Context, id string) (domain.ExecutionOutcome, error) {
	out, err := s.outcomes.GetByID(ctx, id)
	if err != nil {
		return domain.ExecutionOutcome{}, fmt.Errorf("service: getting outcome %s: %w", id, err)
	}
	return out, nil
}

// InFlightBridges returns every outcome still in bridging.
func (s *EngineService) InFlightBridges(ctx context.Context) ([]domain.ExecutionOutcome, error) {
	outcomes, err := s.outcomes.ListByStatus(ctx, domain.OutcomeBridging)
	if err != nil {
		return nil, fmt.Errorf("service: listing in-flight bridges: %w", err)
	}
	return outcomes, nil
}

// TriggerCycle runs one decision cycle synchronously and returns its
// summary.
func (s *EngineService) TriggerCycle(ctx context.Context) (domain.CycleSummary, error) {
	if s.sched == nil {
		return domain.CycleSummary{}, fmt.Errorf("service: scheduler not running in this mode")
	}
	s.logger.Info("cycle triggered via api")
	return s.sched.RunCycle(ctx)
}
