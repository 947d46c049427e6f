package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/chameleonfi/chameleon-bot/internal/bridge"
	"github.com/chameleonfi/chameleon-bot/internal/collector"
	"github.com/chameleonfi/chameleon-bot/internal/domain"
	"github.com/chameleonfi/chameleon-bot/internal/eventfeed"
	"github.com/chameleonfi/chameleon-bot/internal/executor"
	"github.com/chameleonfi/chameleon-bot/internal/guardrail"
	"github.com/chameleonfi/chameleon-bot/internal/opportunity"
	"github.com/chameleonfi/chameleon-bot/internal/scheduler"
	"github.com/chameleonfi/chameleon-bot/internal/server"
	"github.com/chameleonfi/chameleon-bot/internal/server/handler"
	"github.com/chameleonfi/chameleon-bot/internal/service"
)

// engine groups the per-mode component set built on top of Dependencies.
type engine struct {
	collector *collector.Collector
	recorder  *collector.Recorder
	finder    *opportunity.Finder
	validator *guardrail.Validator
	watcher   *executor.CompletionWatcher
	executor  *executor.Executor
	scheduler *scheduler.Scheduler
}

// buildEngine constructs the decision-engine components. The executor and
// scheduler are only built when a writer is wired; read-only modes get the
// collector, finder, and validator alone.
func (a *App) buildEngine(deps *Dependencies) *engine {
	logger := slog.Default()
	eng := &engine{}

	eng.collector = collector.New(deps.Registry, deps.Reader, a.cfg.Engine.MaxReadsPerChain, logger)
	eng.finder = opportunity.NewFinder(
		deps.Registry,
		opportunity.StaticCostModel{
			SameChainUSD:  a.cfg.Engine.SameChainCostUSD,
			CrossChainUSD: a.cfg.Engine.CrossChainCostUSD,
		},
		a.cfg.Engine.ReferenceAmountUSD,
		a.cfg.Engine.ProjectionDays,
		a.cfg.Engine.SnapshotMaxAge.Duration,
		logger,
	)
	eng.validator = guardrail.NewValidator(
		deps.Registry, deps.Reader, deps.Cooldowns,
		a.cfg.Engine.CooldownTTL.Duration,
		a.cfg.Engine.MinProfitUSD, a.cfg.Engine.ProjectionDays,
		logger,
	)

	if deps.Writer == nil {
		return eng
	}

	if a.cfg.Engine.RecordAPYs {
		eng.recorder = collector.NewRecorder(deps.Writer, logger)
	}
	eng.watcher = executor.NewCompletionWatcher(deps.Outcomes, a.cfg.Engine.BridgeTimeout.Duration, logger)
	eng.executor = executor.New(deps.Writer, deps.Outcomes, deps.Cooldowns, eng.watcher, logger)
	eng.scheduler = scheduler.New(
		scheduler.Config{
			CycleInterval: a.cfg.Engine.CycleInterval.Duration,
			UserPacing:    a.cfg.Engine.UserPacing.Duration,
			MinGainBps:    a.cfg.Engine.MinGainBps,
			RecordAPYs:    a.cfg.Engine.RecordAPYs,
			UserLockTTL:   a.cfg.Engine.UserLockTTL.Duration,
			Users:         a.engineUsers(),
		},
		deps.Registry,
		eng.collector,
		eng.recorder,
		eng.finder,
		eng.validator,
		eng.executor,
		deps.Reader,
		deps.Locks,
		deps.EngineNotifier,
		logger,
	)

	return eng
}

// engineUsers parses the configured user list, dropping malformed entries
// with a warning rather than refusing to start.
func (a *App) engineUsers() []common.Address {
	users := make([]common.Address, 0, len(a.cfg.Engine.Users))
	for _, raw := range a.cfg.Engine.Users {
		if !common.IsHexAddress(raw) {
			a.logger.Warn("skipping malformed user address", slog.String("address", raw))
			continue
		}
		users = append(users, common.HexToAddress(raw))
	}
	return users
}

// RunMode runs the full rebalancing loop: scheduler, completion watcher,
// event feed, bridge runner, archiver, and optionally the HTTP server.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting run mode")
	return a.runEngine(ctx, deps, a.cfg.Server.Enabled)
}

// FullMode is run mode with the HTTP server always on.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	return a.runEngine(ctx, deps, true)
}

func (a *App) runEngine(ctx context.Context, deps *Dependencies, withServer bool) error {
	g, ctx := errgroup.WithContext(ctx)

	eng := a.buildEngine(deps)

	// Re-register outcomes that were mid-bridge when the last instance went
	// down, before any event can arrive for them.
	if err := eng.watcher.Resume(ctx); err != nil {
		a.logger.WarnContext(ctx, "bridge resume failed, stuck outcomes stay in bridging",
			slog.String("error", err.Error()),
		)
	}

	g.Go(func() error {
		return eng.watcher.Run(ctx)
	})
	g.Go(func() error {
		return eng.scheduler.Run(ctx)
	})

	a.startEventFeed(ctx, g, deps, eng.watcher)

	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx, a.cfg.S3.ArchiveInterval.Duration)
		})
	}

	if withServer {
		svc := a.buildService(deps, eng)
		a.startHTTPServer(ctx, g, svc)
	}

	return g.Wait()
}

// OnceMode runs exactly one decision cycle and exits. Cross-chain outcomes it
// starts are left in bridging; the next run or events mode picks them up.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting once mode")

	eng := a.buildEngine(deps)
	summary, err := eng.scheduler.RunCycle(ctx)
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "cycle finished",
		slog.Int("users", summary.Users),
		slog.Int("executed", summary.Executed),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped_not_profitable", summary.SkippedNotProfitable),
		slog.Int("skipped_guardrail", summary.SkippedGuardrail),
		slog.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return nil
}

// MonitorMode runs the read-only surface: a periodic snapshot loop that logs
// the current opportunity ranking, plus the HTTP API. No transactions are
// submitted.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	eng := a.buildEngine(deps)
	svc := a.buildService(deps, eng)

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Engine.CycleInterval.Duration)
		defer ticker.Stop()
		for {
			opps, err := svc.Opportunities(ctx, 0)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.logger.WarnContext(ctx, "snapshot pass failed", slog.String("error", err.Error()))
			} else {
				a.logOpportunities(ctx, opps)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})

	// The HTTP server is the point of monitor mode; it is always started.
	a.startHTTPServer(ctx, g, svc)

	return g.Wait()
}

// EventsMode runs only the push-based side: vault event subscriptions, the
// completion watcher, and the bridge runner. Useful as a sidecar next to a
// once-mode cron.
func (a *App) EventsMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting events mode")

	g, ctx := errgroup.WithContext(ctx)

	logger := slog.Default()
	watcher := executor.NewCompletionWatcher(deps.Outcomes, a.cfg.Engine.BridgeTimeout.Duration, logger)
	if err := watcher.Resume(ctx); err != nil {
		a.logger.WarnContext(ctx, "bridge resume failed, stuck outcomes stay in bridging",
			slog.String("error", err.Error()),
		)
	}

	g.Go(func() error {
		return watcher.Run(ctx)
	})

	a.startEventFeed(ctx, g, deps, watcher)

	return g.Wait()
}

// ServerMode serves the HTTP API alone: history, in-flight bridges, and
// fresh opportunity reads. Cycle triggering reports an error in this mode.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	eng := a.buildEngine(deps)
	svc := a.buildService(deps, eng)
	a.startHTTPServer(ctx, g, svc)

	return g.Wait()
}

// startEventFeed wires the vault event subscriptions into the watcher and,
// when the bridge relay is enabled, the bridge runner.
func (a *App) startEventFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies, watcher *executor.CompletionWatcher) {
	logger := slog.Default()

	var onInitiated eventfeed.InitiatedHandler
	if a.cfg.Bridge.Enabled {
		relay := bridge.NewClient(a.cfg.Bridge.WSURL, logger)
		runner := bridge.NewRunner(relay, deps.Registry, watcher, deps.EngineNotifier, logger)
		onInitiated = runner.HandleInitiated
	}

	onCompleted := func(ctx context.Context, ev domain.RebalanceCompletedEvent) {
		watcher.NotifyCompleted(ctx, ev)
		deps.EngineNotifier.BridgeCompleted(ctx, ev)
	}

	feed := eventfeed.New(deps.Registry, onInitiated, onCompleted, logger)
	g.Go(func() error {
		return feed.Run(ctx)
	})
}

func (a *App) buildService(deps *Dependencies, eng *engine) *service.EngineService {
	return service.NewEngineService(
		eng.collector,
		eng.finder,
		eng.scheduler,
		deps.Outcomes,
		a.cfg.Engine.MinGainBps,
		slog.Default(),
	)
}

// startHTTPServer adds the API server and its graceful shutdown to the group.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, svc *service.EngineService) {
	logger := slog.Default()

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		},
		server.Handlers{
			Health:        handler.NewHealthHandler(logger),
			Opportunities: handler.NewOpportunityHandler(svc, logger),
			Outcomes:      handler.NewOutcomeHandler(svc, logger),
			Cycle:         handler.NewCycleHandler(svc, logger),
		},
		logger,
	)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

func (a *App) logOpportunities(ctx context.Context, opps []domain.YieldOpportunity) {
	if len(opps) == 0 {
		a.logger.InfoContext(ctx, "no opportunities above threshold")
		return
	}
	best := opps[0]
	a.logger.InfoContext(ctx, "opportunity ranking refreshed",
		slog.Int("count", len(opps)),
		slog.Uint64("best_src_chain", best.Source.ChainID),
		slog.Uint64("best_src_protocol", best.Source.ProtocolID),
		slog.Uint64("best_dst_chain", best.Dest.ChainID),
		slog.Uint64("best_dst_protocol", best.Dest.ProtocolID),
		slog.Int64("best_gain_bps", best.GainBps),
		slog.Bool("cross_chain", best.CrossChain),
	)
}
