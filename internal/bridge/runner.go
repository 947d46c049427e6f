package bridge

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
	"github.com/chameleonfi/chameleon-bot/internal/registry"
)

// Observer receives terminal bridge failures so the matching outcome can be
// marked bridge-failed.
type Observer interface {
	NotifyBridgeError(ctx context.Context, user common.Address, srcChain, dstChain uint64, detail string)
}

// FailureNotifier pushes bridge failures to operators.
type FailureNotifier interface {
	BridgeFailed(ctx context.Context, user string, srcChain, dstChain uint64, detail string)
}

// Runner drives the off-chain leg of a cross-chain rebalance. When a source
// vault reports initiation, it asks the relay to move the funds and deliver
// them to the destination vault. Completion is confirmed by the destination
// vault's own event, not by the relay; the relay's error stream is only used
// to fail fast.
type Runner struct {
	bridger  domain.Bridger
	reg      *registry.Registry
	observer Observer
	notifier FailureNotifier
	logger   *slog.Logger
}

// NewRunner creates a Runner. observer and notifier may be nil.
func NewRunner(bridger domain.Bridger, reg *registry.Registry, observer Observer, notifier FailureNotifier, logger *slog.Logger) *Runner {
	return &Runner{
		bridger:  bridger,
		reg:      reg,
		observer: observer,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "bridge_runner")),
	}
}

// HandleInitiated starts the bridge leg for one initiation event. It returns
// immediately; progress is consumed on a background goroutine because bridge
// transfers run for minutes.
func (r *Runner) HandleInitiated(ctx context.Context, ev domain.RebalanceInitiatedEvent) {
	srcAdapter, ok := r.reg.Adapter(domain.ProtocolKey{ChainID: ev.SrcChainID, ProtocolID: ev.FromProtocol})
	if !ok {
		r.logger.Warn("initiation event references unknown source adapter",
			slog.Uint64("chain_id", ev.SrcChainID),
			slog.Uint64("protocol_id", ev.FromProtocol),
		)
		return
	}
	dstChain, ok := r.reg.Chain(ev.DstChainID)
	if !ok || !dstChain.HasVault {
		r.logger.Warn("initiation event references chain without a vault",
			slog.Uint64("dst_chain", ev.DstChainID),
		)
		return
	}

	req := domain.BridgeRequest{
		Token:        srcAdapter.Asset,
		Amount:       ev.Amount,
		SrcChainID:   ev.SrcChainID,
		DestChainID:  ev.DstChainID,
		DestContract: dstChain.Vault,
	}

	progress, err := r.bridger.BridgeAndExecute(ctx, req)
	if err != nil {
		r.fail(ctx, ev, err.Error())
		return
	}

	go r.consume(ctx, ev, progress)
}

// consume drains one transfer's progress stream. A completed notification is
// logged and otherwise ignored: the destination vault event is what promotes
// the outcome.
func (r *Runner) consume(ctx context.Context, ev domain.RebalanceInitiatedEvent, progress <-chan domain.BridgeProgress) {
	for p := range progress {
		switch p.Kind {
		case domain.BridgeError:
			r.fail(ctx, ev, p.Error)
			return
		case domain.BridgeCompleted:
			r.logger.Info("relay reports transfer complete, awaiting destination vault event",
				slog.String("user", ev.User.Hex()),
				slog.Uint64("dst_chain", ev.DstChainID),
				slog.String("relay_tx", p.TxHash),
			)
		case domain.BridgeStepComplete:
			r.logger.Debug("bridge step complete",
				slog.String("user", ev.User.Hex()),
				slog.String("step", p.Step),
			)
		}
	}
}

func (r *Runner) fail(ctx context.Context, ev domain.RebalanceInitiatedEvent, detail string) {
	r.logger.Error("bridge leg failed",
		slog.String("user", ev.User.Hex()),
		slog.Uint64("src_chain", ev.SrcChainID),
		slog.Uint64("dst_chain", ev.DstChainID),
		slog.String("detail", detail),
	)
	if r.observer != nil {
		r.observer.NotifyBridgeError(ctx, ev.User, ev.SrcChainID, ev.DstChainID, detail)
	}
	if r.notifier != nil {
		r.notifier.BridgeFailed(ctx, ev.User.Hex(), ev.SrcChainID, ev.DstChainID, detail)
	}
}
