package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
)

const timeRound = 100 * time.Millisecond

// Event type names used for notification filtering.
const (
	EventRebalanceExecuted = "rebalance_executed"
	EventBridgeCompleted   = "bridge_completed"
	EventBridgeFailed      = "bridge_failed"
	EventCycleFinished     = "cycle_finished"
)

// EngineNotifier formats engine milestones into operator notifications. It
// satisfies the scheduler's Notifier interface.
type EngineNotifier struct {
	n *Notifier
}

// NewEngineNotifier wraps a Notifier with engine-specific formatting.
func NewEngineNotifier(n *Notifier) *EngineNotifier {
	return &EngineNotifier{n: n}
}

// RebalanceExecuted announces one confirmed rebalance.
func (e *EngineNotifier) RebalanceExecuted(ctx context.Context, out domain.ExecutionOutcome) {
	kind := "same-chain"
	if out.CrossChain {
		kind = "cross-chain"
	}
	title := fmt.Sprintf("Rebalance executed (%s)", kind)
	msg := fmt.Sprintf(
		"user: %s\nroute: chain %d proto %d -> chain %d proto %d\namount: %s\ngain: %d bps\ntx: %s",
		out.User.Hex(),
		out.SourceChainID, out.SourceProtocolID,
		out.DestChainID, out.DestProtocolID,
		out.Amount, out.GainBps, out.TxHash,
	)
	_ = e.n.Notify(ctx, EventRebalanceExecuted, title, msg)
}

// BridgeCompleted announces a cross-chain leg landing on its destination.
func (e *EngineNotifier) BridgeCompleted(ctx context.Context, ev domain.RebalanceCompletedEvent) {
	title := "Cross-chain rebalance completed"
	msg := fmt.Sprintf(
		"user: %s\nroute: chain %d -> chain %d\namount: %s\nrealized gain: %d bps\ntx: %s",
		ev.User.Hex(), ev.SrcChainID, ev.DstChainID, ev.Amount, ev.GainBps, ev.TxHash.Hex(),
	)
	_ = e.n.Notify(ctx, EventBridgeCompleted, title, msg)
}

// BridgeFailed announces a failed bridge leg. This one always goes out; a
// stuck user position is never something to filter away.
func (e *EngineNotifier) BridgeFailed(ctx context.Context, user string, srcChain, dstChain uint64, detail string) {
	title := "Bridge leg FAILED"
	msg := fmt.Sprintf("user: %s\nroute: chain %d -> chain %d\ndetail: %s", user, srcChain, dstChain, detail)
	_ = e.n.NotifyAll(ctx, title, msg)
}

// CycleFinished summarizes one scheduler cycle.
func (e *EngineNotifier) CycleFinished(ctx context.Context, s domain.CycleSummary) {
	if s.Executed == 0 && s.Failed == 0 {
		// Quiet cycles stay quiet.
		return
	}
	title := "Rebalance cycle finished"
	msg := fmt.Sprintf(
		"users: %d\nexecuted: %d\nfailed: %d\nskipped (unprofitable): %d\nskipped (guardrail): %d\nelapsed: %s",
		s.Users, s.Executed, s.Failed, s.SkippedNotProfitable, s.SkippedGuardrail,
		s.FinishedAt.Sub(s.StartedAt).Round(timeRound),
	)
	_ = e.n.Notify(ctx, EventCycleFinished, title, msg)
}
