package collector

import (
	"context"
	"log/slog"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
)

// Recorder pushes observed APYs into the automation contract's on-chain
// history. Recording is best effort; a failed submission never blocks the
// decision cycle.
type Recorder struct {
	writer domain.ChainWriter
	logger *slog.Logger
}

// NewRecorder builds a Recorder on top of a ChainWriter.
func NewRecorder(writer domain.ChainWriter, logger *slog.Logger) *Recorder {
	return &Recorder{
		writer: writer,
		logger: logger.With("component", "apy_recorder"),
	}
}

// Publish submits recordAPY for every healthy snapshot in the set and
// returns how many submissions went out. Unhealthy snapshots carry no
// trustworthy yield and are skipped.
func (r *Recorder) Publish(ctx context.Context, set *domain.SnapshotSet) int {
	published := 0
	for key, snap := range set.Snapshots {
		if !snap.Healthy {
			continue
		}
		if ctx.Err() != nil {
			return published
		}

		tx, err := r.writer.RecordAPY(ctx, key.ChainID, key.ProtocolID, snap.APYBps)
		if err != nil {
			r.logger.Warn("recordAPY submission failed",
				slog.Uint64("chain_id", key.ChainID),
				slog.Uint64("protocol_id", key.ProtocolID),
				slog.String("error", err.Error()),
			)
			continue
		}
		published++
		r.logger.Debug("apy recorded on-chain",
			slog.Uint64("chain_id", key.ChainID),
			slog.Uint64("protocol_id", key.ProtocolID),
			slog.Int64("apy_bps", snap.APYBps),
			slog.String("tx_hash", tx.Hash.Hex()),
		)
	}
	return published
}
