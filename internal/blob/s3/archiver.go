package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
)

// archiveBatchSize bounds how many outcomes one archive object holds.
const archiveBatchSize = 5000

// Archiver moves aged-out outcome rows from the primary store into JSONL
// objects under archive/outcomes/. Rows are deleted only after their archive
// object has been uploaded, so a failed upload leaves the database intact.
type Archiver struct {
	writer    *Writer
	outcomes  domain.OutcomeStore
	retention time.Duration
	logger    *slog.Logger
}

// NewArchiver creates an Archiver that retains retention worth of history in
// the primary store.
func NewArchiver(writer *Writer, outcomes domain.OutcomeStore, retention time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    writer,
		outcomes:  outcomes,
		retention: retention,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// archivedOutcome is the JSONL schema for one archived row.
type archivedOutcome struct {
	ID               string    `json:"id"`
	DecisionID       string    `json:"decision_id"`
	User             string    `json:"user"`
	SourceChainID    uint64    `json:"source_chain_id"`
	SourceProtocolID uint64    `json:"source_protocol_id"`
	DestChainID      uint64    `json:"dest_chain_id"`
	DestProtocolID   uint64    `json:"dest_protocol_id"`
	Amount           string    `json:"amount"`
	CrossChain       bool      `json:"cross_chain"`
	Status           string    `json:"status"`
	TxHash           string    `json:"tx_hash,omitempty"`
	GasUSD           int64     `json:"gas_usd"`
	GainBps          int64     `json:"gain_bps"`
	ErrorMsg         string    `json:"error_msg,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ArchiveOnce performs one archival pass: page out everything older than the
// retention window, upload each page, then delete the archived rows. It
// returns the number of rows archived.
func (a *Archiver) ArchiveOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-a.retention)
	var total int64

	for {
		batch, err := a.outcomes.ListBefore(ctx, cutoff, archiveBatchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: listing outcomes for archive: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		buf, err := marshalJSONL(batch)
		if err != nil {
			return total, fmt.Errorf("s3blob: marshalling archive batch: %w", err)
		}

		path := archivePath(batch[len(batch)-1].CreatedAt, total)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return total, fmt.Errorf("s3blob: uploading archive batch: %w", err)
		}

		// Delete only up to the last archived row, not the full cutoff, so
		// rows added between the list and the delete survive.
		batchCutoff := batch[len(batch)-1].CreatedAt.Add(time.Millisecond)
		deleted, err := a.outcomes.DeleteBefore(ctx, batchCutoff)
		if err != nil {
			return total, fmt.Errorf("s3blob: pruning archived outcomes: %w", err)
		}

		total += deleted
		a.logger.Info("outcome batch archived",
			slog.String("path", path),
			slog.Int("rows", len(batch)),
			slog.Int64("deleted", deleted),
		)

		if len(batch) < archiveBatchSize {
			break
		}
	}

	return total, nil
}

// Run archives on the given interval until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.ArchiveOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.logger.Error("archival pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

func marshalJSONL(outcomes []domain.ExecutionOutcome) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, out := range outcomes {
		amount := "0"
		if out.Amount != nil {
			amount = out.Amount.String()
		}
		row := archivedOutcome{
			ID:               out.ID,
			DecisionID:       out.DecisionID,
			User:             out.User.Hex(),
			SourceChainID:    out.SourceChainID,
			SourceProtocolID: out.SourceProtocolID,
			DestChainID:      out.DestChainID,
			DestProtocolID:   out.DestProtocolID,
			Amount:           amount,
			CrossChain:       out.CrossChain,
			Status:           string(out.Status),
			TxHash:           out.TxHash,
			GasUSD:           out.GasUSD,
			GainBps:          out.GainBps,
			ErrorMsg:         out.ErrorMsg,
			CreatedAt:        out.CreatedAt,
			UpdatedAt:        out.UpdatedAt,
		}
		if err := enc.Encode(row); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func archivePath(last time.Time, offset int64) string {
	return fmt.Sprintf("archive/outcomes/%s-%d.jsonl", last.UTC().Format("2006-01-02T15-04-05"), offset)
}
