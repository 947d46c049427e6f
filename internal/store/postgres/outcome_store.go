package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
)

// OutcomeStore implements domain.OutcomeStore using PostgreSQL.
type OutcomeStore struct {
	pool *pgxpool.Pool
}

var _ domain.OutcomeStore = (*OutcomeStore)(nil)

// NewOutcomeStore creates an OutcomeStore backed by the given pool.
func NewOutcomeStore(pool *pgxpool.Pool) *OutcomeStore {
	return &OutcomeStore{pool: pool}
}

// Create inserts a new outcome row in its pending state.
func (s *OutcomeStore) Create(ctx context.Context, out domain.ExecutionOutcome) error {
	amount := "0"
	if out.Amount != nil {
		amount = out.Amount.String()
	}

	const query = `
		INSERT INTO rebalance_outcomes (
			id, decision_id, user_address,
			source_chain_id, source_protocol_id, dest_chain_id, dest_protocol_id,
			amount, cross_chain, status, tx_hash, gas_usd, gain_bps, error_msg,
			created_at, updated_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14,
			$15, $16
		)`

	_, err := s.pool.Exec(ctx, query,
		out.ID, out.DecisionID, strings.ToLower(out.User.Hex()),
		int64(out.SourceChainID), int64(out.SourceProtocolID),
		int64(out.DestChainID), int64(out.DestProtocolID),
		amount, out.CrossChain, string(out.Status),
		out.TxHash, out.GasUSD, out.GainBps, out.ErrorMsg,
		out.CreatedAt, out.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create outcome %s: %w", out.ID, err)
	}
	return nil
}

func (s *OutcomeStore) SetSubmitted(ctx context.Context, id, txHash string) error {
	const query = `
		UPDATE rebalance_outcomes
		SET status = $1, tx_hash = $2, updated_at = NOW()
		WHERE id = $3`
	return s.update(ctx, id, query, string(domain.OutcomeSubmitted), txHash, id)
}

func (s *OutcomeStore) SetConfirmed(ctx context.Context, id string, gasUSD, gainBps int64) error {
	const query = `
		UPDATE rebalance_outcomes
		SET status = $1, gas_usd = $2, gain_bps = $3, updated_at = NOW()
		WHERE id = $4`
	return s.update(ctx, id, query, string(domain.OutcomeConfirmed), gasUSD, gainBps, id)
}

func (s *OutcomeStore) SetFailed(ctx context.Context, id, detail string) error {
	const query = `
		UPDATE rebalance_outcomes
		SET status = $1, error_msg = $2, updated_at = NOW()
		WHERE id = $3`
	return s.update(ctx, id, query, string(domain.OutcomeFailed), detail, id)
}

func (s *OutcomeStore) SetBridging(ctx context.Context, id string) error {
	const query = `
		UPDATE rebalance_outcomes
		SET status = $1, updated_at = NOW()
		WHERE id = $2`
	return s.update(ctx, id, query, string(domain.OutcomeBridging), id)
}

func (s *OutcomeStore) SetCompleted(ctx context.Context, id string, gainBps int64) error {
	const query = `
		UPDATE rebalance_outcomes
		SET status = $1, gain_bps = $2, updated_at = NOW()
		WHERE id = $3`
	return s.update(ctx, id, query, string(domain.OutcomeCompleted), gainBps, id)
}

func (s *OutcomeStore) SetBridgeFailed(ctx context.Context, id, detail string) error {
	const query = `
		UPDATE rebalance_outcomes
		SET status = $1, error_msg = $2, updated_at = NOW()
		WHERE id = $3`
	return s.update(ctx, id, query, string(domain.OutcomeBridgeFailed), detail, id)
}

func (s *OutcomeStore) update(ctx context.Context, id, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: update outcome %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const outcomeSelectCols = `
	id, decision_id, user_address,
	source_chain_id, source_protocol_id, dest_chain_id, dest_protocol_id,
	amount, cross_chain, status, tx_hash, gas_usd, gain_bps, error_msg,
	created_at, updated_at`

// GetByID returns one outcome or domain.ErrNotFound.
func (s *OutcomeStore) GetByID(ctx context.Context, id string) (domain.ExecutionOutcome, error) {
	query := `SELECT` + outcomeSelectCols + ` FROM rebalance_outcomes WHERE id = $1`
	out, err := scanOutcome(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExecutionOutcome{}, domain.ErrNotFound
		}
		return domain.ExecutionOutcome{}, fmt.Errorf("postgres: get outcome %s: %w", id, err)
	}
	return out, nil
}

// ListByUser returns the user's outcomes, newest first.
func (s *OutcomeStore) ListByUser(ctx context.Context, user common.Address, opts domain.ListOpts) ([]domain.ExecutionOutcome, error) {
	query := `SELECT` + outcomeSelectCols + ` FROM rebalance_outcomes WHERE user_address = $1`
	args := []any{strings.ToLower(user.Hex())}

	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list outcomes for %s: %w", user.Hex(), err)
	}
	defer rows.Close()
	return collectOutcomes(rows)
}

// ListByStatus returns every outcome currently in the given status, oldest
// first so resumption handles the longest-waiting legs first.
func (s *OutcomeStore) ListByStatus(ctx context.Context, status domain.OutcomeStatus) ([]domain.ExecutionOutcome, error) {
	query := `SELECT` + outcomeSelectCols + `
		FROM rebalance_outcomes WHERE status = $1 ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("postgres: list outcomes by status %s: %w", status, err)
	}
	defer rows.Close()
	return collectOutcomes(rows)
}

// ListBefore returns up to limit outcomes created before cutoff, oldest
// first. The archiver drains history through this in pages.
func (s *OutcomeStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ExecutionOutcome, error) {
	query := `SELECT` + outcomeSelectCols + `
		FROM rebalance_outcomes WHERE created_at < $1 ORDER BY created_at ASC LIMIT $2`
	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list outcomes before %s: %w", cutoff, err)
	}
	defer rows.Close()
	return collectOutcomes(rows)
}

// DeleteBefore removes outcomes created before cutoff and reports how many
// rows went away.
func (s *OutcomeStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM rebalance_outcomes WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete outcomes before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutcome(row rowScanner) (domain.ExecutionOutcome, error) {
	var (
		out       domain.ExecutionOutcome
		userHex   string
		srcChain  int64
		srcProto  int64
		dstChain  int64
		dstProto  int64
		amountStr string
		status    string
	)
	err := row.Scan(
		&out.ID, &out.DecisionID, &userHex,
		&srcChain, &srcProto, &dstChain, &dstProto,
		&amountStr, &out.CrossChain, &status,
		&out.TxHash, &out.GasUSD, &out.GainBps, &out.ErrorMsg,
		&out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return domain.ExecutionOutcome{}, err
	}

	out.User = common.HexToAddress(userHex)
	out.SourceChainID = uint64(srcChain)
	out.SourceProtocolID = uint64(srcProto)
	out.DestChainID = uint64(dstChain)
	out.DestProtocolID = uint64(dstProto)
	out.Status = domain.OutcomeStatus(status)

	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok {
		return domain.ExecutionOutcome{}, fmt.Errorf("malformed amount %q for outcome %s", amountStr, out.ID)
	}
	out.Amount = amount
	return out, nil
}

func collectOutcomes(rows pgx.Rows) ([]domain.ExecutionOutcome, error) {
	var out []domain.ExecutionOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan outcome: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate outcomes: %w", err)
	}
	return out, nil
}
