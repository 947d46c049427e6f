package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
)

// receiptPollInterval is how often WaitReceipt re-queries a pending hash.
const receiptPollInterval = 2 * time.Second

// Writer implements domain.ChainWriter. All state-changing calls go through
// the automation contract, signed by the operator key.
type Writer struct {
	clients *Clients
	key     *ecdsa.PrivateKey
	from    common.Address
	logger  *slog.Logger
}

var _ domain.ChainWriter = (*Writer)(nil)

// NewWriter builds a Writer signing with key.
func NewWriter(clients *Clients, key *ecdsa.PrivateKey, logger *slog.Logger) *Writer {
	return &Writer{
		clients: clients,
		key:     key,
		from:    ethcrypto.PubkeyToAddress(key.PublicKey),
		logger:  logger.With("component", "chain_writer"),
	}
}

// From returns the operator address transactions are signed from.
func (w *Writer) From() common.Address { return w.from }

// transact packs method, estimates gas, signs an EIP-1559 transaction, and
// broadcasts it. The nonce is taken from the pending pool so back-to-back
// submissions on one chain do not collide.
func (w *Writer) transact(ctx context.Context, chainID uint64, method string, args ...any) (domain.PendingTx, error) {
	client, err := w.clients.Client(chainID)
	if err != nil {
		return domain.PendingTx{}, err
	}

	data, err := automationABI.Pack(method, args...)
	if err != nil {
		return domain.PendingTx{}, fmt.Errorf("chain: pack %s: %w", method, err)
	}

	nonce, err := client.PendingNonceAt(ctx, w.from)
	if err != nil {
		return domain.PendingTx{}, fmt.Errorf("chain: pending nonce on chain %d: %w", chainID, err)
	}

	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return domain.PendingTx{}, fmt.Errorf("chain: suggest gas tip on chain %d: %w", chainID, err)
	}
	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return domain.PendingTx{}, fmt.Errorf("chain: latest header on chain %d: %w", chainID, err)
	}
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	to := w.clients.automation
	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From: w.from,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return domain.PendingTx{}, fmt.Errorf("chain: estimate gas for %s on chain %d: %w", method, chainID, err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(chainID),
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Data:      data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(new(big.Int).SetUint64(chainID)), w.key)
	if err != nil {
		return domain.PendingTx{}, fmt.Errorf("chain: sign %s: %w", method, err)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return domain.PendingTx{}, fmt.Errorf("chain: send %s on chain %d: %w", method, chainID, err)
	}

	w.logger.Info("transaction submitted",
		"method", method,
		"chain_id", chainID,
		"tx_hash", signed.Hash().Hex(),
		"nonce", nonce,
		"gas_limit", gasLimit,
	)

	return domain.PendingTx{ChainID: chainID, Hash: signed.Hash()}, nil
}

func (w *Writer) SubmitSameChainRebalance(ctx context.Context, d domain.RebalanceDecision) (domain.PendingTx, error) {
	return w.transact(ctx, d.SourceChainID, "executeSameChainRebalance",
		new(big.Int).SetUint64(d.SourceChainID),
		d.User,
		new(big.Int).SetUint64(d.SourceProtocolID),
		new(big.Int).SetUint64(d.DestProtocolID),
		d.Amount,
		big.NewInt(d.MinAPYGainBps),
		big.NewInt(d.EstimatedCostUSD),
	)
}

func (w *Writer) SubmitCrossChainRebalance(ctx context.Context, d domain.RebalanceDecision) (domain.PendingTx, error) {
	return w.transact(ctx, d.SourceChainID, "executeCrossChainRebalance",
		new(big.Int).SetUint64(d.SourceChainID),
		new(big.Int).SetUint64(d.DestChainID),
		d.User,
		new(big.Int).SetUint64(d.SourceProtocolID),
		new(big.Int).SetUint64(d.DestProtocolID),
		d.Amount,
		big.NewInt(d.MinAPYGainBps),
		big.NewInt(d.EstimatedCostUSD),
		d.DestAdapter,
	)
}

func (w *Writer) RecordAPY(ctx context.Context, chainID, protocolID uint64, apyBps int64) (domain.PendingTx, error) {
	return w.transact(ctx, chainID, "recordAPY",
		new(big.Int).SetUint64(chainID),
		new(big.Int).SetUint64(protocolID),
		big.NewInt(apyBps),
	)
}

// WaitReceipt polls for the receipt of tx until it lands or ctx expires.
func (w *Writer) WaitReceipt(ctx context.Context, tx domain.PendingTx) (domain.Receipt, error) {
	client, err := w.clients.Client(tx.ChainID)
	if err != nil {
		return domain.Receipt{}, err
	}

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, tx.Hash)
		if err == nil {
			return domain.Receipt{
				TxHash:      receipt.TxHash,
				BlockNumber: receipt.BlockNumber.Uint64(),
				GasUsed:     receipt.GasUsed,
				Success:     receipt.Status == types.ReceiptStatusSuccessful,
			}, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return domain.Receipt{}, fmt.Errorf("chain: receipt %s on chain %d: %w", tx.Hash.Hex(), tx.ChainID, err)
		}

		select {
		case <-ctx.Done():
			return domain.Receipt{}, fmt.Errorf("chain: waiting for %s: %w", tx.Hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
