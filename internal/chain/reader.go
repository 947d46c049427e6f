package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
)

// Reader implements domain.ChainReader over raw eth_call against the latest
// block.
type Reader struct {
	clients *Clients
}

var _ domain.ChainReader = (*Reader)(nil)

// NewReader builds a Reader on top of an already connected client set.
func NewReader(clients *Clients) *Reader {
	return &Reader{clients: clients}
}

// call packs a method, executes eth_call, and unpacks the return values.
func (r *Reader) call(ctx context.Context, chainID uint64, contractABI abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	client, err := r.clients.Client(chainID)
	if err != nil {
		return nil, err
	}

	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}

	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s on chain %d: %w: %w", method, chainID, domain.ErrReadUnavailable, err)
	}

	values, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	return values, nil
}

// AdapterAPY reads the adapter's current yield. The contract already reports
// basis points, so the value passes through unscaled.
func (r *Reader) AdapterAPY(ctx context.Context, chainID uint64, adapter, asset common.Address) (int64, error) {
	values, err := r.call(ctx, chainID, adapterABI, adapter, "getCurrentAPY", asset)
	if err != nil {
		return 0, err
	}
	apy, err := asBigInt(values, 0)
	if err != nil {
		return 0, fmt.Errorf("chain: getCurrentAPY: %w", err)
	}
	if !apy.IsInt64() {
		return 0, fmt.Errorf("chain: getCurrentAPY: value %s out of range", apy)
	}
	return apy.Int64(), nil
}

func (r *Reader) AdapterHealthy(ctx context.Context, chainID uint64, adapter common.Address) (bool, error) {
	values, err := r.call(ctx, chainID, adapterABI, adapter, "isHealthy")
	if err != nil {
		return false, err
	}
	healthy, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("chain: isHealthy: unexpected return type %T", values[0])
	}
	return healthy, nil
}

func (r *Reader) AdapterTVL(ctx context.Context, chainID uint64, adapter, vault common.Address) (*big.Int, error) {
	values, err := r.call(ctx, chainID, adapterABI, adapter, "getBalance", vault)
	if err != nil {
		return nil, err
	}
	tvl, err := asBigInt(values, 0)
	if err != nil {
		return nil, fmt.Errorf("chain: getBalance: %w", err)
	}
	return tvl, nil
}

func (r *Reader) ProtocolBalance(ctx context.Context, chainID uint64, vault, user common.Address, protocolID uint64) (*big.Int, error) {
	values, err := r.call(ctx, chainID, vaultABI, vault, "getProtocolBalance", user, new(big.Int).SetUint64(protocolID))
	if err != nil {
		return nil, err
	}
	bal, err := asBigInt(values, 0)
	if err != nil {
		return nil, fmt.Errorf("chain: getProtocolBalance: %w", err)
	}
	return bal, nil
}

func (r *Reader) Guardrails(ctx context.Context, chainID uint64, vault, user common.Address) (domain.UserGuardrails, error) {
	values, err := r.call(ctx, chainID, vaultABI, vault, "getUserGuardrails", user)
	if err != nil {
		return domain.UserGuardrails{}, err
	}
	if len(values) != 4 {
		return domain.UserGuardrails{}, fmt.Errorf("chain: getUserGuardrails: expected 4 values, got %d", len(values))
	}

	maxSlippage, err := asBigInt(values, 0)
	if err != nil {
		return domain.UserGuardrails{}, fmt.Errorf("chain: getUserGuardrails: %w", err)
	}
	gasCeiling, err := asBigInt(values, 1)
	if err != nil {
		return domain.UserGuardrails{}, fmt.Errorf("chain: getUserGuardrails: %w", err)
	}
	minAPYDiff, err := asBigInt(values, 2)
	if err != nil {
		return domain.UserGuardrails{}, fmt.Errorf("chain: getUserGuardrails: %w", err)
	}
	auto, ok := values[3].(bool)
	if !ok {
		return domain.UserGuardrails{}, fmt.Errorf("chain: getUserGuardrails: unexpected flag type %T", values[3])
	}

	// An all-zero struct means the user never configured limits; the vault
	// falls back to its defaults, so the engine mirrors them.
	if maxSlippage.Sign() == 0 && gasCeiling.Sign() == 0 && minAPYDiff.Sign() == 0 && !auto {
		return domain.DefaultGuardrails(user), nil
	}

	return domain.UserGuardrails{
		User:           user,
		MaxSlippageBps: maxSlippage.Int64(),
		GasCeilingUSD:  gasCeiling.Int64(),
		MinAPYDiffBps:  minAPYDiff.Int64(),
		AutoRebalance:  auto,
		LastUpdated:    time.Now().UTC(),
	}, nil
}

// CanRebalance asks the automation contract whether the per-chain cooldown
// has elapsed for user. The contract's answer is authoritative; any cached
// view of the cooldown is a hint only.
func (r *Reader) CanRebalance(ctx context.Context, chainID uint64, user common.Address) (bool, time.Duration, error) {
	values, err := r.call(ctx, chainID, automationABI, r.clients.automation, "canRebalance", user, new(big.Int).SetUint64(chainID))
	if err != nil {
		return false, 0, err
	}
	if len(values) != 2 {
		return false, 0, fmt.Errorf("chain: canRebalance: expected 2 values, got %d", len(values))
	}
	allowed, ok := values[0].(bool)
	if !ok {
		return false, 0, fmt.Errorf("chain: canRebalance: unexpected flag type %T", values[0])
	}
	remaining, err := asBigInt(values, 1)
	if err != nil {
		return false, 0, fmt.Errorf("chain: canRebalance: %w", err)
	}
	return allowed, time.Duration(remaining.Int64()) * time.Second, nil
}

func asBigInt(values []any, i int) (*big.Int, error) {
	if i >= len(values) {
		return nil, fmt.Errorf("missing return value %d", i)
	}
	v, ok := values[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected return type %T at %d", values[i], i)
	}
	return v, nil
}
