// Package guardrail enforces the user's on-chain safety limits over a
// proposed rebalance. Checks run in a fixed order and the first failure
// wins, so a rejection reason always means everything before it passed.
package guardrail

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
	"github.com/chameleonfi/chameleon-bot/internal/registry"
)

const (
	bpsDenominator = 10_000
	daysPerYear    = 365
)

// Validator checks one decision against guardrails, cooldown, and
// profitability. Guardrails are re-read from the vault on every call; a
// value cached from an earlier cycle could miss a user tightening their
// limits.
type Validator struct {
	reg            *registry.Registry
	reader         domain.ChainReader
	cooldowns      domain.CooldownCache
	cooldownTTL    time.Duration
	minProfitUSD   int64 // micro-USD
	projectionDays int64
	logger         *slog.Logger
}

// NewValidator builds a Validator. cooldowns may be nil, in which case every
// cooldown check goes straight to the chain; cooldownTTL must match the
// cache's entry lifetime.
func NewValidator(reg *registry.Registry, reader domain.ChainReader, cooldowns domain.CooldownCache, cooldownTTL time.Duration, minProfitUSD, projectionDays int64, logger *slog.Logger) *Validator {
	return &Validator{
		reg:            reg,
		reader:         reader,
		cooldowns:      cooldowns,
		cooldownTTL:    cooldownTTL,
		minProfitUSD:   minProfitUSD,
		projectionDays: projectionDays,
		logger:         logger.With("component", "guardrail"),
	}
}

// Validate runs the full check sequence for d and returns the verdict. The
// error return is reserved for infrastructure failures (an unreachable RPC,
// a malformed response); those mean "could not decide", never "rejected",
// and the caller must skip execution without recording a verdict.
//
// Check order: automation opt-in, user minimum gain, user gas ceiling,
// on-chain cooldown, profitability at the actual position size.
func (v *Validator) Validate(ctx context.Context, d domain.RebalanceDecision) (domain.Verdict, error) {
	srcChain, ok := v.reg.Chain(d.SourceChainID)
	if !ok || !srcChain.HasVault {
		return domain.Verdict{}, fmt.Errorf("guardrail: source chain %d: %w", d.SourceChainID, domain.ErrChainUnknown)
	}
	if a, ok := v.reg.Adapter(domain.ProtocolKey{ChainID: d.DestChainID, ProtocolID: d.DestProtocolID}); !ok || !a.Deployed {
		return domain.Verdict{}, fmt.Errorf("guardrail: destination adapter (%d, %d): %w",
			d.DestChainID, d.DestProtocolID, domain.ErrNotDeployed)
	}

	g, err := v.reader.Guardrails(ctx, d.SourceChainID, srcChain.Vault, d.User)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("guardrail: reading guardrails: %w", err)
	}

	if !g.AutoRebalance {
		return reject(domain.ReasonAutomationDisabled, "user has auto-rebalance disabled"), nil
	}

	if d.MinAPYGainBps < g.MinAPYDiffBps {
		return reject(domain.ReasonGainBelowMinimum,
			fmt.Sprintf("apy gain %d bps below user minimum %d bps", d.MinAPYGainBps, g.MinAPYDiffBps)), nil
	}

	if d.EstimatedCostUSD > g.GasCeilingUSD {
		return reject(domain.ReasonGasAboveCeiling,
			fmt.Sprintf("estimated cost $%s exceeds user ceiling $%s", usd(d.EstimatedCostUSD), usd(g.GasCeilingUSD))), nil
	}

	cooldown, err := v.checkCooldown(ctx, d)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("guardrail: cooldown check: %w", err)
	}
	if cooldown != nil {
		return *cooldown, nil
	}

	if net := v.netProfitUSD(d); net < v.minProfitUSD {
		return reject(domain.ReasonNotProfitable,
			fmt.Sprintf("net profit $%s below minimum $%s", usd(net), usd(v.minProfitUSD))), nil
	}

	return domain.Verdict{Valid: true, Reason: domain.ReasonOK, Detail: "all checks passed"}, nil
}

// cooldownVerifyMargin is how close to expiry a cached cooldown entry may
// get before the contract is asked anyway. Inside the margin, a shortened
// contract-side cooldown would otherwise stay masked until the entry dies.
const cooldownVerifyMargin = 5 * time.Minute

// checkCooldown consults the cache as a fast path and the automation
// contract as the authority. A nil verdict with nil error means the
// cooldown has elapsed. A fresh cache hit rejects without an RPC; a near
// expiry hit, a cache miss, or a cache error falls through to the chain.
func (v *Validator) checkCooldown(ctx context.Context, d domain.RebalanceDecision) (*domain.Verdict, error) {
	if v.cooldowns != nil {
		if at, err := v.cooldowns.LastRebalance(ctx, d.User, d.SourceChainID); err == nil {
			if age := time.Since(at); age < v.cooldownTTL-cooldownVerifyMargin {
				verdict := reject(domain.ReasonCooldownActive,
					fmt.Sprintf("rebalanced %s ago on chain %d", age.Round(time.Second), d.SourceChainID))
				return &verdict, nil
			}
		}
	}

	allowed, remaining, err := v.reader.CanRebalance(ctx, d.SourceChainID, d.User)
	if err != nil {
		return nil, err
	}
	if !allowed {
		verdict := reject(domain.ReasonCooldownActive,
			fmt.Sprintf("cooldown active, %s remaining", remaining.Round(time.Second)))
		return &verdict, nil
	}
	return nil, nil
}

// netProfitUSD projects the yield the move earns on the actual position over
// the projection window, minus the estimated cost. Amounts are asset-native
// units of a six-decimal stable asset, so they double as micro-USD.
func (v *Validator) netProfitUSD(d domain.RebalanceDecision) int64 {
	if d.Amount == nil || d.Amount.Sign() <= 0 {
		return -d.EstimatedCostUSD
	}

	yield := new(big.Int).Mul(d.Amount, big.NewInt(d.MinAPYGainBps))
	yield.Mul(yield, big.NewInt(v.projectionDays))
	yield.Quo(yield, big.NewInt(bpsDenominator*daysPerYear))

	net := new(big.Int).Sub(yield, big.NewInt(d.EstimatedCostUSD))
	if !net.IsInt64() {
		// A profit beyond int64 micro-USD clears any plausible minimum.
		return int64(1) << 62
	}
	return net.Int64()
}

func reject(reason domain.RejectReason, detail string) domain.Verdict {
	return domain.Verdict{Valid: false, Reason: reason, Detail: detail}
}

func usd(micro int64) string {
	return fmt.Sprintf("%.2f", float64(micro)/1e6)
}
