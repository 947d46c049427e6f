package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// UserGuardrails are the user-configured safety limits the engine must never
// cross. They live on the vault contract and are mutated only by the user;
// the engine reads them immediately before every validation.
type UserGuardrails struct {
	User           common.Address
	MaxSlippageBps int64
	GasCeilingUSD  int64 // micro-USD (1e6 = $1)
	MinAPYDiffBps  int64
	AutoRebalance  bool
	LastUpdated    time.Time
}

// DefaultGuardrails returns the safe defaults applied when a user has never
// configured limits: automation off, so nothing moves without opt-in.
func DefaultGuardrails(user common.Address) UserGuardrails {
	return UserGuardrails{
		User:           user,
		MaxSlippageBps: 100,
		GasCeilingUSD:  5_000_000, // $5
		MinAPYDiffBps:  50,
		AutoRebalance:  false,
	}
}
