package domain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDefaultGuardrailsKeepAutomationOff(t *testing.T) {
	user := common.HexToAddress("0x7777777777777777777777777777777777777777")
	g := DefaultGuardrails(user)

	if g.AutoRebalance {
		t.Fatal("defaults must not opt a user into automation")
	}
	if g.User != user {
		t.Fatalf("user = %s", g.User.Hex())
	}
	if g.GasCeilingUSD <= 0 || g.MinAPYDiffBps <= 0 || g.MaxSlippageBps <= 0 {
		t.Fatalf("limits must be positive: %+v", g)
	}
}
