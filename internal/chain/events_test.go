package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var eventUser = common.HexToAddress("0x9999999999999999999999999999999999999999")

func initiatedLog(t *testing.T) types.Log {
	t.Helper()
	data, err := vaultABI.Events["CrossChainRebalanceInitiated"].Inputs.NonIndexed().Pack(
		uint8(1),
		uint8(2),
		big.NewInt(5_000_000_000),
		big.NewInt(84532),
		big.NewInt(11155420),
		common.HexToAddress("0x0000000000000000000000000000000000000042"),
	)
	if err != nil {
		t.Fatalf("packing event data: %v", err)
	}
	return types.Log{
		Topics:      []common.Hash{TopicRebalanceInitiated, common.BytesToHash(eventUser.Bytes())},
		Data:        data,
		TxHash:      common.HexToHash("0xabc"),
		BlockNumber: 1_234_567,
	}
}

func rebalancedLog(t *testing.T) types.Log {
	t.Helper()
	data, err := vaultABI.Events["Rebalanced"].Inputs.NonIndexed().Pack(
		uint8(1),
		uint8(3),
		big.NewInt(5_000_000_000),
		big.NewInt(84532),
		big.NewInt(11155420),
		big.NewInt(230),
	)
	if err != nil {
		t.Fatalf("packing event data: %v", err)
	}
	return types.Log{
		Topics: []common.Hash{TopicRebalanced, common.BytesToHash(eventUser.Bytes())},
		Data:   data,
		TxHash: common.HexToHash("0xdef"),
	}
}

func TestParseRebalanceInitiated(t *testing.T) {
	ev, err := ParseRebalanceInitiated(84532, initiatedLog(t))
	if err != nil {
		t.Fatalf("ParseRebalanceInitiated: %v", err)
	}

	if ev.ChainID != 84532 || ev.User != eventUser {
		t.Fatalf("wrong identity fields: %+v", ev)
	}
	if ev.FromProtocol != 1 || ev.ToProtocol != 2 {
		t.Fatalf("wrong protocol pair: %+v", ev)
	}
	if ev.Amount.Cmp(big.NewInt(5_000_000_000)) != 0 {
		t.Fatalf("amount = %s", ev.Amount)
	}
	if ev.SrcChainID != 84532 || ev.DstChainID != 11155420 {
		t.Fatalf("wrong route: %+v", ev)
	}
	if ev.BlockNumber != 1_234_567 {
		t.Fatalf("block = %d", ev.BlockNumber)
	}
}

func TestParseRebalanced(t *testing.T) {
	ev, err := ParseRebalanced(11155420, rebalancedLog(t))
	if err != nil {
		t.Fatalf("ParseRebalanced: %v", err)
	}

	if ev.ChainID != 11155420 || ev.User != eventUser {
		t.Fatalf("wrong identity fields: %+v", ev)
	}
	if ev.FromProtocol != 1 || ev.ToProtocol != 3 {
		t.Fatalf("wrong protocol pair: %+v", ev)
	}
	if ev.GainBps != 230 {
		t.Fatalf("gain = %d, want 230", ev.GainBps)
	}
	if ev.SrcChainID != 84532 || ev.DstChainID != 11155420 {
		t.Fatalf("wrong route: %+v", ev)
	}
}

func TestParseRejectsForeignLogs(t *testing.T) {
	lg := initiatedLog(t)

	if _, err := ParseRebalanced(1, lg); err == nil {
		t.Fatal("Rebalanced parser accepted an initiation log")
	}

	lg.Topics = lg.Topics[:1]
	if _, err := ParseRebalanceInitiated(1, lg); err == nil {
		t.Fatal("parser accepted a log without the indexed user topic")
	}

	lg.Topics = nil
	if _, err := ParseRebalanceInitiated(1, lg); err == nil {
		t.Fatal("parser accepted a topicless log")
	}
}
