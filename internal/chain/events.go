package chain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
)

// Topic hashes for the two vault events the engine observes.
var (
	TopicRebalanceInitiated = vaultABI.Events["CrossChainRebalanceInitiated"].ID
	TopicRebalanced         = vaultABI.Events["Rebalanced"].ID
)

// ParseRebalanceInitiated decodes a CrossChainRebalanceInitiated log.
func ParseRebalanceInitiated(chainID uint64, lg types.Log) (domain.RebalanceInitiatedEvent, error) {
	if len(lg.Topics) < 2 || lg.Topics[0] != TopicRebalanceInitiated {
		return domain.RebalanceInitiatedEvent{}, fmt.Errorf("chain: log is not CrossChainRebalanceInitiated")
	}

	values, err := vaultABI.Unpack("CrossChainRebalanceInitiated", lg.Data)
	if err != nil {
		return domain.RebalanceInitiatedEvent{}, fmt.Errorf("chain: unpack CrossChainRebalanceInitiated: %w", err)
	}
	if len(values) != 6 {
		return domain.RebalanceInitiatedEvent{}, fmt.Errorf("chain: CrossChainRebalanceInitiated: expected 6 values, got %d", len(values))
	}

	fromProto, toProto, err := protocolPair(values[0], values[1])
	if err != nil {
		return domain.RebalanceInitiatedEvent{}, fmt.Errorf("chain: CrossChainRebalanceInitiated: %w", err)
	}
	amount, ok := values[2].(*big.Int)
	if !ok {
		return domain.RebalanceInitiatedEvent{}, fmt.Errorf("chain: CrossChainRebalanceInitiated: unexpected amount type %T", values[2])
	}
	srcChain, ok := values[3].(*big.Int)
	if !ok {
		return domain.RebalanceInitiatedEvent{}, fmt.Errorf("chain: CrossChainRebalanceInitiated: unexpected srcChain type %T", values[3])
	}
	dstChain, ok := values[4].(*big.Int)
	if !ok {
		return domain.RebalanceInitiatedEvent{}, fmt.Errorf("chain: CrossChainRebalanceInitiated: unexpected dstChain type %T", values[4])
	}
	automation, ok := values[5].(common.Address)
	if !ok {
		return domain.RebalanceInitiatedEvent{}, fmt.Errorf("chain: CrossChainRebalanceInitiated: unexpected automation type %T", values[5])
	}

	return domain.RebalanceInitiatedEvent{
		ChainID:      chainID,
		User:         common.BytesToAddress(lg.Topics[1].Bytes()),
		FromProtocol: fromProto,
		ToProtocol:   toProto,
		Amount:       amount,
		SrcChainID:   srcChain.Uint64(),
		DstChainID:   dstChain.Uint64(),
		Automation:   automation,
		TxHash:       lg.TxHash,
		BlockNumber:  lg.BlockNumber,
		ObservedAt:   time.Now().UTC(),
	}, nil
}

// ParseRebalanced decodes a Rebalanced log, emitted by the destination vault
// once moved funds land.
func ParseRebalanced(chainID uint64, lg types.Log) (domain.RebalanceCompletedEvent, error) {
	if len(lg.Topics) < 2 || lg.Topics[0] != TopicRebalanced {
		return domain.RebalanceCompletedEvent{}, fmt.Errorf("chain: log is not Rebalanced")
	}

	values, err := vaultABI.Unpack("Rebalanced", lg.Data)
	if err != nil {
		return domain.RebalanceCompletedEvent{}, fmt.Errorf("chain: unpack Rebalanced: %w", err)
	}
	if len(values) != 6 {
		return domain.RebalanceCompletedEvent{}, fmt.Errorf("chain: Rebalanced: expected 6 values, got %d", len(values))
	}

	fromProto, toProto, err := protocolPair(values[0], values[1])
	if err != nil {
		return domain.RebalanceCompletedEvent{}, fmt.Errorf("chain: Rebalanced: %w", err)
	}
	amount, ok := values[2].(*big.Int)
	if !ok {
		return domain.RebalanceCompletedEvent{}, fmt.Errorf("chain: Rebalanced: unexpected amount type %T", values[2])
	}
	srcChain, ok := values[3].(*big.Int)
	if !ok {
		return domain.RebalanceCompletedEvent{}, fmt.Errorf("chain: Rebalanced: unexpected srcChain type %T", values[3])
	}
	dstChain, ok := values[4].(*big.Int)
	if !ok {
		return domain.RebalanceCompletedEvent{}, fmt.Errorf("chain: Rebalanced: unexpected dstChain type %T", values[4])
	}
	apyGain, ok := values[5].(*big.Int)
	if !ok {
		return domain.RebalanceCompletedEvent{}, fmt.Errorf("chain: Rebalanced: unexpected apyGain type %T", values[5])
	}

	return domain.RebalanceCompletedEvent{
		ChainID:      chainID,
		User:         common.BytesToAddress(lg.Topics[1].Bytes()),
		FromProtocol: fromProto,
		ToProtocol:   toProto,
		Amount:       amount,
		SrcChainID:   srcChain.Uint64(),
		DstChainID:   dstChain.Uint64(),
		GainBps:      apyGain.Int64(),
		TxHash:       lg.TxHash,
		ObservedAt:   time.Now().UTC(),
	}, nil
}

func protocolPair(from, to any) (uint64, uint64, error) {
	f, ok := from.(uint8)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected fromProtocol type %T", from)
	}
	t, ok := to.(uint8)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected toProtocol type %T", to)
	}
	return uint64(f), uint64(t), nil
}
