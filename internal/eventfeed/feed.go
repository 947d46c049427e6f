// Package eventfeed subscribes to vault rebalance events over websocket RPC
// endpoints. It is the engine's only push-based input: everything else is
// polled on the cycle.
package eventfeed

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/chameleonfi/chameleon-bot/internal/chain"
	"github.com/chameleonfi/chameleon-bot/internal/domain"
	"github.com/chameleonfi/chameleon-bot/internal/registry"
)

const reconnectDelay = 2 * time.Second

// InitiatedHandler is called for each cross-chain rebalance start observed
// on a source vault.
type InitiatedHandler func(ctx context.Context, ev domain.RebalanceInitiatedEvent)

// CompletedHandler is called for each completed rebalance observed on a
// destination vault.
type CompletedHandler func(ctx context.Context, ev domain.RebalanceCompletedEvent)

// Feed watches every chain that has both a vault and a websocket endpoint.
// Chains without a WSURL are silently skipped; they still work for the
// polled cycle, they just cannot push events.
type Feed struct {
	reg         *registry.Registry
	onInitiated InitiatedHandler
	onCompleted CompletedHandler
	logger      *slog.Logger
}

// New creates a Feed. Either handler may be nil.
func New(reg *registry.Registry, onInitiated InitiatedHandler, onCompleted CompletedHandler, logger *slog.Logger) *Feed {
	return &Feed{
		reg:         reg,
		onInitiated: onInitiated,
		onCompleted: onCompleted,
		logger:      logger.With(slog.String("component", "eventfeed")),
	}
}

// Run subscribes on every eligible chain and blocks until ctx is cancelled.
// Each chain runs its own reconnect loop so one flaky endpoint cannot stall
// the others.
func (f *Feed) Run(ctx context.Context) error {
	eligible := 0
	for _, ch := range f.reg.Chains() {
		if !ch.HasVault || ch.WSURL == "" {
			continue
		}
		eligible++
		go f.watchChain(ctx, ch)
	}

	if eligible == 0 {
		f.logger.Warn("no chains with websocket endpoints, event feed idle")
	} else {
		f.logger.Info("event feed started", slog.Int("chains", eligible))
	}

	<-ctx.Done()
	return ctx.Err()
}

// watchChain maintains one subscription with reconnect-on-error.
func (f *Feed) watchChain(ctx context.Context, ch domain.ChainDescriptor) {
	for {
		err := f.subscribeOnce(ctx, ch)
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn("vault subscription dropped, reconnecting",
			slog.Uint64("chain_id", ch.ID),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (f *Feed) subscribeOnce(ctx context.Context, ch domain.ChainDescriptor) error {
	client, err := ethclient.DialContext(ctx, ch.WSURL)
	if err != nil {
		return err
	}
	defer client.Close()

	query := ethereum.FilterQuery{
		Addresses: []common.Address{ch.Vault},
		Topics:    [][]common.Hash{{chain.TopicRebalanceInitiated, chain.TopicRebalanced}},
	}

	logs := make(chan types.Log, 64)
	sub, err := client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	f.logger.Info("subscribed to vault events",
		slog.Uint64("chain_id", ch.ID),
		slog.String("vault", ch.Vault.Hex()),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case lg := <-logs:
			f.dispatch(ctx, ch.ID, lg)
		}
	}
}

func (f *Feed) dispatch(ctx context.Context, chainID uint64, lg types.Log) {
	if len(lg.Topics) == 0 {
		return
	}

	switch lg.Topics[0] {
	case chain.TopicRebalanceInitiated:
		ev, err := chain.ParseRebalanceInitiated(chainID, lg)
		if err != nil {
			f.logger.Warn("dropping malformed initiation event",
				slog.Uint64("chain_id", chainID), slog.String("error", err.Error()))
			return
		}
		f.logger.Info("cross-chain rebalance initiated",
			slog.Uint64("chain_id", chainID),
			slog.String("user", ev.User.Hex()),
			slog.Uint64("dst_chain", ev.DstChainID),
			slog.String("tx_hash", ev.TxHash.Hex()),
		)
		if f.onInitiated != nil {
			f.onInitiated(ctx, ev)
		}

	case chain.TopicRebalanced:
		ev, err := chain.ParseRebalanced(chainID, lg)
		if err != nil {
			f.logger.Warn("dropping malformed completion event",
				slog.Uint64("chain_id", chainID), slog.String("error", err.Error()))
			return
		}
		f.logger.Info("rebalance completed on destination",
			slog.Uint64("chain_id", chainID),
			slog.String("user", ev.User.Hex()),
			slog.Int64("apy_gain_bps", ev.GainBps),
			slog.String("tx_hash", ev.TxHash.Hex()),
		)
		if f.onCompleted != nil {
			f.onCompleted(ctx, ev)
		}
	}
}
