// Package chain provides the RPC access layer over the vault, adapter, and
// automation contracts. Reads always target the latest block; the packages
// above this one decide when a value is too old to act on.
package chain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/chameleonfi/chameleon-bot/internal/registry"
)

// Clients holds one connected RPC client per configured chain plus the
// automation contract address, which is deployed at the same address on
// every chain.
type Clients struct {
	logger     *slog.Logger
	clients    map[uint64]*ethclient.Client
	automation common.Address
}

// Dial connects to every chain in the registry. It fails on the first chain
// that cannot be reached; a half-connected client set is not useful to the
// engine.
func Dial(ctx context.Context, reg *registry.Registry, automation common.Address, logger *slog.Logger) (*Clients, error) {
	c := &Clients{
		logger:     logger.With("component", "chain"),
		clients:    make(map[uint64]*ethclient.Client),
		automation: automation,
	}

	for _, ch := range reg.Chains() {
		client, err := ethclient.DialContext(ctx, ch.RPCURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("chain: dial chain %d (%s): %w", ch.ID, ch.Name, err)
		}
		c.clients[ch.ID] = client
		c.logger.Info("connected to chain rpc", "chain_id", ch.ID, "chain", ch.Name)
	}

	return c, nil
}

// Client returns the RPC client for one chain.
func (c *Clients) Client(chainID uint64) (*ethclient.Client, error) {
	client, ok := c.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("chain: no client for chain %d", chainID)
	}
	return client, nil
}

// Close shuts down every underlying RPC connection.
func (c *Clients) Close() {
	for id, client := range c.clients {
		client.Close()
		delete(c.clients, id)
	}
}
