// Package registry holds the validated chain/protocol table the engine runs
// against. It is built once at startup from configuration; adapters without a
// deployed address are carried as an explicit disabled variant so comparison
// logic can never mistake a placeholder for a real zero-yield protocol.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
)

// Registry is the immutable chain and adapter table.
type Registry struct {
	chains   map[uint64]domain.ChainDescriptor
	adapters map[uint64][]domain.ProtocolAdapter
}

// New validates the given chains and adapters and builds a Registry. It
// returns domain.ErrNoChains when the chain list is empty; any other
// validation problem is reported as a combined error.
func New(chains []domain.ChainDescriptor, adapters []domain.ProtocolAdapter) (*Registry, error) {
	if len(chains) == 0 {
		return nil, domain.ErrNoChains
	}

	var errs []string

	chainsByID := make(map[uint64]domain.ChainDescriptor, len(chains))
	for _, c := range chains {
		if _, dup := chainsByID[c.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate chain id %d", c.ID))
			continue
		}
		if c.RPCURL == "" {
			errs = append(errs, fmt.Sprintf("chain %d (%s): rpc_url must not be empty", c.ID, c.Name))
		}
		chainsByID[c.ID] = c
	}

	adaptersByChain := make(map[uint64][]domain.ProtocolAdapter)
	seen := make(map[domain.ProtocolKey]bool)
	for _, a := range adapters {
		if _, ok := chainsByID[a.ChainID]; !ok {
			errs = append(errs, fmt.Sprintf("adapter %q references unknown chain %d", a.Name, a.ChainID))
			continue
		}
		if seen[a.Key()] {
			errs = append(errs, fmt.Sprintf("chain %d: duplicate protocol id %d", a.ChainID, a.ID))
			continue
		}
		seen[a.Key()] = true

		switch a.Kind {
		case domain.ProtocolLendingPool, domain.ProtocolMoneyMarket, domain.ProtocolCuratedVault:
		default:
			errs = append(errs, fmt.Sprintf("adapter %q: unknown protocol kind %q", a.Name, a.Kind))
		}

		if a.Deployed {
			if isZero(a.Address) {
				errs = append(errs, fmt.Sprintf("adapter %q: deployed but adapter address is zero", a.Name))
			}
			if isZero(a.Asset) {
				errs = append(errs, fmt.Sprintf("adapter %q: deployed but asset address is zero", a.Name))
			}
		}

		adaptersByChain[a.ChainID] = append(adaptersByChain[a.ChainID], a)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("registry validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return &Registry{chains: chainsByID, adapters: adaptersByChain}, nil
}

func isZero(addr [20]byte) bool {
	for _, b := range addr {
		if b != 0 {
			return false
		}
	}
	return true
}

// Chain returns the descriptor for id.
func (r *Registry) Chain(id uint64) (domain.ChainDescriptor, bool) {
	c, ok := r.chains[id]
	return c, ok
}

// Chains returns all chains ordered by id.
func (r *Registry) Chains() []domain.ChainDescriptor {
	out := make([]domain.ChainDescriptor, 0, len(r.chains))
	for _, c := range r.chains {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Adapters returns the adapters configured on one chain, in config order.
func (r *Registry) Adapters(chainID uint64) []domain.ProtocolAdapter {
	return r.adapters[chainID]
}

// Adapter looks up one adapter by (chain, protocol) key.
func (r *Registry) Adapter(key domain.ProtocolKey) (domain.ProtocolAdapter, bool) {
	for _, a := range r.adapters[key.ChainID] {
		if a.ID == key.ProtocolID {
			return a, true
		}
	}
	return domain.ProtocolAdapter{}, false
}

// DeployedAdapters returns every adapter that may actually be queried,
// grouped by ascending chain id. Undeployed placeholders are excluded here
// so no caller ever issues an RPC against one.
func (r *Registry) DeployedAdapters() []domain.ProtocolAdapter {
	var out []domain.ProtocolAdapter
	for _, c := range r.Chains() {
		for _, a := range r.adapters[c.ID] {
			if a.Deployed && c.HasVault {
				out = append(out, a)
			}
		}
	}
	return out
}
