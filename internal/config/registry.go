package config

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
)

// RegistryInputs converts the configured chain tables into domain descriptors
// and adapters for registry construction. An empty or zero vault/adapter
// address becomes the explicit not-deployed variant rather than a sentinel
// address.
func (c *Config) RegistryInputs() ([]domain.ChainDescriptor, []domain.ProtocolAdapter) {
	chains := make([]domain.ChainDescriptor, 0, len(c.Chains))
	var adapters []domain.ProtocolAdapter

	for _, ch := range c.Chains {
		vault, hasVault := parseAddress(ch.VaultAddress)
		chains = append(chains, domain.ChainDescriptor{
			ID:       ch.ID,
			Name:     ch.Name,
			RPCURL:   ch.RPCURL,
			WSURL:    ch.WSURL,
			Vault:    vault,
			HasVault: hasVault,
		})

		for _, p := range ch.Protocols {
			addr, deployed := parseAddress(p.AdapterAddress)
			asset, hasAsset := parseAddress(p.AssetAddress)
			adapters = append(adapters, domain.ProtocolAdapter{
				ChainID:  ch.ID,
				ID:       p.ID,
				Name:     p.Name,
				Kind:     domain.ProtocolKind(p.Kind),
				Address:  addr,
				Asset:    asset,
				Deployed: deployed && hasAsset,
			})
		}
	}

	return chains, adapters
}

// parseAddress returns the parsed address and whether it is present and
// non-zero.
func parseAddress(s string) (common.Address, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	addr := common.HexToAddress(s)
	return addr, addr != (common.Address{})
}
