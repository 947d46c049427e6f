package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
)

var (
	addrA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	addrB = common.HexToAddress("0x2222222222222222222222222222222222222222")
	asset = common.HexToAddress("0x3333333333333333333333333333333333333333")
	vault = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func testChains() []domain.ChainDescriptor {
	return []domain.ChainDescriptor{
		{ID: 84532, Name: "base-sepolia", RPCURL: "https://rpc.base", Vault: vault, HasVault: true},
		{ID: 11155420, Name: "op-sepolia", RPCURL: "https://rpc.op"},
	}
}

func testAdapters() []domain.ProtocolAdapter {
	return []domain.ProtocolAdapter{
		{ChainID: 84532, ID: 1, Name: "aave-v3", Kind: domain.ProtocolLendingPool, Address: addrA, Asset: asset, Deployed: true},
		{ChainID: 84532, ID: 2, Name: "compound-v3", Kind: domain.ProtocolMoneyMarket, Address: addrB, Asset: asset, Deployed: true},
		{ChainID: 11155420, ID: 1, Name: "aave-v3", Kind: domain.ProtocolLendingPool},
	}
}

func TestNewRejectsEmptyChainList(t *testing.T) {
	_, err := New(nil, nil)
	if !errors.Is(err, domain.ErrNoChains) {
		t.Fatalf("expected ErrNoChains, got %v", err)
	}
}

func TestNewRejectsDuplicateChains(t *testing.T) {
	chains := []domain.ChainDescriptor{
		{ID: 1, RPCURL: "https://a"},
		{ID: 1, RPCURL: "https://b"},
	}
	_, err := New(chains, nil)
	if err == nil || !strings.Contains(err.Error(), "duplicate chain id 1") {
		t.Fatalf("expected duplicate chain error, got %v", err)
	}
}

func TestNewRejectsAdapterOnUnknownChain(t *testing.T) {
	adapters := []domain.ProtocolAdapter{
		{ChainID: 999, ID: 1, Name: "ghost", Kind: domain.ProtocolLendingPool},
	}
	_, err := New(testChains(), adapters)
	if err == nil || !strings.Contains(err.Error(), "unknown chain 999") {
		t.Fatalf("expected unknown chain error, got %v", err)
	}
}

func TestNewRejectsDeployedAdapterWithZeroAddress(t *testing.T) {
	adapters := []domain.ProtocolAdapter{
		{ChainID: 84532, ID: 1, Name: "aave-v3", Kind: domain.ProtocolLendingPool, Asset: asset, Deployed: true},
	}
	_, err := New(testChains(), adapters)
	if err == nil || !strings.Contains(err.Error(), "adapter address is zero") {
		t.Fatalf("expected zero address error, got %v", err)
	}
}

func TestNewRejectsUnknownProtocolKind(t *testing.T) {
	adapters := []domain.ProtocolAdapter{
		{ChainID: 84532, ID: 1, Name: "weird", Kind: domain.ProtocolKind("mystery")},
	}
	_, err := New(testChains(), adapters)
	if err == nil || !strings.Contains(err.Error(), "unknown protocol kind") {
		t.Fatalf("expected kind error, got %v", err)
	}
}

func TestAdapterLookup(t *testing.T) {
	reg, err := New(testChains(), testAdapters())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a, ok := reg.Adapter(domain.ProtocolKey{ChainID: 84532, ProtocolID: 2})
	if !ok {
		t.Fatal("expected adapter (84532, 2)")
	}
	if a.Name != "compound-v3" {
		t.Fatalf("wrong adapter: %q", a.Name)
	}

	if _, ok := reg.Adapter(domain.ProtocolKey{ChainID: 84532, ProtocolID: 9}); ok {
		t.Fatal("unexpected adapter for unknown protocol id")
	}
}

func TestDeployedAdaptersExcludesPlaceholdersAndVaultlessChains(t *testing.T) {
	reg, err := New(testChains(), testAdapters())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	deployed := reg.DeployedAdapters()
	if len(deployed) != 2 {
		t.Fatalf("expected 2 deployed adapters, got %d", len(deployed))
	}
	for _, a := range deployed {
		if a.ChainID != 84532 {
			t.Fatalf("adapter from vaultless chain leaked through: %+v", a)
		}
		if !a.Deployed {
			t.Fatalf("undeployed adapter leaked through: %+v", a)
		}
	}
}

func TestChainsOrderedByID(t *testing.T) {
	reg, err := New(testChains(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	chains := reg.Chains()
	if len(chains) != 2 || chains[0].ID != 84532 || chains[1].ID != 11155420 {
		t.Fatalf("unexpected chain order: %+v", chains)
	}
}
