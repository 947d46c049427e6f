package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// --------------------------------------------------------------------------
// Contract ABIs. Only the functions and events the engine actually touches
// are declared; anything else on the deployed contracts is invisible here.
// --------------------------------------------------------------------------

const adapterABIJSON = `[
  {"name":"getCurrentAPY","type":"function","stateMutability":"view",
   "inputs":[{"name":"asset","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"name":"getBalance","type":"function","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"name":"isHealthy","type":"function","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"bool"}]}
]`

const vaultABIJSON = `[
  {"name":"getProtocolBalance","type":"function","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"},{"name":"protocolId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"name":"getUserGuardrails","type":"function","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[
     {"name":"maxSlippageBps","type":"uint256"},
     {"name":"gasCeilingUSD","type":"uint256"},
     {"name":"minAPYDiffBps","type":"uint256"},
     {"name":"autoRebalanceEnabled","type":"bool"}]},
  {"name":"asset","type":"function","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"address"}]},
  {"name":"CrossChainRebalanceInitiated","type":"event","anonymous":false,
   "inputs":[
     {"name":"user","type":"address","indexed":true},
     {"name":"fromProtocol","type":"uint8","indexed":false},
     {"name":"toProtocol","type":"uint8","indexed":false},
     {"name":"amount","type":"uint256","indexed":false},
     {"name":"srcChain","type":"uint256","indexed":false},
     {"name":"dstChain","type":"uint256","indexed":false},
     {"name":"vincentAutomation","type":"address","indexed":false}]},
  {"name":"Rebalanced","type":"event","anonymous":false,
   "inputs":[
     {"name":"user","type":"address","indexed":true},
     {"name":"fromProtocol","type":"uint8","indexed":false},
     {"name":"toProtocol","type":"uint8","indexed":false},
     {"name":"amount","type":"uint256","indexed":false},
     {"name":"srcChain","type":"uint256","indexed":false},
     {"name":"dstChain","type":"uint256","indexed":false},
     {"name":"apyGain","type":"uint256","indexed":false}]}
]`

const automationABIJSON = `[
  {"name":"executeSameChainRebalance","type":"function","stateMutability":"nonpayable",
   "inputs":[
     {"name":"chainId","type":"uint256"},
     {"name":"user","type":"address"},
     {"name":"sourceProtocol","type":"uint256"},
     {"name":"destProtocol","type":"uint256"},
     {"name":"amount","type":"uint256"},
     {"name":"minAPYGain","type":"uint256"},
     {"name":"estimatedGasCost","type":"uint256"}],
   "outputs":[]},
  {"name":"executeCrossChainRebalance","type":"function","stateMutability":"nonpayable",
   "inputs":[
     {"name":"sourceChainId","type":"uint256"},
     {"name":"destChainId","type":"uint256"},
     {"name":"user","type":"address"},
     {"name":"sourceProtocol","type":"uint256"},
     {"name":"destProtocol","type":"uint256"},
     {"name":"amount","type":"uint256"},
     {"name":"minAPYGain","type":"uint256"},
     {"name":"estimatedGasCost","type":"uint256"},
     {"name":"destVaultAdapter","type":"address"}],
   "outputs":[]},
  {"name":"canRebalance","type":"function","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"},{"name":"chainId","type":"uint256"}],
   "outputs":[{"name":"allowed","type":"bool"},{"name":"timeRemaining","type":"uint256"}]},
  {"name":"recordAPY","type":"function","stateMutability":"nonpayable",
   "inputs":[
     {"name":"chainId","type":"uint256"},
     {"name":"protocolId","type":"uint256"},
     {"name":"apy","type":"uint256"}],
   "outputs":[]}
]`

var (
	adapterABI    = mustParseABI(adapterABIJSON)
	vaultABI      = mustParseABI(vaultABIJSON)
	automationABI = mustParseABI(automationABIJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("chain: invalid built-in ABI: " + err.Error())
	}
	return parsed
}
