package networks

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Family groups chains that share an address format and transaction hash format.
type Family string

const (
	FamilyEVM    Family = "evm"
	FamilySolana Family = "solana"
)

// Chain represents a settlement chain with the networks and tokens it supports
type Chain struct {
	Name     string   `json:"chain"`
	Family   Family   `json:"family"`
	Networks []string `json:"networks"`
	Tokens   []string `json:"tokens"`
}

// Token represents a payout token
type Token struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

// Registry holds all supported chains and tokens
type Registry struct {
	chains map[string]*Chain
	tokens map[string]*Token
}

var (
	evmAddressPattern    = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	solanaAddressPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

// NewRegistry creates a new registry with all supported chains and tokens
func NewRegistry() *Registry {
	registry := &Registry{
		chains: make(map[string]*Chain),
		tokens: make(map[string]*Token),
	}

	supportedChains := []*Chain{
		{Name: "ethereum", Family: FamilyEVM, Networks: []string{"mainnet", "sepolia"}, Tokens: []string{"USDC", "USDT", "DAI", "ETH"}},
		{Name: "polygon", Family: FamilyEVM, Networks: []string{"mainnet", "amoy"}, Tokens: []string{"USDC", "USDT", "DAI", "MATIC"}},
		{Name: "base", Family: FamilyEVM, Networks: []string{"mainnet", "sepolia"}, Tokens: []string{"USDC", "ETH"}},
		{Name: "arbitrum", Family: FamilyEVM, Networks: []string{"mainnet", "sepolia"}, Tokens: []string{"USDC", "USDT", "ETH"}},
		{Name: "optimism", Family: FamilyEVM, Networks: []string{"mainnet", "sepolia"}, Tokens: []string{"USDC", "USDT", "ETH"}},
		{Name: "solana", Family: FamilySolana, Networks: []string{"mainnet", "devnet"}, Tokens: []string{"USDC", "USDT", "SOL"}},
	}

	supportedTokens := []*Token{
		{Symbol: "USDC", Name: "USD Coin", Decimals: 6},
		{Symbol: "USDT", Name: "Tether USD", Decimals: 6},
		{Symbol: "DAI", Name: "Dai Stablecoin", Decimals: 18},
		{Symbol: "ETH", Name: "Ether", Decimals: 18},
		{Symbol: "MATIC", Name: "Polygon", Decimals: 18},
		{Symbol: "SOL", Name: "Solana", Decimals: 9},
	}

	for _, chain := range supportedChains {
		registry.chains[chain.Name] = chain
	}
	for _, token := range supportedTokens {
		registry.tokens[token.Symbol] = token
	}

	return registry
}

// Chain returns a chain by name (case-insensitive)
func (r *Registry) Chain(name string) (*Chain, bool) {
	chain, exists := r.chains[strings.ToLower(strings.TrimSpace(name))]
	return chain, exists
}

// Token returns a token by symbol (case-insensitive)
func (r *Registry) Token(symbol string) (*Token, bool) {
	token, exists := r.tokens[strings.ToUpper(strings.TrimSpace(symbol))]
	return token, exists
}

// IsChainSupported checks if a chain name is supported
func (r *Registry) IsChainSupported(name string) bool {
	_, exists := r.Chain(name)
	return exists
}

// IsTokenSupported checks if a token symbol is supported
func (r *Registry) IsTokenSupported(symbol string) bool {
	_, exists := r.Token(symbol)
	return exists
}

// Chains returns all chains ordered by name
func (r *Registry) Chains() []Chain {
	chains := make([]Chain, 0, len(r.chains))
	for _, chain := range r.chains {
		chains = append(chains, *chain)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i].Name < chains[j].Name })
	return chains
}

// ChainNames returns every supported chain name, sorted
func (r *Registry) ChainNames() []string {
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TokenSymbols returns every supported token symbol, sorted
func (r *Registry) TokenSymbols() []string {
	symbols := make([]string, 0, len(r.tokens))
	for symbol := range r.tokens {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// ValidateRoute checks that the network and token are offered on the chain.
func (r *Registry) ValidateRoute(chainName, network, token string) error {
	chain, ok := r.Chain(chainName)
	if !ok {
		return fmt.Errorf("unsupported chain %q", chainName)
	}
	if !contains(chain.Networks, network) {
		return fmt.Errorf("network %q is not available on %s", network, chain.Name)
	}
	if !contains(chain.Tokens, token) {
		return fmt.Errorf("token %q is not available on %s", token, chain.Name)
	}
	return nil
}

// ValidateAddress checks the address format for the chain's family. Mixed-case
// EVM addresses must carry a valid EIP-55 checksum.
func (r *Registry) ValidateAddress(chainName, address string) error {
	chain, ok := r.Chain(chainName)
	if !ok {
		return fmt.Errorf("unsupported chain %q", chainName)
	}

	switch chain.Family {
	case FamilyEVM:
		if !evmAddressPattern.MatchString(address) || !common.IsHexAddress(address) {
			return fmt.Errorf("invalid %s address %q", chain.Name, address)
		}
		body := address[2:]
		if body != strings.ToLower(body) && body != strings.ToUpper(body) {
			if common.HexToAddress(address).Hex() != address {
				return fmt.Errorf("address %q fails EIP-55 checksum", address)
			}
		}
	case FamilySolana:
		if !solanaAddressPattern.MatchString(address) {
			return fmt.Errorf("invalid %s address %q", chain.Name, address)
		}
	}
	return nil
}

// FamilyOf returns the address family of a chain; unknown chains are treated as EVM.
func (r *Registry) FamilyOf(chainName string) Family {
	if chain, ok := r.Chain(chainName); ok {
		return chain.Family
	}
	return FamilyEVM
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// GlobalRegistry is the registry instance shared by the engine and the transports
var GlobalRegistry = NewRegistry()
