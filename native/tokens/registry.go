package tokens

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// NativeAsset is the sentinel token address for the chain's native asset.
var NativeAsset = common.Address{}

// Token describes one asset the ledger accepts: its address (zero for the
// native asset), the decimals its integer amounts are scaled by, and a static
// quote used for collateral valuation. PriceWad is the price of one whole
// token scaled by 1e18.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
	PriceWad *big.Int
}

// Registry resolves token addresses and symbols to their metadata. It is
// immutable after construction.
type Registry struct {
	byAddress map[common.Address]Token
	bySymbol  map[string]Token
}

// NewRegistry builds a registry from the supplied tokens. Duplicate addresses
// or symbols are rejected.
func NewRegistry(list []Token) (*Registry, error) {
	reg := &Registry{
		byAddress: make(map[common.Address]Token, len(list)),
		bySymbol:  make(map[string]Token, len(list)),
	}
	for _, tok := range list {
		symbol := strings.ToUpper(strings.TrimSpace(tok.Symbol))
		if symbol == "" {
			return nil, fmt.Errorf("tokens: empty symbol")
		}
		if tok.PriceWad == nil || tok.PriceWad.Sign() <= 0 {
			return nil, fmt.Errorf("tokens: %s requires a positive price", symbol)
		}
		if _, ok := reg.byAddress[tok.Address]; ok {
			return nil, fmt.Errorf("tokens: duplicate address %s", tok.Address.Hex())
		}
		if _, ok := reg.bySymbol[symbol]; ok {
			return nil, fmt.Errorf("tokens: duplicate symbol %s", symbol)
		}
		tok.Symbol = symbol
		tok.PriceWad = new(big.Int).Set(tok.PriceWad)
		reg.byAddress[tok.Address] = tok
		reg.bySymbol[symbol] = tok
	}
	return reg, nil
}

// ByAddress resolves a token by address.
func (r *Registry) ByAddress(addr common.Address) (Token, bool) {
	if r == nil {
		return Token{}, false
	}
	tok, ok := r.byAddress[addr]
	return tok, ok
}

// BySymbol resolves a token by its canonical uppercase symbol.
func (r *Registry) BySymbol(symbol string) (Token, bool) {
	if r == nil {
		return Token{}, false
	}
	tok, ok := r.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	return tok, ok
}

// Recognized reports whether the address belongs to a configured token.
func (r *Registry) Recognized(addr common.Address) bool {
	_, ok := r.ByAddress(addr)
	return ok
}

// List returns the configured tokens in no particular order.
func (r *Registry) List() []Token {
	if r == nil {
		return nil
	}
	out := make([]Token, 0, len(r.byAddress))
	for _, tok := range r.byAddress {
		out = append(out, tok)
	}
	return out
}

type registryFile struct {
	Tokens []struct {
		Symbol   string `yaml:"symbol"`
		Address  string `yaml:"address"`
		Decimals uint8  `yaml:"decimals"`
		Price    string `yaml:"price"`
	} `yaml:"tokens"`
}

// LoadFile reads a YAML token registry. Prices are decimal strings in quote
// units per whole token ("3500", "1", "0.5").
func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("tokens: parse %s: %w", path, err)
	}
	if len(file.Tokens) == 0 {
		return nil, fmt.Errorf("tokens: %s defines no tokens", path)
	}
	list := make([]Token, 0, len(file.Tokens))
	for _, entry := range file.Tokens {
		addr := common.Address{}
		trimmed := strings.TrimSpace(entry.Address)
		if trimmed != "" {
			if !common.IsHexAddress(trimmed) {
				return nil, fmt.Errorf("tokens: invalid address %q for %s", entry.Address, entry.Symbol)
			}
			addr = common.HexToAddress(trimmed)
		}
		price, err := ParseDecimal(entry.Price, 18)
		if err != nil {
			return nil, fmt.Errorf("tokens: price for %s: %w", entry.Symbol, err)
		}
		list = append(list, Token{
			Symbol:   entry.Symbol,
			Address:  addr,
			Decimals: entry.Decimals,
			PriceWad: price,
		})
	}
	return NewRegistry(list)
}

// Default returns the demo registry the deployment scripts assume: native
// ETH quoted at 3500, 18-decimal DAI and 6-decimal USDC pegged to 1.
func Default() *Registry {
	reg, err := NewRegistry([]Token{
		{Symbol: "ETH", Address: NativeAsset, Decimals: 18, PriceWad: wad(3500)},
		{Symbol: "DAI", Address: common.HexToAddress("0x3a6B9cC96D2FB5bCA277C0A222CE16Ab6bAeF5B4"), Decimals: 18, PriceWad: wad(1)},
		{Symbol: "USDC", Address: common.HexToAddress("0xCB3A2E90568471eeD7b191AC45747e83bEE6642A"), Decimals: 6, PriceWad: wad(1)},
	})
	if err != nil {
		panic(err)
	}
	return reg
}

func wad(n int64) *big.Int {
	out := big.NewInt(n)
	return out.Mul(out, big.NewInt(1_000_000_000_000_000_000))
}
