package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"gopkg.in/yaml.v2"

	"flasharb/types"
)

// orientationCacheSize bounds the memoized pool-orientation lookup.
const orientationCacheSize = 256

type catalogFile struct {
	QuoteSymbols []string       `yaml:"quote_symbols"`
	Assets       []assetEntry   `yaml:"assets"`
	Pools        []poolEntry    `yaml:"pools"`
}

type assetEntry struct {
	Symbol         string  `yaml:"symbol"`
	Address        string  `yaml:"address"`
	Decimals       uint8   `yaml:"decimals"`
	MinTradeAmount float64 `yaml:"min_trade_amount"`
	MaxTradeAmount float64 `yaml:"max_trade_amount"`
	GasLimit       uint64  `yaml:"gas_limit"`
}

type poolEntry struct {
	Venue       string  `yaml:"venue"`
	Address     string  `yaml:"address"`
	Kind        string  `yaml:"kind"` // constant_product | concentrated_liquidity
	FeeBps      uint32  `yaml:"fee_bps"`
	Token0      string  `yaml:"token0"`
	Token1      string  `yaml:"token1"`
	TVLUSD      float64 `yaml:"tvl_usd"`
	MaxSlippage float64 `yaml:"max_slippage"`
}

// Orientation is the canonical base/quote assignment for one pool, resolved
// once from the catalog tables.
type Orientation struct {
	Base  types.Asset
	Quote types.Asset
}

// Catalog is the process-wide read-only asset and pool table. It replaces
// the ad hoc per-script token maps of earlier revisions: resolved once at
// load, injected into components, never mutated afterwards.
type Catalog struct {
	mu             sync.RWMutex
	assetsByAddr   map[common.Address]types.Asset
	assetsBySymbol map[string]types.Asset
	quoteAssets    map[common.Address]bool
	pools          []types.Pool
	orientations   *lru.Cache // pool address -> Orientation
}

// LoadCatalog reads the YAML asset/pool tables.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog builds a Catalog from raw YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	cache, err := lru.New(orientationCacheSize)
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		assetsByAddr:   make(map[common.Address]types.Asset, len(file.Assets)),
		assetsBySymbol: make(map[string]types.Asset, len(file.Assets)),
		quoteAssets:    make(map[common.Address]bool),
		orientations:   cache,
	}

	for _, entry := range file.Assets {
		if entry.Symbol == "" || entry.Address == "" {
			return nil, fmt.Errorf("catalog asset missing symbol or address")
		}
		asset := types.Asset{
			Address:        common.HexToAddress(entry.Address),
			Symbol:         entry.Symbol,
			Decimals:       entry.Decimals,
			MinTradeAmount: entry.MinTradeAmount,
			MaxTradeAmount: entry.MaxTradeAmount,
			GasLimit:       entry.GasLimit,
		}
		c.assetsByAddr[asset.Address] = asset
		c.assetsBySymbol[asset.Symbol] = asset
	}

	for _, symbol := range file.QuoteSymbols {
		asset, ok := c.assetsBySymbol[symbol]
		if !ok {
			return nil, fmt.Errorf("quote symbol %q not in asset table", symbol)
		}
		c.quoteAssets[asset.Address] = true
	}

	for _, entry := range file.Pools {
		kind, err := parsePoolKind(entry.Kind)
		if err != nil {
			return nil, err
		}
		if entry.FeeBps > 10000 {
			return nil, fmt.Errorf("pool %s fee tier %d exceeds 10000 bp", entry.Address, entry.FeeBps)
		}
		pool := types.Pool{
			Venue:       entry.Venue,
			Address:     common.HexToAddress(entry.Address),
			Kind:        kind,
			FeeBps:      entry.FeeBps,
			Token0:      common.HexToAddress(entry.Token0),
			Token1:      common.HexToAddress(entry.Token1),
			TVLHint:     entry.TVLUSD,
			MaxSlippage: entry.MaxSlippage,
		}
		if pool.Token0 == pool.Token1 {
			return nil, fmt.Errorf("pool %s quotes a token against itself", entry.Address)
		}
		if _, _, err := c.resolveOrientation(pool); err != nil {
			return nil, err
		}
		c.pools = append(c.pools, pool)
	}

	return c, nil
}

func parsePoolKind(s string) (types.PoolKind, error) {
	switch s {
	case "constant_product":
		return types.ConstantProduct, nil
	case "concentrated_liquidity":
		return types.ConcentratedLiquidity, nil
	default:
		return 0, fmt.Errorf("unknown pool kind %q", s)
	}
}

// Asset looks up a catalog asset by address.
func (c *Catalog) Asset(addr common.Address) (types.Asset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	asset, ok := c.assetsByAddr[addr]
	return asset, ok
}

// AssetBySymbol looks up a catalog asset by symbol.
func (c *Catalog) AssetBySymbol(symbol string) (types.Asset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	asset, ok := c.assetsBySymbol[symbol]
	return asset, ok
}

// Pools returns the pool table. The slice is a copy; the catalog itself is
// never mutated by callers.
func (c *Catalog) Pools() []types.Pool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Pool, len(c.pools))
	copy(out, c.pools)
	return out
}

// Orient resolves which of the pool's tokens is the canonical base and
// which the quote. The result is memoized per pool address; the inversion
// decision in price normalization hangs off this table, never off a price
// comparison.
func (c *Catalog) Orient(pool types.Pool) (Orientation, error) {
	if cached, ok := c.orientations.Get(pool.Address); ok {
		return cached.(Orientation), nil
	}

	base, quote, err := c.resolveOrientation(pool)
	if err != nil {
		return Orientation{}, err
	}

	o := Orientation{Base: base, Quote: quote}
	c.orientations.Add(pool.Address, o)
	return o, nil
}

func (c *Catalog) resolveOrientation(pool types.Pool) (base, quote types.Asset, err error) {
	token0, ok := c.assetsByAddr[pool.Token0]
	if !ok {
		return base, quote, fmt.Errorf("pool %s token0 %s not in asset table", pool.Address.Hex(), pool.Token0.Hex())
	}
	token1, ok := c.assetsByAddr[pool.Token1]
	if !ok {
		return base, quote, fmt.Errorf("pool %s token1 %s not in asset table", pool.Address.Hex(), pool.Token1.Hex())
	}

	quote0 := c.quoteAssets[token0.Address]
	quote1 := c.quoteAssets[token1.Address]
	switch {
	case quote0 && quote1:
		// Stable/stable pair: token1 quotes token0 by convention.
		return token0, token1, nil
	case quote1:
		return token0, token1, nil
	case quote0:
		return token1, token0, nil
	default:
		return base, quote, fmt.Errorf("pool %s has no quote asset side", pool.Address.Hex())
	}
}

// RefQuoteUSD returns the USD value of one quote unit. Quote assets are
// stables, so this is 1 today; the indirection keeps liquidity estimation
// honest if a non-stable quote is ever configured.
func (c *Catalog) RefQuoteUSD(quote types.Asset) float64 {
	return 1.0
}
