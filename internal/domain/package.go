package domain

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the number of decimals of the chain's native currency (wei per ether).
const NativeDecimals = 18

// Package is a fixed (credits, price) tuple offered for purchase.
type Package struct {
	Credits int64           `json:"credits"`
	Price   decimal.Decimal `json:"price"`
}

// PriceWei returns the exact on-chain value expected for this package.
func (p Package) PriceWei() *big.Int {
	return p.Price.Shift(NativeDecimals).BigInt()
}

// Catalog is the static package catalog built from configuration.
type Catalog struct {
	packages map[int64]Package
}

// DefaultPackageCredits are the three tiers on sale.
var DefaultPackageCredits = []int64{1, 5, 10}

// NewCatalog builds the catalog. Prices must be positive and strictly increase with credits.
func NewCatalog(prices map[int64]decimal.Decimal) (*Catalog, error) {
	c := &Catalog{packages: make(map[int64]Package, len(prices))}
	for credits, price := range prices {
		if credits <= 0 || !price.IsPositive() {
			return nil, fmt.Errorf("invalid package %d credits @ %s", credits, price)
		}
		c.packages[credits] = Package{Credits: credits, Price: price}
	}

	list := c.Packages()
	for i := 1; i < len(list); i++ {
		if !list[i].Price.GreaterThan(list[i-1].Price) {
			return nil, fmt.Errorf("package prices must increase with credits: %d credits @ %s", list[i].Credits, list[i].Price)
		}
	}
	return c, nil
}

// Lookup returns the package for the given credit count.
func (c *Catalog) Lookup(credits int64) (Package, error) {
	p, ok := c.packages[credits]
	if !ok {
		return Package{}, ErrUnknownPackage
	}
	return p, nil
}

// Packages returns the catalog ordered by credits.
func (c *Catalog) Packages() []Package {
	list := make([]Package, 0, len(c.packages))
	for _, p := range c.packages {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Credits < list[j].Credits })
	return list
}
