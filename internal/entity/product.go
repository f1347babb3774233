package entity

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// PriceScale is the number of fractional digits kept for prices.
const PriceScale = 2

// Product is an item that may belong to at most one order.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID    int64           `bun:"id,pk,autoincrement" json:"id"`
	Name  string          `bun:"name,notnull" json:"name"`
	Price decimal.Decimal `bun:"price,type:decimal(18,2),notnull" json:"price"`
	// OrderID is nil for unassigned products.
	OrderID *int64 `bun:"order_id,nullzero" json:"order_id,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*Product)(nil)

// BeforeAppendModel rounds the price to PriceScale so every backend stores
// the same value.
func (p *Product) BeforeAppendModel(_ context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		p.Price = p.Price.Round(PriceScale)
	}
	return nil
}

// SeedProducts returns the fixed products inserted by a schema reset, in
// insertion order.
func SeedProducts() []*Product {
	return []*Product{
		{Name: "Test", Price: decimal.RequireFromString("2.3")},
		{Name: "Tester2", Price: decimal.NewFromInt(5)},
	}
}
