package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Order is the aggregate root owning zero or more products.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID        int64      `bun:"id,pk,autoincrement" json:"id"`
	OrderedAt time.Time  `bun:"order_timestamp,notnull" json:"ordered_at"`
	Products  []*Product `bun:"rel:has-many,join:id=order_id" json:"products"`
}

// ProductCount returns the number of loaded products.
func (o *Order) ProductCount() int {
	if o == nil {
		return 0
	}
	return len(o.Products)
}
