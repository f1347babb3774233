package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductResponse represents a product as exposed via transport layers.
type ProductResponse struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID           int64             `json:"id"`
	OrderedAt    time.Time         `json:"ordered_at"`
	ProductCount int               `json:"product_count"`
	Products     []ProductResponse `json:"products"`
}

// ProductRequest describes a new product submitted with an order.
type ProductRequest struct {
	Name  string          `json:"name" validate:"required"`
	Price decimal.Decimal `json:"price"`
}

// CreateOrderRequest is the payload accepted when placing an order.
// ProductIDs reassign products that already exist.
type CreateOrderRequest struct {
	OrderedAt  *time.Time       `json:"ordered_at"`
	Products   []ProductRequest `json:"products" validate:"dive"`
	ProductIDs []int64          `json:"product_ids" validate:"dive,gt=0"`
}
