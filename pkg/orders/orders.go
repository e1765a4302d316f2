// Package orders is the order application: plain CRUD on the orders table
// plus publication of order lifecycle events into the fan-out topic. It is
// the producer side of the event-sourcing relay; the saga itself does not
// depend on it.
package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Domain errors.
var (
	// ErrOrderNotFound is returned for lookups of unknown orders.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductNotFound is returned when an order names unknown products.
	ErrProductNotFound = errors.New("product not found")
)

// Product is a catalog item, keyed by id in the products table.
type Product struct {
	ID    string  `dynamodbav:"id" json:"id"`
	Name  string  `dynamodbav:"productName" json:"productName"`
	Code  string  `dynamodbav:"code" json:"code"`
	Price float64 `dynamodbav:"price" json:"price"`
}

// OrderProduct is the denormalized product snapshot carried on an order.
type OrderProduct struct {
	Code  string  `dynamodbav:"code" json:"code"`
	Price float64 `dynamodbav:"price" json:"price"`
}

// Order is one customer order, keyed by (username, order id).
type Order struct {
	Username  string         `dynamodbav:"pk" json:"username"`
	ID        string         `dynamodbav:"sk" json:"id"`
	CreatedAt int64          `dynamodbav:"createdAt" json:"createdAt"`
	Products  []OrderProduct `dynamodbav:"products" json:"products"`
	Total     float64        `dynamodbav:"billingPrice" json:"billingPrice"`
}

// NewOrder builds an order from its product snapshots.
func NewOrder(username string, products []OrderProduct, now time.Time) *Order {
	var total float64
	for _, p := range products {
		total += p.Price
	}
	return &Order{
		Username:  username,
		ID:        uuid.New().String(),
		CreatedAt: now.UnixMilli(),
		Products:  products,
		Total:     total,
	}
}

// ProductCodes returns the order's product codes, for event payloads.
func (o *Order) ProductCodes() []string {
	codes := make([]string, 0, len(o.Products))
	for _, p := range o.Products {
		codes = append(codes, p.Code)
	}
	return codes
}

// Store persists orders.
type Store interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, username, orderID string) (*Order, error)
	ListByUsername(ctx context.Context, username string) ([]*Order, error)
	Delete(ctx context.Context, username, orderID string) (*Order, error)
}

// ProductStore reads catalog items for order validation.
type ProductStore interface {
	GetByIDs(ctx context.Context, ids []string) ([]*Product, error)
}
