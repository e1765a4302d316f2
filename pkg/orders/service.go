package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/commercelab/invoice-saga/pkg/audit"
	"github.com/commercelab/invoice-saga/pkg/events"
)

// Publisher is the slice of the event publisher the service needs.
type Publisher interface {
	Publish(ctx context.Context, eventType string, event interface{}) (string, error)
}

// Service validates and persists orders and emits their lifecycle events.
type Service struct {
	store     Store
	products  ProductStore
	publisher Publisher
	bus       audit.Bus
	log       zerolog.Logger
}

// NewService creates a Service.
func NewService(store Store, products ProductStore, publisher Publisher, bus audit.Bus, log zerolog.Logger) *Service {
	return &Service{
		store:     store,
		products:  products,
		publisher: publisher,
		bus:       bus,
		log:       log,
	}
}

// Create validates the product ids, persists the order, and publishes
// ORDER_CREATED. The store write commits before publication; losing the
// publication loses an audit row, never the order.
func (s *Service) Create(ctx context.Context, username string, productIDs []string, requestID string) (*Order, error) {
	found, err := s.products.GetByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to look up products: %w", err)
	}
	if len(found) != len(productIDs) {
		if err := s.bus.Publish(ctx, audit.OrderProductNotFound(username, requestID)); err != nil {
			s.log.Warn().Err(err).Msg("failed to publish product-not-found audit event")
		}
		return nil, ErrProductNotFound
	}

	snapshots := make([]OrderProduct, 0, len(found))
	for _, p := range found {
		snapshots = append(snapshots, OrderProduct{Code: p.Code, Price: p.Price})
	}

	order := NewOrder(username, snapshots, time.Now())
	if err := s.store.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.publish(ctx, events.OrderCreated, order, requestID)
	return order, nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, username, orderID string) (*Order, error) {
	return s.store.Get(ctx, username, orderID)
}

// ListByUsername returns a user's orders.
func (s *Service) ListByUsername(ctx context.Context, username string) ([]*Order, error) {
	return s.store.ListByUsername(ctx, username)
}

// Delete removes an order and publishes ORDER_DELETED.
func (s *Service) Delete(ctx context.Context, username, orderID, requestID string) (*Order, error) {
	order, err := s.store.Delete(ctx, username, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to delete order: %w", err)
	}

	s.publish(ctx, events.OrderDeleted, order, requestID)
	return order, nil
}

func (s *Service) publish(ctx context.Context, eventType string, order *Order, requestID string) {
	messageID, err := s.publisher.Publish(ctx, eventType, events.OrderEvent{
		Username:     order.Username,
		OrderID:      order.ID,
		ProductCodes: order.ProductCodes(),
		RequestID:    requestID,
	})
	if err != nil {
		// The order itself is durable; the relay's loss is visible in the
		// event store's gap, not here.
		s.log.Error().Err(err).Str("orderId", order.ID).Str("eventType", eventType).
			Msg("failed to publish order event")
		return
	}
	s.log.Info().Str("orderId", order.ID).Str("eventType", eventType).Str("messageId", messageID).
		Msg("order event published")
}
