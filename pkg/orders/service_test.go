package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/commercelab/invoice-saga/pkg/audit"
	"github.com/commercelab/invoice-saga/pkg/events"
)

type fakeOrderStore struct {
	mu        sync.Mutex
	orders    map[string]*Order // keyed username|id
	createErr error
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]*Order)}
}

func orderMapKey(username, id string) string { return username + "|" + id }

func (s *fakeOrderStore) Create(ctx context.Context, order *Order) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[orderMapKey(order.Username, order.ID)] = order
	return nil
}

func (s *fakeOrderStore) Get(ctx context.Context, username, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderMapKey(username, orderID)]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *fakeOrderStore) ListByUsername(ctx context.Context, username string) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Order
	for _, o := range s.orders {
		if o.Username == username {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeOrderStore) Delete(ctx context.Context, username, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := orderMapKey(username, orderID)
	order, ok := s.orders[key]
	if !ok {
		return nil, ErrOrderNotFound
	}
	delete(s.orders, key)
	return order, nil
}

type fakeProductStore struct {
	products map[string]*Product
}

func (s *fakeProductStore) GetByIDs(ctx context.Context, ids []string) ([]*Product, error) {
	var out []*Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type published struct {
	EventType string
	Event     events.OrderEvent
}

type fakePublisher struct {
	mu         sync.Mutex
	messages   []published
	publishErr error
}

func (p *fakePublisher) Publish(ctx context.Context, eventType string, event interface{}) (string, error) {
	if p.publishErr != nil {
		return "", p.publishErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{EventType: eventType, Event: event.(events.OrderEvent)})
	return "msg-1", nil
}

type fakeBus struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (b *fakeBus) Publish(ctx context.Context, entry audit.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entry)
	return nil
}

func newTestService() (*Service, *fakeOrderStore, *fakePublisher, *fakeBus) {
	store := newFakeOrderStore()
	catalog := &fakeProductStore{products: map[string]*Product{
		"p-1": {ID: "p-1", Code: "COD-1", Price: 10.5},
		"p-2": {ID: "p-2", Code: "COD-2", Price: 4.5},
	}}
	publisher := &fakePublisher{}
	bus := &fakeBus{}
	return NewService(store, catalog, publisher, bus, zerolog.Nop()), store, publisher, bus
}

func TestCreateOrder(t *testing.T) {
	t.Parallel()

	svc, store, publisher, _ := newTestService()

	order, err := svc.Create(context.Background(), "alice", []string{"p-1", "p-2"}, "req-1")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if order.Total != 15.0 {
		t.Errorf("billing price = %v, want 15.0", order.Total)
	}
	if len(order.Products) != 2 {
		t.Errorf("order has %d product snapshots, want 2", len(order.Products))
	}

	if _, err := store.Get(context.Background(), "alice", order.ID); err != nil {
		t.Errorf("created order not in store: %v", err)
	}

	if len(publisher.messages) != 1 {
		t.Fatalf("published %d events, want 1", len(publisher.messages))
	}
	msg := publisher.messages[0]
	if msg.EventType != events.OrderCreated {
		t.Errorf("event type = %s, want %s", msg.EventType, events.OrderCreated)
	}
	if msg.Event.OrderID != order.ID || msg.Event.Username != "alice" || msg.Event.RequestID != "req-1" {
		t.Errorf("unexpected event payload: %+v", msg.Event)
	}
	if len(msg.Event.ProductCodes) != 2 || msg.Event.ProductCodes[0] != "COD-1" {
		t.Errorf("event product codes = %v", msg.Event.ProductCodes)
	}
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	t.Parallel()

	svc, store, publisher, bus := newTestService()

	_, err := svc.Create(context.Background(), "alice", []string{"p-1", "p-missing"}, "req-1")
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("Create error = %v, want ErrProductNotFound", err)
	}

	if len(store.orders) != 0 {
		t.Errorf("rejected order was persisted")
	}
	if len(publisher.messages) != 0 {
		t.Errorf("rejected order published an event")
	}
	if len(bus.entries) != 1 {
		t.Fatalf("published %d audit entries, want 1", len(bus.entries))
	}
	if bus.entries[0].Detail["reason"] != "PRODUCT_NOT_FOUND" || bus.entries[0].Detail["username"] != "alice" {
		t.Errorf("unexpected audit entry: %+v", bus.entries[0])
	}
}

func TestCreateOrderPublishFailureKeepsOrder(t *testing.T) {
	t.Parallel()

	svc, store, publisher, _ := newTestService()
	publisher.publishErr = errors.New("topic unavailable")

	order, err := svc.Create(context.Background(), "alice", []string{"p-1"}, "req-1")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := store.Get(context.Background(), "alice", order.ID); err != nil {
		t.Errorf("order lost when publication failed: %v", err)
	}
}

func TestDeleteOrder(t *testing.T) {
	t.Parallel()

	svc, store, publisher, _ := newTestService()
	order := NewOrder("alice", []OrderProduct{{Code: "COD-1", Price: 10.5}}, time.Now())
	store.orders[orderMapKey("alice", order.ID)] = order

	deleted, err := svc.Delete(context.Background(), "alice", order.ID, "req-2")
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if deleted.ID != order.ID {
		t.Errorf("deleted order id = %s, want %s", deleted.ID, order.ID)
	}
	if len(store.orders) != 0 {
		t.Errorf("order still in store after delete")
	}

	if len(publisher.messages) != 1 || publisher.messages[0].EventType != events.OrderDeleted {
		t.Fatalf("expected one %s event, got %+v", events.OrderDeleted, publisher.messages)
	}
}

func TestDeleteUnknownOrder(t *testing.T) {
	t.Parallel()

	svc, _, publisher, _ := newTestService()

	_, err := svc.Delete(context.Background(), "alice", "nope", "req-1")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("Delete error = %v, want ErrOrderNotFound", err)
	}
	if len(publisher.messages) != 0 {
		t.Errorf("missing order published an event")
	}
}

func TestGetAndList(t *testing.T) {
	t.Parallel()

	svc, store, _, _ := newTestService()
	a := NewOrder("alice", nil, time.Now())
	b := NewOrder("alice", nil, time.Now())
	c := NewOrder("bob", nil, time.Now())
	for _, o := range []*Order{a, b, c} {
		store.orders[orderMapKey(o.Username, o.ID)] = o
	}

	got, err := svc.Get(context.Background(), "alice", a.ID)
	if err != nil || got.ID != a.ID {
		t.Errorf("Get = %+v, %v", got, err)
	}

	list, err := svc.ListByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListByUsername returned error: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("listed %d orders for alice, want 2", len(list))
	}
}
