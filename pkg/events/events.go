// Package events records domain lifecycle events (orders, invoices, products)
// as append-only, TTL-expiring rows for audit and read-side queries, and
// relays them from the pub/sub topic that carries them.
package events

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Event types recorded in the store. The SNS subscription filters on these, so
// a consumer queue only sees the types it declared.
const (
	OrderCreated   = "ORDER_CREATED"
	OrderDeleted   = "ORDER_DELETED"
	InvoiceCreated = "INVOICE_CREATED"
	ProductCreated = "PRODUCT_CREATED"
	ProductUpdated = "PRODUCT_UPDATED"
	ProductDeleted = "PRODUCT_DELETED"
)

// Key prefixes partitioning the event table by subject kind.
const (
	OrderKeyPrefix   = "#order_"
	InvoiceKeyPrefix = "#invoice_"
	ProductKeyPrefix = "#product_"
)

// RecordTTL is how long event rows live before the store evicts them.
const RecordTTL = time.Hour

// Record is one event row. The key is built from the subject's identity plus
// event type plus the triggering message's timestamp, so at-least-once
// redelivery rewrites the same key instead of duplicating.
type Record struct {
	PK        string            `dynamodbav:"pk" json:"pk"`
	SK        string            `dynamodbav:"sk" json:"sk"`
	TTL       int64             `dynamodbav:"ttl" json:"ttl"`
	Username  string            `dynamodbav:"username" json:"username"`
	CreatedAt int64             `dynamodbav:"createdAt" json:"createdAt"`
	RequestID string            `dynamodbav:"requestId,omitempty" json:"requestId,omitempty"`
	EventType string            `dynamodbav:"eventType" json:"eventType"`
	Info      map[string]string `dynamodbav:"info,omitempty" json:"info,omitempty"`
}

// SortKey builds the range key for an event of the given type at the given
// time.
func SortKey(eventType string, at time.Time) string {
	return eventType + "#" + strconv.FormatInt(at.UnixMilli(), 10)
}

// TypeFromSortKey extracts the event type back out of a range key.
func TypeFromSortKey(sk string) string {
	if i := strings.IndexByte(sk, '#'); i >= 0 {
		return sk[:i]
	}
	return sk
}

// SubjectFromKey extracts the subject id from a partition key such as
// "#order_abc-123".
func SubjectFromKey(pk string) string {
	if i := strings.IndexByte(pk, '_'); i >= 0 {
		return pk[i+1:]
	}
	return pk
}

// NewRecord builds an event row for the given subject key and stamps its TTL.
func NewRecord(pk, eventType, username, requestID string, at time.Time, info map[string]string) *Record {
	return &Record{
		PK:        pk,
		SK:        SortKey(eventType, at),
		TTL:       at.Add(RecordTTL).Unix(),
		Username:  username,
		CreatedAt: at.UnixMilli(),
		RequestID: requestID,
		EventType: eventType,
		Info:      info,
	}
}

// Appender appends event rows; appends under the same key must be idempotent.
type Appender interface {
	Append(ctx context.Context, rec *Record) error
}

// Store adds the read-side queries on top of Appender.
type Store interface {
	Appender
	QueryByKey(ctx context.Context, pk string) ([]*Record, error)
	QueryByKeyAndType(ctx context.Context, pk, eventType string) ([]*Record, error)
	QueryByUsername(ctx context.Context, username, keyPrefix string) ([]*Record, error)
}

// Envelope is the topic message wrapper: the event type used for subscription
// filtering plus the serialized domain event.
type Envelope struct {
	EventType string `json:"eventType"`
	Data      string `json:"data"`
}

// OrderEvent is the domain event published on order creation and deletion.
type OrderEvent struct {
	Username     string   `json:"username"`
	OrderID      string   `json:"orderId"`
	ProductCodes []string `json:"productCodes"`
	RequestID    string   `json:"requestId"`
}

// OrderEventRecord builds the event row for a consumed order event. The
// message id rides along in the info map for tracing; the key itself comes
// from the order id, event type and the message timestamp.
func OrderEventRecord(ev *OrderEvent, eventType, messageID string, at time.Time) *Record {
	return NewRecord(
		OrderKeyPrefix+ev.OrderID,
		eventType,
		ev.Username,
		ev.RequestID,
		at,
		map[string]string{
			"orderId":      ev.OrderID,
			"productCodes": strings.Join(ev.ProductCodes, ","),
			"messageId":    messageID,
		},
	)
}

// View is the flattened representation returned by the read-side queries.
type View struct {
	CreatedAt int64             `json:"createdAt"`
	EventType string            `json:"eventType"`
	Username  string            `json:"username"`
	RequestID string            `json:"requestId,omitempty"`
	Subject   string            `json:"subject"`
	Info      map[string]string `json:"info,omitempty"`
}

// ToViews converts event rows to their query representation.
func ToViews(recs []*Record) []View {
	views := make([]View, 0, len(recs))
	for _, rec := range recs {
		views = append(views, View{
			CreatedAt: rec.CreatedAt,
			EventType: TypeFromSortKey(rec.SK),
			Username:  rec.Username,
			RequestID: rec.RequestID,
			Subject:   SubjectFromKey(rec.PK),
			Info:      rec.Info,
		})
	}
	return views
}

// Validate checks an envelope before it is relayed or persisted.
func (e *Envelope) Validate() error {
	if e.EventType == "" {
		return fmt.Errorf("envelope missing eventType")
	}
	if e.Data == "" {
		return fmt.Errorf("envelope missing data")
	}
	return nil
}
