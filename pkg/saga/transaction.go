package saga

import (
	"strings"
	"time"
)

const (
	// TransactionPK is the fixed partition key value discriminating
	// transaction records from invoice records in the shared table.
	TransactionPK = "#transaction"

	// InvoicePKPrefix prefixes the partition key of invoice records; the
	// customer name is appended to it.
	InvoicePKPrefix = "#invoice"
)

// Transaction is the saga record tracking one invoice import. The sort key is
// the transaction id, which doubles as the upload object's key.
type Transaction struct {
	PK        string `dynamodbav:"pk" json:"pk"`
	ID        string `dynamodbav:"sk" json:"sk"`
	TTL       int64  `dynamodbav:"ttl" json:"ttl"`
	RequestID string `dynamodbav:"requestId" json:"requestId"`
	Status    Status `dynamodbav:"transactionStatus" json:"transactionStatus"`
	Timestamp int64  `dynamodbav:"timestamp" json:"timestamp"`
	ExpiresIn int64  `dynamodbav:"expiresIn" json:"expiresIn"`

	// ConnectionID and Endpoint are set only for connection-oriented flows
	// and route status pushes back to the client.
	ConnectionID string `dynamodbav:"connectionId,omitempty" json:"connectionId,omitempty"`
	Endpoint     string `dynamodbav:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// ConnectionOriented reports whether a live connection backs the transaction.
func (t *Transaction) ConnectionOriented() bool {
	return t.ConnectionID != "" && t.Endpoint != ""
}

// NewTransaction builds a URL_GENERATED record expiring ttl from now.
func NewTransaction(id, requestID string, expiresIn time.Duration, ttl time.Duration, now time.Time) *Transaction {
	return &Transaction{
		PK:        TransactionPK,
		ID:        id,
		TTL:       now.Add(ttl).Unix(),
		RequestID: requestID,
		Status:    StatusURLGenerated,
		Timestamp: now.UnixMilli(),
		ExpiresIn: int64(expiresIn.Seconds()),
	}
}

// InvoicePayload is the document the client uploads. InvoiceNumber is the
// required identifying field; everything else is carried into the entity.
type InvoicePayload struct {
	InvoiceNumber string  `json:"invoiceNumber"`
	CustomerName  string  `json:"customerName"`
	TotalValue    float64 `json:"totalValue"`
	ProductID     string  `json:"productId"`
	Quantity      int     `json:"quantity"`
}

// Invoice is the entity persisted once an uploaded payload passes validation.
// It shares the transaction table under a per-customer partition key.
type Invoice struct {
	PK            string  `dynamodbav:"pk" json:"pk"`
	InvoiceNumber string  `dynamodbav:"sk" json:"sk"`
	TotalValue    float64 `dynamodbav:"totalValue" json:"totalValue"`
	ProductID     string  `dynamodbav:"productId" json:"productId"`
	Quantity      int     `dynamodbav:"quantity" json:"quantity"`
	TransactionID string  `dynamodbav:"transactionId" json:"transactionId"`
	TTL           int64   `dynamodbav:"ttl" json:"ttl"`
	CreatedAt     int64   `dynamodbav:"createdAt" json:"createdAt"`
}

// NewInvoice builds the entity from a validated payload. Invoices do not
// expire; TTL is zero.
func NewInvoice(payload *InvoicePayload, transactionID string, now time.Time) *Invoice {
	return &Invoice{
		PK:            InvoicePKPrefix + payload.CustomerName,
		InvoiceNumber: payload.InvoiceNumber,
		TotalValue:    payload.TotalValue,
		ProductID:     payload.ProductID,
		Quantity:      payload.Quantity,
		TransactionID: transactionID,
		CreatedAt:     now.UnixMilli(),
	}
}

// IsInvoiceKey reports whether pk belongs to an invoice record rather than a
// transaction record.
func IsInvoiceKey(pk string) bool {
	return strings.HasPrefix(pk, InvoicePKPrefix) && pk != TransactionPK
}

// CustomerFromInvoiceKey extracts the customer name from an invoice record's
// partition key.
func CustomerFromInvoiceKey(pk string) string {
	return strings.TrimPrefix(pk, InvoicePKPrefix)
}
