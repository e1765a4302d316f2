package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"

	"github.com/commercelab/invoice-saga/internal/metrics"
	"github.com/commercelab/invoice-saga/pkg/saga"
)

// InvoiceStore implements saga.InvoiceStore on the invoices table, sharing it
// with the transaction records under a different key prefix.
type InvoiceStore struct {
	client    *dynamodb.Client
	tableName string
	log       zerolog.Logger
}

// NewInvoiceStore creates an InvoiceStore for the given table.
func NewInvoiceStore(client *dynamodb.Client, tableName string, log zerolog.Logger) *InvoiceStore {
	return &InvoiceStore{client: client, tableName: tableName, log: log}
}

// Create persists a parsed invoice entity. Invoices are immutable in this
// flow; a replayed upload rewrites the identical item.
func (s *InvoiceStore) Create(ctx context.Context, inv *saga.Invoice) error {
	item, err := attributevalue.MarshalMap(inv)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice: %w", err)
	}

	return metrics.Measure(s.log, metrics.WriteOperation, "invoices.create", func() error {
		_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.tableName),
			Item:      item,
		})
		if err != nil {
			return fmt.Errorf("PutItem operation failed: %w", wrapUnavailable(err))
		}
		return nil
	})
}
