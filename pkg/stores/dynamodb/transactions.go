// Package dynamodb implements the application's stores on Amazon DynamoDB:
// the transaction/invoice table and the event table.
package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/commercelab/invoice-saga/internal/metrics"
	"github.com/commercelab/invoice-saga/pkg/saga"
)

// TransactionStore implements saga.TransactionStore on the invoices table.
type TransactionStore struct {
	client    *dynamodb.Client
	tableName string
	log       zerolog.Logger
}

// NewTransactionStore creates a TransactionStore for the given table.
func NewTransactionStore(client *dynamodb.Client, tableName string, log zerolog.Logger) *TransactionStore {
	return &TransactionStore{client: client, tableName: tableName, log: log}
}

// Create writes a fresh transaction record.
func (s *TransactionStore) Create(ctx context.Context, tx *saga.Transaction) error {
	item, err := attributevalue.MarshalMap(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	return metrics.Measure(s.log, metrics.WriteOperation, "transactions.create", func() error {
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

// Get reads the record for the given transaction id.
func (s *TransactionStore) Get(ctx context.Context, id string) (*saga.Transaction, error) {
	var tx saga.Transaction

	err := metrics.Measure(s.log, metrics.ReadOperation, "transactions.get", func() error {
		result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: saga.TransactionPK},
				"sk": &types.AttributeValueMemberS{Value: id},
			},
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return fmt.Errorf("GetItem operation failed: %w", wrapUnavailable(err))
		}
		if len(result.Item) == 0 {
			return saga.ErrTransactionNotFound
		}
		if err := attributevalue.UnmarshalMap(result.Item, &tx); err != nil {
			return fmt.Errorf("failed to unmarshal transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// UpdateStatus advances the record to status, conditional on the record still
// existing in a status the target may be reached from. A failed condition
// surfaces as saga.ErrStaleTransaction so writers no-op instead of
// resurrecting evicted or terminal records.
func (s *TransactionStore) UpdateStatus(ctx context.Context, id string, status saga.Status) error {
	allowed := saga.AllowedFrom(status)
	if len(allowed) == 0 {
		return fmt.Errorf("status %s is not a valid transition target", status)
	}

	condition := "attribute_exists(pk)"
	values := map[string]types.AttributeValue{
		":s": &types.AttributeValueMemberS{Value: string(status)},
	}
	for i, from := range allowed {
		ref := fmt.Sprintf(":f%d", i)
		if i == 0 {
			condition += " AND (transactionStatus = " + ref
		} else {
			condition += " OR transactionStatus = " + ref
		}
		values[ref] = &types.AttributeValueMemberS{Value: string(from)}
	}
	condition += ")"

	return metrics.Measure(s.log, metrics.WriteOperation, "transactions.updateStatus", func() error {
		_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: saga.TransactionPK},
				"sk": &types.AttributeValueMemberS{Value: id},
			},
			UpdateExpression:          aws.String("set transactionStatus = :s"),
			ConditionExpression:       aws.String(condition),
			ExpressionAttributeValues: values,
		})
		if err != nil {
			var conditionFailed *types.ConditionalCheckFailedException
			if errors.As(err, &conditionFailed) {
				return saga.ErrStaleTransaction
			}
			return fmt.Errorf("UpdateItem operation failed: %w", wrapUnavailable(err))
		}
		return nil
	})
}

// wrapUnavailable tags provider-side failures with the domain's transient
// error so callers can hand them back to the trigger source's retry.
func wrapUnavailable(err error) error {
	var throughput *types.ProvisionedThroughputExceededException
	var internal *types.InternalServerError
	if errors.As(err, &throughput) || errors.As(err, &internal) {
		return fmt.Errorf("%w: %s", saga.ErrStoreUnavailable, err)
	}
	return err
}
