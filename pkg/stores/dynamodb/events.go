package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/commercelab/invoice-saga/internal/metrics"
	"github.com/commercelab/invoice-saga/pkg/events"
)

// UsernameIndex is the GSI serving the by-username event queries.
const UsernameIndex = "usernameIdx"

// EventStore implements events.Store on the events table.
type EventStore struct {
	client    *dynamodb.Client
	tableName string
	log       zerolog.Logger
}

// NewEventStore creates an EventStore for the given table.
func NewEventStore(client *dynamodb.Client, tableName string, log zerolog.Logger) *EventStore {
	return &EventStore{client: client, tableName: tableName, log: log}
}

// Append writes an event row. The caller derives the key deterministically
// from the triggering message, so a redelivered message overwrites the same
// row instead of duplicating it.
func (s *EventStore) Append(ctx context.Context, rec *events.Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal event record: %w", err)
	}

	return metrics.Measure(s.log, metrics.WriteOperation, "events.append", func() error {
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

// QueryByKey returns all events of a subject, newest last.
func (s *EventStore) QueryByKey(ctx context.Context, pk string) ([]*events.Record, error) {
	return s.query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
	})
}

// QueryByKeyAndType returns a subject's events of one type, using the sort
// key's eventType prefix.
func (s *EventStore) QueryByKeyAndType(ctx context.Context, pk, eventType string) ([]*events.Record, error) {
	return s.query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :type)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: pk},
			":type": &types.AttributeValueMemberS{Value: eventType},
		},
	})
}

// QueryByUsername returns a user's events of one subject kind via the
// username GSI.
func (s *EventStore) QueryByUsername(ctx context.Context, username, keyPrefix string) ([]*events.Record, error) {
	return s.query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(UsernameIndex),
		KeyConditionExpression: aws.String("username = :u AND begins_with(pk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u":      &types.AttributeValueMemberS{Value: username},
			":prefix": &types.AttributeValueMemberS{Value: keyPrefix},
		},
	})
}

func (s *EventStore) query(ctx context.Context, input *dynamodb.QueryInput) ([]*events.Record, error) {
	var records []*events.Record

	err := metrics.Measure(s.log, metrics.QueryOperation, "events.query", func() error {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return fmt.Errorf("Query operation failed: %w", wrapUnavailable(err))
		}
		records = make([]*events.Record, 0, len(result.Items))
		for _, item := range result.Items {
			var rec events.Record
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal event record: %w", err)
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
