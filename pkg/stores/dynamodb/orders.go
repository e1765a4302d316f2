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
	"github.com/commercelab/invoice-saga/pkg/orders"
)

// OrderStore implements orders.Store on the orders table.
type OrderStore struct {
	client    *dynamodb.Client
	tableName string
	log       zerolog.Logger
}

// NewOrderStore creates an OrderStore for the given table.
func NewOrderStore(client *dynamodb.Client, tableName string, log zerolog.Logger) *OrderStore {
	return &OrderStore{client: client, tableName: tableName, log: log}
}

// Create writes a new order.
func (s *OrderStore) Create(ctx context.Context, order *orders.Order) error {
	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	return metrics.Measure(s.log, metrics.WriteOperation, "orders.create", func() error {
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

// Get reads one order.
func (s *OrderStore) Get(ctx context.Context, username, orderID string) (*orders.Order, error) {
	var order orders.Order

	err := metrics.Measure(s.log, metrics.ReadOperation, "orders.get", func() error {
		result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(s.tableName),
			Key:       orderKey(username, orderID),
		})
		if err != nil {
			return fmt.Errorf("GetItem operation failed: %w", wrapUnavailable(err))
		}
		if len(result.Item) == 0 {
			return orders.ErrOrderNotFound
		}
		if err := attributevalue.UnmarshalMap(result.Item, &order); err != nil {
			return fmt.Errorf("failed to unmarshal order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUsername returns a user's orders.
func (s *OrderStore) ListByUsername(ctx context.Context, username string) ([]*orders.Order, error) {
	var list []*orders.Order

	err := metrics.Measure(s.log, metrics.QueryOperation, "orders.listByUsername", func() error {
		result, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("pk = :username"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":username": &types.AttributeValueMemberS{Value: username},
			},
		})
		if err != nil {
			return fmt.Errorf("Query operation failed: %w", wrapUnavailable(err))
		}
		list = make([]*orders.Order, 0, len(result.Items))
		for _, item := range result.Items {
			var order orders.Order
			if err := attributevalue.UnmarshalMap(item, &order); err != nil {
				return fmt.Errorf("failed to unmarshal order: %w", err)
			}
			list = append(list, &order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Delete removes an order and returns its last image, so the caller can
// publish the deletion event from what was actually removed.
func (s *OrderStore) Delete(ctx context.Context, username, orderID string) (*orders.Order, error) {
	var order orders.Order

	err := metrics.Measure(s.log, metrics.DeleteOperation, "orders.delete", func() error {
		result, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:    aws.String(s.tableName),
			Key:          orderKey(username, orderID),
			ReturnValues: types.ReturnValueAllOld,
		})
		if err != nil {
			return fmt.Errorf("DeleteItem operation failed: %w", wrapUnavailable(err))
		}
		if len(result.Attributes) == 0 {
			return orders.ErrOrderNotFound
		}
		if err := attributevalue.UnmarshalMap(result.Attributes, &order); err != nil {
			return fmt.Errorf("failed to unmarshal deleted order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func orderKey(username, orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: username},
		"sk": &types.AttributeValueMemberS{Value: orderID},
	}
}

// ProductStore implements orders.ProductStore on the products table.
type ProductStore struct {
	client    *dynamodb.Client
	tableName string
	log       zerolog.Logger
}

// NewProductStore creates a ProductStore for the given table.
func NewProductStore(client *dynamodb.Client, tableName string, log zerolog.Logger) *ProductStore {
	return &ProductStore{client: client, tableName: tableName, log: log}
}

// GetByIDs batch-reads the named products. Absent ids are simply missing from
// the result; the caller compares lengths.
func (s *ProductStore) GetByIDs(ctx context.Context, ids []string) ([]*orders.Product, error) {
	if len(ids) == 0 {
		return []*orders.Product{}, nil
	}

	keys := make([]map[string]types.AttributeValue, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		})
	}

	var products []*orders.Product
	err := metrics.Measure(s.log, metrics.ReadOperation, "products.getByIds", func() error {
		result, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{
				s.tableName: {Keys: keys},
			},
		})
		if err != nil {
			return fmt.Errorf("BatchGetItem operation failed: %w", wrapUnavailable(err))
		}
		items := result.Responses[s.tableName]
		products = make([]*orders.Product, 0, len(items))
		for _, item := range items {
			var p orders.Product
			if err := attributevalue.UnmarshalMap(item, &p); err != nil {
				return fmt.Errorf("failed to unmarshal product: %w", err)
			}
			products = append(products, &p)
		}
		if len(result.UnprocessedKeys) > 0 {
			return errors.New("product batch read left unprocessed keys")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}
