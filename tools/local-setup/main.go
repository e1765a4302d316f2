// Command local-setup creates the application's DynamoDB tables against a
// local endpoint for development. Real environments are provisioned by the
// deployment, not by this tool.
package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/commercelab/invoice-saga/internal/awsconfig"
	"github.com/commercelab/invoice-saga/internal/config"
	dynamostore "github.com/commercelab/invoice-saga/pkg/stores/dynamodb"
)

func main() {
	cfg := config.LoadInvoice()
	orderCfg := config.LoadOrders()

	ctx := context.Background()
	awsCfg, err := awsconfig.Load(ctx, cfg.AWS)
	if err != nil {
		log.Fatalf("Unable to load SDK config: %v", err)
	}
	client := dynamodb.NewFromConfig(awsCfg)

	// Invoices table: transactions + invoices share it, TTL drives the saga
	// timeout, the stream feeds the dispatcher.
	createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(cfg.InvoicesTable),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sk"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
		StreamSpecification: &types.StreamSpecification{
			StreamEnabled: aws.Bool(true),
			// Old images matter: evictions carry the last status there.
			StreamViewType: types.StreamViewTypeNewAndOldImages,
		},
	})
	enableTTL(ctx, client, cfg.InvoicesTable)

	// Events table with the username GSI serving read-side queries.
	createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(cfg.EventsTable),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("username"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(dynamostore.UsernameIndex),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("username"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("pk"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
	})
	enableTTL(ctx, client, cfg.EventsTable)

	// Orders and products tables for the order application.
	createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(orderCfg.OrdersTable),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sk"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
	})
	createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(orderCfg.ProductsTable),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
	})

	log.Println("Local setup completed successfully")
}

func createTable(ctx context.Context, client *dynamodb.Client, input *dynamodb.CreateTableInput) {
	name := aws.ToString(input.TableName)
	_, err := client.CreateTable(ctx, input)
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			log.Printf("Table %s already exists", name)
			return
		}
		log.Fatalf("Failed to create table %s: %v", name, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: input.TableName}, 2*time.Minute); err != nil {
		log.Fatalf("Failed to wait for table %s: %v", name, err)
	}
	log.Printf("Table %s created", name)
}

func enableTTL(ctx context.Context, client *dynamodb.Client, table string) {
	_, err := client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(table),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String("ttl"),
			Enabled:       aws.Bool(true),
		},
	})
	if err != nil {
		// DynamoDB Local accepts but does not enforce TTL; a validation
		// error here is not fatal for development.
		log.Printf("Failed to enable TTL on %s: %v", table, err)
	}
}
