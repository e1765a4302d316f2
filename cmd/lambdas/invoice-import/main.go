package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/commercelab/invoice-saga/internal/awsconfig"
	"github.com/commercelab/invoice-saga/internal/config"
	"github.com/commercelab/invoice-saga/internal/logging"
	"github.com/commercelab/invoice-saga/pkg/audit/eventbridge"
	"github.com/commercelab/invoice-saga/pkg/notify/apigateway"
	"github.com/commercelab/invoice-saga/pkg/saga"
	dynamostore "github.com/commercelab/invoice-saga/pkg/stores/dynamodb"
	s3store "github.com/commercelab/invoice-saga/pkg/stores/s3"
)

var (
	processor *saga.Processor
	log       = logging.With("invoice-import")
)

func init() {
	cfg := config.LoadInvoice()

	awsCfg, err := awsconfig.Load(context.Background(), cfg.AWS)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading AWS config: %v\n", err)
		os.Exit(1)
	}

	ddb := awsdynamodb.NewFromConfig(awsCfg)
	processor = saga.NewProcessor(
		dynamostore.NewTransactionStore(ddb, cfg.InvoicesTable, log),
		dynamostore.NewInvoiceStore(ddb, cfg.InvoicesTable, log),
		s3store.New(awss3.NewFromConfig(awsCfg), log),
		apigateway.New(awsCfg, log),
		eventbridge.New(awseventbridge.NewFromConfig(awsCfg), cfg.AuditBusName, log),
		log,
	)
}

// handleRequest reacts to uploads landing in the bucket. Errors surface to
// the trigger so S3 redelivers the notification.
func handleRequest(ctx context.Context, event events.S3Event) error {
	log.Debug().Int("records", len(event.Records)).Msg("upload notification received")

	for _, record := range event.Records {
		bucket := record.S3.Bucket.Name
		key := record.S3.Object.Key
		if err := processor.HandleUpload(ctx, bucket, key); err != nil {
			return fmt.Errorf("failed to process upload %s/%s: %w", bucket, key, err)
		}
	}
	return nil
}

func main() {
	lambda.Start(handleRequest)
}
