package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/commercelab/invoice-saga/internal/awsconfig"
	"github.com/commercelab/invoice-saga/internal/config"
	"github.com/commercelab/invoice-saga/internal/logging"
	"github.com/commercelab/invoice-saga/pkg/audit/eventbridge"
	"github.com/commercelab/invoice-saga/pkg/notify/apigateway"
	"github.com/commercelab/invoice-saga/pkg/saga"
	dynamostore "github.com/commercelab/invoice-saga/pkg/stores/dynamodb"
	sqsstore "github.com/commercelab/invoice-saga/pkg/stores/sqs"
)

var (
	dispatcher *saga.Dispatcher
	log        = logging.With("invoice-events")
)

func init() {
	cfg := config.LoadInvoice()
	cfg.DLQueueURL = config.MustRequire("INVOICE_EVENTS_DLQ_URL")

	awsCfg, err := awsconfig.Load(context.Background(), cfg.AWS)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading AWS config: %v\n", err)
		os.Exit(1)
	}

	dispatcher = saga.NewDispatcher(
		saga.DispatcherConfig{RetryAttempts: config.GetenvInt("RETRY_ATTEMPTS", 3)},
		apigateway.New(awsCfg, log),
		dynamostore.NewEventStore(awsdynamodb.NewFromConfig(awsCfg), cfg.EventsTable, log),
		eventbridge.New(awseventbridge.NewFromConfig(awsCfg), cfg.AuditBusName, log),
		sqsstore.NewDeadLetter(awssqs.NewFromConfig(awsCfg), cfg.DLQueueURL, log),
		log,
	)
}

func handleRequest(ctx context.Context, event events.DynamoDBEvent) error {
	records := make([]saga.ChangeRecord, 0, len(event.Records))
	for _, record := range event.Records {
		records = append(records, toChangeRecord(record))
	}
	return dispatcher.HandleBatch(ctx, records)
}

// toChangeRecord flattens a stream record to the string attributes the
// dispatcher classifies on.
func toChangeRecord(record events.DynamoDBEventRecord) saga.ChangeRecord {
	keys := record.Change.Keys
	return saga.ChangeRecord{
		EventName: record.EventName,
		PK:        stringAttr(keys, "pk"),
		SK:        stringAttr(keys, "sk"),
		Old:       flatten(record.Change.OldImage),
		New:       flatten(record.Change.NewImage),
	}
}

func flatten(image map[string]events.DynamoDBAttributeValue) map[string]string {
	if len(image) == 0 {
		return nil
	}
	out := make(map[string]string, len(image))
	for name, attr := range image {
		switch attr.DataType() {
		case events.DataTypeString:
			out[name] = attr.String()
		case events.DataTypeNumber:
			out[name] = attr.Number()
		}
	}
	return out
}

func stringAttr(image map[string]events.DynamoDBAttributeValue, name string) string {
	attr, ok := image[name]
	if !ok || attr.DataType() != events.DataTypeString {
		return ""
	}
	return attr.String()
}

func main() {
	lambda.Start(handleRequest)
}
