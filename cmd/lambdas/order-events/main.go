package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/commercelab/invoice-saga/internal/awsconfig"
	"github.com/commercelab/invoice-saga/internal/config"
	"github.com/commercelab/invoice-saga/internal/logging"
	appevents "github.com/commercelab/invoice-saga/pkg/events"
	dynamostore "github.com/commercelab/invoice-saga/pkg/stores/dynamodb"
)

var (
	consumer *appevents.Consumer
	log      = logging.With("order-events")
)

func init() {
	cfg := config.LoadOrders()

	awsCfg, err := awsconfig.Load(context.Background(), cfg.AWS)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading AWS config: %v\n", err)
		os.Exit(1)
	}

	consumer = appevents.NewConsumer(
		dynamostore.NewEventStore(awsdynamodb.NewFromConfig(awsCfg), cfg.EventsTable, log),
		log,
	)
}

// handleRequest persists each queued order event. Failed messages are
// reported back to the queue individually, so redelivery (and eventually the
// queue's dead-letter diversion) applies per message, not per batch.
func handleRequest(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	var response events.SQSEventResponse

	for _, record := range event.Records {
		if err := consumer.HandleMessage(ctx, record.Body); err != nil {
			log.Error().Err(err).Str("messageId", record.MessageId).Msg("failed to process queued event")
			response.BatchItemFailures = append(response.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}

	return response, nil
}

func main() {
	lambda.Start(handleRequest)
}
