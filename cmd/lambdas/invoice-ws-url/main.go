package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/commercelab/invoice-saga/internal/awsconfig"
	"github.com/commercelab/invoice-saga/internal/config"
	"github.com/commercelab/invoice-saga/internal/logging"
	"github.com/commercelab/invoice-saga/pkg/notify"
	"github.com/commercelab/invoice-saga/pkg/notify/apigateway"
	"github.com/commercelab/invoice-saga/pkg/saga"
	dynamostore "github.com/commercelab/invoice-saga/pkg/stores/dynamodb"
	s3store "github.com/commercelab/invoice-saga/pkg/stores/s3"
)

var (
	issuer     *saga.Issuer
	notifier   notify.Notifier
	wsEndpoint string
	log        = logging.With("invoice-ws-url")
)

func init() {
	cfg := config.LoadInvoice()
	cfg.Bucket = config.MustRequire("BUCKET_NAME")
	wsEndpoint = config.MustRequire("INVOICE_WSAPI_ENDPOINT")

	awsCfg, err := awsconfig.Load(context.Background(), cfg.AWS)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading AWS config: %v\n", err)
		os.Exit(1)
	}

	notifier = apigateway.New(awsCfg, log)
	issuer = saga.NewIssuer(saga.IssuerConfig{
		Bucket:       cfg.Bucket,
		URLExpiresIn: 5 * time.Minute,
		// Tight TTL: the saga only matters while the client session lives.
		RecordTTL: 2 * time.Minute,
	}, dynamostore.NewTransactionStore(awsdynamodb.NewFromConfig(awsCfg), cfg.InvoicesTable, log),
		s3store.New(awss3.NewFromConfig(awsCfg), log), log)
}

// handleRequest issues an upload slot for the connected client. There is no
// request/response channel on a WebSocket route, so the slot goes back as a
// push over the same connection.
func handleRequest(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := request.RequestContext.ConnectionID

	lambdaRequestID := ""
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		lambdaRequestID = lc.AwsRequestID
	}

	log.Info().Str("connectionId", connectionID).Str("requestId", lambdaRequestID).Msg("slot requested")

	slot, err := issuer.Issue(ctx, saga.IssueInput{
		RequestID:    lambdaRequestID,
		ConnectionID: connectionID,
		Endpoint:     wsEndpoint,
	})
	if err != nil {
		log.Error().Err(err).Str("connectionId", connectionID).Msg("failed to issue upload slot")
		return events.APIGatewayProxyResponse{StatusCode: 500}, nil
	}

	data, err := json.Marshal(notify.SlotMessage{
		URL:           slot.URL,
		ExpiresIn:     slot.ExpiresIn,
		TransactionID: slot.TransactionID,
	})
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: 500}, nil
	}

	if err := notifier.Post(ctx, wsEndpoint, connectionID, data); err != nil {
		// The record exists and will expire on its own; a client that left
		// before the push simply never learns its slot.
		log.Warn().Err(err).Str("connectionId", connectionID).Msg("failed to push slot to client")
	}

	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func main() {
	lambda.Start(handleRequest)
}
