package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
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
	"github.com/commercelab/invoice-saga/pkg/saga"
	dynamostore "github.com/commercelab/invoice-saga/pkg/stores/dynamodb"
	s3store "github.com/commercelab/invoice-saga/pkg/stores/s3"
)

// statusResponse is the body of the transaction status query.
type statusResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"transactionStatus"`
	Timestamp     int64  `json:"timestamp"`
}

var (
	issuer       *saga.Issuer
	transactions saga.TransactionStore
	log          = logging.With("invoice-url")
)

func init() {
	cfg := config.LoadInvoice()
	cfg.Bucket = config.MustRequire("BUCKET_NAME")

	awsCfg, err := awsconfig.Load(context.Background(), cfg.AWS)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading AWS config: %v\n", err)
		os.Exit(1)
	}

	ddb := awsdynamodb.NewFromConfig(awsCfg)
	store := dynamostore.NewTransactionStore(ddb, cfg.InvoicesTable, log)
	transactions = store

	issuer = saga.NewIssuer(saga.IssuerConfig{
		Bucket:       cfg.Bucket,
		URLExpiresIn: 5 * time.Minute,
		// The fire-and-forget flow has no client session bounding it, so the
		// record lives longer before the TTL sweep classifies it.
		RecordTTL: time.Hour,
	}, store, s3store.New(awss3.NewFromConfig(awsCfg), log), log)
}

func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	lambdaRequestID := ""
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		lambdaRequestID = lc.AwsRequestID
	}

	if request.Resource == "/invoices" {
		switch request.HTTPMethod {
		case http.MethodPost:
			return issueSlot(ctx, lambdaRequestID)
		case http.MethodGet:
			if id := request.QueryStringParameters["transactionId"]; id != "" {
				return queryStatus(ctx, id)
			}
		}
	}

	return respond(http.StatusBadRequest, map[string]string{"message": "Bad request"})
}

func issueSlot(ctx context.Context, requestID string) (events.APIGatewayProxyResponse, error) {
	slot, err := issuer.Issue(ctx, saga.IssueInput{RequestID: requestID})
	if err != nil {
		log.Error().Err(err).Msg("failed to issue upload slot")
		return respond(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	return respond(http.StatusOK, slot)
}

func queryStatus(ctx context.Context, transactionID string) (events.APIGatewayProxyResponse, error) {
	tx, err := transactions.Get(ctx, transactionID)
	if err != nil {
		if errors.Is(err, saga.ErrTransactionNotFound) {
			return respond(http.StatusNotFound, map[string]string{
				"message": fmt.Sprintf("Transaction id %s not found", transactionID),
			})
		}
		log.Error().Err(err).Str("transactionId", transactionID).Msg("failed to read transaction")
		return respond(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return respond(http.StatusOK, statusResponse{
		TransactionID: tx.ID,
		Status:        string(tx.Status),
		Timestamp:     tx.Timestamp,
	})
}

func respond(status int, body interface{}) (events.APIGatewayProxyResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, nil
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}, nil
}

func main() {
	lambda.Start(handleRequest)
}
