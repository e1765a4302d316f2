package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
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
	store appevents.Store
	log   = logging.With("product-events-fetch")
)

func init() {
	cfg := config.LoadOrders()

	awsCfg, err := awsconfig.Load(context.Background(), cfg.AWS)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading AWS config: %v\n", err)
		os.Exit(1)
	}

	store = dynamostore.NewEventStore(awsdynamodb.NewFromConfig(awsCfg), cfg.EventsTable, log)
}

// handleRequest serves the read side of the event store:
//
//	GET /products/events/{code}
//	GET /products/events/{code}/{eventType}
//	GET /products/events?username=...
func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch request.Resource {
	case "/products/events/{code}":
		recs, err := store.QueryByKey(ctx, appevents.ProductKeyPrefix+request.PathParameters["code"])
		return respondRecords(recs, err)

	case "/products/events/{code}/{eventType}":
		recs, err := store.QueryByKeyAndType(ctx,
			appevents.ProductKeyPrefix+request.PathParameters["code"],
			request.PathParameters["eventType"])
		return respondRecords(recs, err)

	case "/products/events":
		if username := request.QueryStringParameters["username"]; username != "" {
			recs, err := store.QueryByUsername(ctx, username, appevents.ProductKeyPrefix)
			return respondRecords(recs, err)
		}
	}

	return respond(http.StatusBadRequest, map[string]string{"message": "Bad request"})
}

func respondRecords(recs []*appevents.Record, err error) (events.APIGatewayProxyResponse, error) {
	if err != nil {
		log.Error().Err(err).Msg("event query failed")
		return respond(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	return respond(http.StatusOK, appevents.ToViews(recs))
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
