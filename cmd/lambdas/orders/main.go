package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/commercelab/invoice-saga/internal/awsconfig"
	"github.com/commercelab/invoice-saga/internal/config"
	"github.com/commercelab/invoice-saga/internal/logging"
	"github.com/commercelab/invoice-saga/pkg/audit/eventbridge"
	appevents "github.com/commercelab/invoice-saga/pkg/events"
	"github.com/commercelab/invoice-saga/pkg/orders"
	dynamostore "github.com/commercelab/invoice-saga/pkg/stores/dynamodb"
)

// createOrderRequest is the POST /orders body.
type createOrderRequest struct {
	Username   string   `json:"username"`
	ProductIDs []string `json:"productIds"`
}

var (
	service *orders.Service
	log     = logging.With("orders")
)

func init() {
	cfg := config.LoadOrders()
	cfg.TopicARN = config.MustRequire("ORDER_EVENTS_TOPIC_ARN")

	awsCfg, err := awsconfig.Load(context.Background(), cfg.AWS)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading AWS config: %v\n", err)
		os.Exit(1)
	}

	ddb := awsdynamodb.NewFromConfig(awsCfg)
	service = orders.NewService(
		dynamostore.NewOrderStore(ddb, cfg.OrdersTable, log),
		dynamostore.NewProductStore(ddb, cfg.ProductsTable, log),
		appevents.NewPublisher(awssns.NewFromConfig(awsCfg), cfg.TopicARN, log),
		eventbridge.New(awseventbridge.NewFromConfig(awsCfg), cfg.AuditBusName, log),
		log,
	)
}

func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := ""
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		requestID = lc.AwsRequestID
	}

	if request.Resource != "/orders" {
		return respond(http.StatusBadRequest, map[string]string{"message": "Bad request"})
	}

	switch request.HTTPMethod {
	case http.MethodGet:
		return getOrders(ctx, request)
	case http.MethodPost:
		return createOrder(ctx, request, requestID)
	case http.MethodDelete:
		return deleteOrder(ctx, request, requestID)
	}

	return respond(http.StatusBadRequest, map[string]string{"message": "Bad request"})
}

func getOrders(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	username := request.QueryStringParameters["username"]
	orderID := request.QueryStringParameters["orderId"]
	if username == "" {
		return respond(http.StatusBadRequest, map[string]string{"message": "username is required"})
	}

	if orderID != "" {
		order, err := service.Get(ctx, username, orderID)
		if err != nil {
			if errors.Is(err, orders.ErrOrderNotFound) {
				return respond(http.StatusNotFound, map[string]string{"message": "Order not found"})
			}
			log.Error().Err(err).Msg("failed to read order")
			return respond(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
		}
		return respond(http.StatusOK, order)
	}

	list, err := service.ListByUsername(ctx, username)
	if err != nil {
		log.Error().Err(err).Msg("failed to list orders")
		return respond(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	return respond(http.StatusOK, list)
}

func createOrder(ctx context.Context, request events.APIGatewayProxyRequest, requestID string) (events.APIGatewayProxyResponse, error) {
	var body createOrderRequest
	if err := json.Unmarshal([]byte(request.Body), &body); err != nil || body.Username == "" || len(body.ProductIDs) == 0 {
		return respond(http.StatusBadRequest, map[string]string{"message": "Bad request"})
	}

	order, err := service.Create(ctx, body.Username, body.ProductIDs, requestID)
	if err != nil {
		if errors.Is(err, orders.ErrProductNotFound) {
			return respond(http.StatusNotFound, map[string]string{"message": "Some product was not found"})
		}
		log.Error().Err(err).Msg("failed to create order")
		return respond(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	return respond(http.StatusCreated, order)
}

func deleteOrder(ctx context.Context, request events.APIGatewayProxyRequest, requestID string) (events.APIGatewayProxyResponse, error) {
	username := request.QueryStringParameters["username"]
	orderID := request.QueryStringParameters["orderId"]
	if username == "" || orderID == "" {
		return respond(http.StatusBadRequest, map[string]string{"message": "username and orderId are required"})
	}

	order, err := service.Delete(ctx, username, orderID, requestID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return respond(http.StatusNotFound, map[string]string{"message": "Order not found"})
		}
		log.Error().Err(err).Msg("failed to delete order")
		return respond(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	return respond(http.StatusOK, order)
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
