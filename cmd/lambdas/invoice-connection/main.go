package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/commercelab/invoice-saga/internal/logging"
)

var log = logging.With("invoice-connection")

// handleRequest acknowledges WebSocket $connect and $disconnect. The
// connection handle only becomes meaningful once a slot request attaches it
// to a transaction record, so there is nothing to persist here.
func handleRequest(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	log.Info().
		Str("routeKey", request.RequestContext.RouteKey).
		Str("connectionId", request.RequestContext.ConnectionID).
		Msg("connection lifecycle event")

	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func main() {
	lambda.Start(handleRequest)
}
