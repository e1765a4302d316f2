// Package apigateway implements the notification layer on the API Gateway
// Management API for WebSocket-backed transactions.
package apigateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/rs/zerolog"

	"github.com/commercelab/invoice-saga/internal/metrics"
	"github.com/commercelab/invoice-saga/pkg/notify"
)

// Notifier implements notify.Notifier. The management API is endpoint-scoped,
// and the endpoint travels on the transaction record, so clients are built
// per endpoint and cached for the life of the process.
type Notifier struct {
	cfg aws.Config
	log zerolog.Logger

	mu      sync.Mutex
	clients map[string]*apigatewaymanagementapi.Client
}

// New creates a Notifier.
func New(cfg aws.Config, log zerolog.Logger) *Notifier {
	return &Notifier{
		cfg:     cfg,
		log:     log,
		clients: make(map[string]*apigatewaymanagementapi.Client),
	}
}

func (n *Notifier) client(endpoint string) *apigatewaymanagementapi.Client {
	n.mu.Lock()
	defer n.mu.Unlock()

	if c, ok := n.clients[endpoint]; ok {
		return c
	}

	url := endpoint
	if !strings.HasPrefix(url, "http") {
		url = "https://" + url
	}
	c := apigatewaymanagementapi.NewFromConfig(n.cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(url)
	})
	n.clients[endpoint] = c
	return c
}

// Post implements notify.Notifier.
func (n *Notifier) Post(ctx context.Context, endpoint, connectionID string, data []byte) error {
	return metrics.Measure(n.log, metrics.PushOperation, "connection.post", func() error {
		_, err := n.client(endpoint).PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
			ConnectionId: aws.String(connectionID),
			Data:         data,
		})
		if err != nil {
			return wrapGone(err, "PostToConnection")
		}
		return nil
	})
}

// Disconnect implements notify.Notifier.
func (n *Notifier) Disconnect(ctx context.Context, endpoint, connectionID string) error {
	return metrics.Measure(n.log, metrics.PushOperation, "connection.disconnect", func() error {
		_, err := n.client(endpoint).DeleteConnection(ctx, &apigatewaymanagementapi.DeleteConnectionInput{
			ConnectionId: aws.String(connectionID),
		})
		if err != nil {
			return wrapGone(err, "DeleteConnection")
		}
		return nil
	})
}

func wrapGone(err error, op string) error {
	var gone *types.GoneException
	if errors.As(err, &gone) {
		return notify.ErrConnectionGone
	}
	return fmt.Errorf("%s operation failed: %w", op, err)
}
