// Package eventbridge implements the audit bus on Amazon EventBridge.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog"

	"github.com/commercelab/invoice-saga/internal/metrics"
	"github.com/commercelab/invoice-saga/pkg/audit"
)

// Bus publishes audit entries to a named EventBridge bus.
type Bus struct {
	client  *eventbridge.Client
	busName string
	log     zerolog.Logger
}

// New creates a Bus.
func New(client *eventbridge.Client, busName string, log zerolog.Logger) *Bus {
	return &Bus{client: client, busName: busName, log: log}
}

// Publish implements audit.Bus.
func (b *Bus) Publish(ctx context.Context, entry audit.Entry) error {
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal audit detail: %w", err)
	}

	var out *eventbridge.PutEventsOutput
	err = metrics.Measure(b.log, metrics.PublishOperation, "audit.putEvents", func() error {
		var perr error
		out, perr = b.client.PutEvents(ctx, &eventbridge.PutEventsInput{
			Entries: []types.PutEventsRequestEntry{
				{
					EventBusName: aws.String(b.busName),
					Source:       aws.String(entry.Source),
					DetailType:   aws.String(entry.DetailType),
					Detail:       aws.String(string(detail)),
				},
			},
		})
		return perr
	})
	if err != nil {
		return fmt.Errorf("failed to put audit event: %w", err)
	}
	if out.FailedEntryCount > 0 {
		return fmt.Errorf("audit event rejected by bus %s", b.busName)
	}

	b.log.Debug().Str("source", entry.Source).Str("detailType", entry.DetailType).Msg("audit event published")
	return nil
}
