package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/rs/zerolog"

	"github.com/commercelab/invoice-saga/internal/metrics"
)

// Publisher publishes domain events to the SNS topic. The event type is
// duplicated as a message attribute so queue subscriptions can filter without
// parsing the body.
type Publisher struct {
	client   *sns.Client
	topicARN string
	log      zerolog.Logger
}

// NewPublisher creates a Publisher for the given topic.
func NewPublisher(client *sns.Client, topicARN string, log zerolog.Logger) *Publisher {
	return &Publisher{
		client:   client,
		topicARN: topicARN,
		log:      log,
	}
}

// Publish wraps event in an Envelope and publishes it, returning the SNS
// message id.
func (p *Publisher) Publish(ctx context.Context, eventType string, event interface{}) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	body, err := json.Marshal(Envelope{EventType: eventType, Data: string(data)})
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	var out *sns.PublishOutput
	err = metrics.Measure(p.log, metrics.PublishOperation, "events.publish", func() error {
		var perr error
		out, perr = p.client.Publish(ctx, &sns.PublishInput{
			TopicArn: aws.String(p.topicARN),
			Message:  aws.String(string(body)),
			MessageAttributes: map[string]types.MessageAttributeValue{
				"eventType": {
					DataType:    aws.String("String"),
					StringValue: aws.String(eventType),
				},
			},
		})
		return perr
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	messageID := aws.ToString(out.MessageId)
	p.log.Debug().Str("eventType", eventType).Str("messageId", messageID).Msg("event published")
	return messageID, nil
}
