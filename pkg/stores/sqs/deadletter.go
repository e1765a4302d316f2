// Package sqs implements the dead-letter destination for feed records that
// exhausted their retry budget.
package sqs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
)

// DeadLetter sends exhausted records to an SQS queue for out-of-band
// inspection and reprocessing.
type DeadLetter struct {
	client   *sqs.Client
	queueURL string
	log      zerolog.Logger
}

// NewDeadLetter creates a DeadLetter sender for the given queue.
func NewDeadLetter(client *sqs.Client, queueURL string, log zerolog.Logger) *DeadLetter {
	return &DeadLetter{client: client, queueURL: queueURL, log: log}
}

// Send implements saga.DeadLetter.
func (d *DeadLetter) Send(ctx context.Context, body []byte) error {
	out, err := d.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("SendMessage operation failed: %w", err)
	}
	d.log.Info().Str("messageId", aws.ToString(out.MessageId)).Msg("record dead-lettered")
	return nil
}
