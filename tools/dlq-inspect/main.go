// Command dlq-inspect lists, drains or redrives dead-letter queue messages.
// Dead letters are never retried automatically; this is the out-of-band
// handling path.
//
//	dlq-inspect -queue <url>                  peek at messages
//	dlq-inspect -queue <url> -redrive <url>   move messages to another queue
//	dlq-inspect -queue <url> -purge           delete inspected messages
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/olekukonko/tablewriter"

	"github.com/commercelab/invoice-saga/internal/awsconfig"
	"github.com/commercelab/invoice-saga/internal/config"
)

const bodyPreviewLen = 96

func main() {
	queueURL := flag.String("queue", os.Getenv("DLQ_URL"), "dead-letter queue URL")
	redriveURL := flag.String("redrive", "", "destination queue URL to move messages to")
	purge := flag.Bool("purge", false, "delete inspected messages")
	limit := flag.Int("limit", 10, "maximum messages to inspect")
	flag.Parse()

	if *queueURL == "" {
		log.Fatal("a queue URL is required (-queue or DLQ_URL)")
	}

	ctx := context.Background()
	awsCfg, err := awsconfig.Load(ctx, config.LoadAWS())
	if err != nil {
		log.Fatalf("Unable to load SDK config: %v", err)
	}
	client := awssqs.NewFromConfig(awsCfg)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Message ID", "Sent", "Receives", "Body"})
	table.SetAutoWrapText(false)

	inspected := 0
	for inspected < *limit {
		out, err := client.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
			QueueUrl:            queueURL,
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     1,
			AttributeNames: []types.QueueAttributeName{
				types.QueueAttributeName("SentTimestamp"),
				types.QueueAttributeName("ApproximateReceiveCount"),
			},
		})
		if err != nil {
			log.Fatalf("Failed to receive messages: %v", err)
		}
		if len(out.Messages) == 0 {
			break
		}

		for _, msg := range out.Messages {
			inspected++
			table.Append([]string{
				aws.ToString(msg.MessageId),
				formatSentTimestamp(msg.Attributes["SentTimestamp"]),
				msg.Attributes["ApproximateReceiveCount"],
				preview(aws.ToString(msg.Body)),
			})

			if *redriveURL != "" {
				_, err := client.SendMessage(ctx, &awssqs.SendMessageInput{
					QueueUrl:    redriveURL,
					MessageBody: msg.Body,
				})
				if err != nil {
					log.Fatalf("Failed to redrive message %s: %v", aws.ToString(msg.MessageId), err)
				}
			}

			if *purge || *redriveURL != "" {
				_, err := client.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
					QueueUrl:      queueURL,
					ReceiptHandle: msg.ReceiptHandle,
				})
				if err != nil {
					log.Fatalf("Failed to delete message %s: %v", aws.ToString(msg.MessageId), err)
				}
			}

			if inspected >= *limit {
				break
			}
		}
	}

	if inspected == 0 {
		log.Println("Queue is empty")
		return
	}
	table.Render()
	log.Printf("Inspected %d message(s)", inspected)
}

func formatSentTimestamp(ms string) string {
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return ms
	}
	return time.UnixMilli(n).UTC().Format(time.RFC3339)
}

func preview(body string) string {
	if len(body) > bodyPreviewLen {
		return body[:bodyPreviewLen] + "..."
	}
	return body
}
