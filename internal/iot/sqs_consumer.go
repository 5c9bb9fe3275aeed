package iot

import (
	"context"
	"time"

	"campus_parking/internal/logging"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	maxMessages       = 10
	waitTimeSeconds   = 20
	visibilityTimeout = 60
	defaultRetryDelay = 5 * time.Second
)

// SQSAPI is the subset of *sqs.Client the consumer uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// EventHandler processes one message body; a nil error acknowledges the message.
type EventHandler interface {
	HandleDeviceEvent(ctx context.Context, body string) error
}

type SQSConsumer struct {
	sqsClient  SQSAPI
	queueURL   string
	handler    EventHandler
	retryDelay time.Duration
}

func NewSQSConsumer(client SQSAPI, queueURL string, handler EventHandler) *SQSConsumer {
	return &SQSConsumer{
		sqsClient:  client,
		queueURL:   queueURL,
		handler:    handler,
		retryDelay: defaultRetryDelay,
	}
}

// Start long-polls the queue until ctx is cancelled.
func (c *SQSConsumer) Start(ctx context.Context) {
	logging.Infof(ctx, "SQS Consumer: listening on queue %s", c.queueURL)
	for {
		select {
		case <-ctx.Done():
			logging.Infof(ctx, "SQS Consumer: context cancelled, stopping")
			return
		default:
		}

		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Errorf(ctx, "SQS Consumer: receive failed: %v", err)
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				logging.Infof(ctx, "SQS Consumer: context cancelled while waiting for retry")
				return
			}
		}
	}
}

// poll runs one receive round and handles what it got.
func (c *SQSConsumer) poll(ctx context.Context) error {
	result, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: maxMessages,
		WaitTimeSeconds:     waitTimeSeconds,
		VisibilityTimeout:   visibilityTimeout,
	})
	if err != nil {
		return err
	}
	if len(result.Messages) == 0 {
		return nil
	}

	logging.Debugf(ctx, "SQS Consumer: received %d message(s)", len(result.Messages))
	for _, message := range result.Messages {
		c.handle(ctx, message)
	}
	return nil
}

func (c *SQSConsumer) handle(ctx context.Context, message types.Message) {
	if message.Body == nil {
		logging.Warnf(ctx, "SQS Consumer: message %s has an empty body, deleting", aws.ToString(message.MessageId))
		c.deleteMessage(ctx, message.ReceiptHandle)
		return
	}

	if err := c.handler.HandleDeviceEvent(ctx, *message.Body); err != nil {
		logging.Warnf(ctx, "SQS Consumer: message %s failed: %v; left for redelivery after visibility timeout",
			aws.ToString(message.MessageId), err)
		return
	}
	c.deleteMessage(ctx, message.ReceiptHandle)
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		logging.Warnf(ctx, "SQS Consumer: missing receipt handle, cannot delete message")
		return
	}
	_, err := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		logging.Errorf(ctx, "SQS Consumer: delete failed: %v", err)
	}
}
