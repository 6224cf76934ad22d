// Package queue provides the SQS-backed transcode job queue. Delivery is
// at-least-once; consumers must be idempotent keyed on session id.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/reelworks/vod-pipeline/pkg/models"
)

// SQS configuration constants
const (
	MaxMessages       = 1
	WaitTimeSeconds   = 20
	VisibilityTimeout = 900 // 15 minutes
)

// Message is one received job plus the handle needed to acknowledge it.
type Message struct {
	Job           models.TranscodeJob
	ReceiptHandle string
	MessageID     string
}

// Queue wraps an SQS queue for transcode jobs.
type Queue struct {
	client   *sqs.Client
	queueURL string
}

// New creates a Queue for the given queue URL.
func New(client *sqs.Client, queueURL string) *Queue {
	return &Queue{
		client:   client,
		queueURL: queueURL,
	}
}

// Enqueue publishes a transcode job.
func (q *Queue) Enqueue(ctx context.Context, job *models.TranscodeJob) error {
	if err := job.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send job: %w", err)
	}

	return nil
}

// Receive long-polls for jobs. A job stays invisible for the visibility
// timeout; if it is not acknowledged in time it is redelivered.
func (q *Queue) Receive(ctx context.Context) ([]Message, error) {
	result, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: MaxMessages,
		WaitTimeSeconds:     WaitTimeSeconds,
		VisibilityTimeout:   VisibilityTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	messages := make([]Message, 0, len(result.Messages))
	for _, msg := range result.Messages {
		parsed, err := parseMessage(msg)
		if err != nil {
			// A malformed message would redeliver forever; drop it.
			if delErr := q.deleteByHandle(ctx, msg.ReceiptHandle); delErr != nil {
				return nil, fmt.Errorf("%w (and failed to drop: %v)", err, delErr)
			}
			continue
		}
		messages = append(messages, *parsed)
	}

	return messages, nil
}

// Ack removes a processed job from the queue.
func (q *Queue) Ack(ctx context.Context, msg Message) error {
	return q.deleteByHandle(ctx, aws.String(msg.ReceiptHandle))
}

func (q *Queue) deleteByHandle(ctx context.Context, handle *string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: handle,
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func parseMessage(msg types.Message) (*Message, error) {
	if msg.Body == nil {
		return nil, fmt.Errorf("%w: empty message body", models.ErrJobParseFailed)
	}

	var job models.TranscodeJob
	if err := json.Unmarshal([]byte(*msg.Body), &job); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrJobParseFailed, err)
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrJobParseFailed, err)
	}

	out := &Message{Job: job}
	if msg.ReceiptHandle != nil {
		out.ReceiptHandle = *msg.ReceiptHandle
	}
	if msg.MessageId != nil {
		out.MessageID = *msg.MessageId
	}
	return out, nil
}
