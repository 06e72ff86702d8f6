package datanorm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/searchterm-optimizer/internal/pkg/logger"
)

// SQSAPI is the subset of *sqs.Client the listener uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Inbox accepts newly created objects. *Watcher implements it.
type Inbox interface {
	Enqueue(ctx context.Context, key string, size int64) (bool, error)
	Trigger()
}

// SQSListener long-polls a queue that receives S3 ObjectCreated
// notifications for the inbox bucket, so new reports are picked up without
// waiting for the next poll interval.
type SQSListener struct {
	client   SQSAPI
	queueURL string
	bucket   string
	inbox    Inbox
	log      *logger.Logger
}

func NewSQSListener(client SQSAPI, queueURL, bucket string, inbox Inbox) *SQSListener {
	return &SQSListener{
		client:   client,
		queueURL: queueURL,
		bucket:   bucket,
		inbox:    inbox,
		log:      logger.With("component", "datanorm_sqs"),
	}
}

// s3Event is the S3 event notification body. SNS fan-out wraps it in
// an envelope whose Message field holds the same JSON as a string.
type s3Event struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
	Event   string `json:"Event"`
	Records []struct {
		EventName string `json:"eventName"`
		S3        struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key  string `json:"key"`
				Size int64  `json:"size"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// createdObject is one object named by a notification.
type createdObject struct {
	Key  string
	Size int64
}

// parseS3Event extracts created objects in bucket from a message body.
// Test events and other event types yield no objects.
func parseS3Event(body, bucket string) ([]createdObject, error) {
	var evt s3Event
	if err := json.Unmarshal([]byte(body), &evt); err != nil {
		return nil, fmt.Errorf("decode s3 event: %w", err)
	}
	if evt.Type == "Notification" && evt.Message != "" {
		return parseS3Event(evt.Message, bucket)
	}

	var objs []createdObject
	for _, r := range evt.Records {
		if !strings.HasPrefix(r.EventName, "ObjectCreated:") {
			continue
		}
		if bucket != "" && r.S3.Bucket.Name != bucket {
			continue
		}
		// Keys arrive form-encoded: spaces as '+', the rest percent-escaped.
		key, err := url.QueryUnescape(r.S3.Object.Key)
		if err != nil {
			key = r.S3.Object.Key
		}
		objs = append(objs, createdObject{Key: key, Size: r.S3.Object.Size})
	}
	return objs, nil
}

// Run polls until ctx is cancelled.
func (l *SQSListener) Run(ctx context.Context) {
	l.log.Info("sqs listener started", "queue", l.queueURL)
	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := l.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Error("sqs receive", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}
}

// PollOnce receives one batch of messages and returns how many new files
// were enqueued. Messages are deleted once handled; a message whose files
// could not be enqueued is left for redelivery.
func (l *SQSListener) PollOnce(ctx context.Context) (int, error) {
	out, err := l.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(l.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
	})
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, msg := range out.Messages {
		objs, err := parseS3Event(aws.ToString(msg.Body), l.bucket)
		if err != nil {
			l.log.Warn("sqs bad message", "error", err)
			l.deleteMessage(ctx, msg.ReceiptHandle)
			continue
		}

		failed := false
		for _, o := range objs {
			ok, err := l.inbox.Enqueue(ctx, o.Key, o.Size)
			if err != nil {
				l.log.Error("sqs enqueue", "key", o.Key, "error", err)
				failed = true
				continue
			}
			if ok {
				enqueued++
			}
		}
		if !failed {
			l.deleteMessage(ctx, msg.ReceiptHandle)
		}
	}

	if enqueued > 0 {
		l.inbox.Trigger()
	}
	return enqueued, nil
}

func (l *SQSListener) deleteMessage(ctx context.Context, handle *string) {
	if _, err := l.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(l.queueURL),
		ReceiptHandle: handle,
	}); err != nil {
		l.log.Warn("sqs delete message", "error", err)
	}
}
