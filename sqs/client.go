package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/quititoday/clickstats/internal/logger"
)

// ClickMessage is the JSON body of a queued click.
type ClickMessage struct {
	UserID          string `json:"userId"`
	SocialMediaType string `json:"socialMediaType,omitempty"`
	RequestID       string `json:"requestId,omitempty"`
}

// Message is one received queue message.
type Message struct {
	ID               string
	GroupID          string
	Body             string
	ReceiveCount     int
	ReceiveTimestamp time.Time
}

// Handler processes one message. Returning nil deletes the message from the
// queue; returning an error makes it visible again for redelivery.
type Handler func(ctx context.Context, msg *Message) error

// Client sends click messages to, and receives them from, an SQS FIFO queue.
//
// Create a Client with [New], then call [Client.Init] once before any other
// method. Init is not thread-safe; all other methods are safe for concurrent
// use after Init returns.
type Client struct {
	client      sqsClient
	queueName   string
	queueURL    string
	awsCfg      *aws.Config
	opts        *Options
	logger      logger.Logger
	initialized bool
}

// New creates a Client for the named SQS FIFO queue. The queue name must end
// with ".fifo"; this constraint is enforced by [Client.Init].
//
// New does not connect to AWS. Call [Client.Init] to resolve the queue URL.
func New(awsCfg *aws.Config, queueName string, log logger.Logger, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg:    awsCfg,
		queueName: queueName,
		opts:      options,
		logger:    log.With("component", "sqs", "queue_name", queueName),
	}
}

// Init validates options and resolves the queue URL via GetQueueUrl. It
// returns the receiver so that initialization can be chained with [New]:
//
//	client, err := sqs.New(&awsCfg, "clicks.fifo", log).Init(ctx)
//
// Init is idempotent. It is not thread-safe and must be called once during
// application startup before any concurrent access.
func (c *Client) Init(ctx context.Context) (*Client, error) {
	if c.initialized {
		return c, nil
	}

	if !strings.HasSuffix(c.queueName, ".fifo") {
		return nil, errors.New("the SQS queue must be a FIFO queue (the name must end with .fifo)")
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid SQS options: %w", err)
	}

	if c.opts.sqsClient != nil {
		c.client = c.opts.sqsClient
	} else {
		if c.awsCfg == nil {
			return nil, errors.New("AWS config cannot be nil")
		}

		c.client = sqs.NewFromConfig(*c.awsCfg, func(o *sqs.Options) {
			o.Retryer = retry.AddWithMaxBackoffDelay(o.Retryer, c.opts.sqsAPIMaxRetryBackoffDelay)
			o.Retryer = retry.AddWithMaxAttempts(o.Retryer, c.opts.sqsAPIMaxRetryAttempts)

			if c.opts.endpoint != "" {
				o.BaseEndpoint = aws.String(c.opts.endpoint)
			}
		})
	}

	resp, err := c.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(c.queueName)})
	if err != nil {
		return nil, fmt.Errorf("failed to get SQS queue URL for %s: %w", c.queueName, err)
	}

	c.queueURL = aws.ToString(resp.QueueUrl)
	c.initialized = true

	return c, nil
}

// Name returns the SQS queue name supplied to [New].
func (c *Client) Name() string {
	return c.queueName
}

// SendClick enqueues a click. The subject id is the message group, and
// RequestID is the deduplication id. A message without a RequestID gets a
// random one and is therefore never deduplicated.
func (c *Client) SendClick(ctx context.Context, msg *ClickMessage) error {
	if msg == nil || msg.UserID == "" {
		return errors.New("click message must have a userId")
	}

	dedupID := msg.RequestID
	if dedupID == "" {
		dedupID = uuid.NewString()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal click message: %w", err)
	}

	return c.Send(ctx, msg.UserID, dedupID, string(body))
}

// Send publishes a single message to the FIFO queue.
//
// groupID is used as the SQS MessageGroupId, which determines message
// ordering within the queue. dedupID is used as the SQS
// MessageDeduplicationId. Both fields are required and must be non-empty.
func (c *Client) Send(ctx context.Context, groupID, dedupID, body string) error {
	if !c.initialized {
		return errors.New("SQS client not initialized")
	}

	if groupID == "" {
		return errors.New("groupID cannot be empty")
	}

	if dedupID == "" {
		return errors.New("dedupID cannot be empty")
	}

	if body == "" {
		return errors.New("body cannot be empty")
	}

	input := &sqs.SendMessageInput{
		QueueUrl:               &c.queueURL,
		MessageGroupId:         &groupID,
		MessageDeduplicationId: &dedupID,
		MessageBody:            &body,
	}

	if _, err := c.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to send SQS message: %w", err)
	}

	c.logger.Debug("SQS message sent", "group_id", groupID, "dedup_id", dedupID)

	return nil
}

// Receive reads messages in a loop and runs handler on each one, with at
// most [WithMaxOutstandingMessages] handlers running at once. It stops
// polling while that limit is reached.
//
// A handler runs with a context that is not cancelled by ctx but is bounded
// by the visibility timeout, so in-flight messages finish during shutdown.
//
// On a receive error Receive logs the failure and polls again after
// [WithReceiveErrorBackoff]. It blocks until ctx is cancelled, waits for
// in-flight handlers, and returns ctx.Err().
func (c *Client) Receive(ctx context.Context, handler Handler) error {
	if !c.initialized {
		return errors.New("SQS client not initialized")
	}

	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	g := &errgroup.Group{}
	g.SetLimit(c.opts.maxOutstandingMessages)

	defer func() { _ = g.Wait() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := c.read(ctx, g, handler)
		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Error("Error reading SQS queue", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.receiveErrorBackoff):
		}
	}
}

func (c *Client) read(ctx context.Context, g *errgroup.Group, handler Handler) error {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: c.opts.sqsReceiveMaxNumberOfMessages,
		VisibilityTimeout:   c.opts.sqsVisibilityTimeoutSeconds,
		WaitTimeSeconds:     c.opts.sqsReceiveWaitTimeSeconds,
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
			sqstypes.MessageSystemAttributeNameMessageGroupId,
			sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
		},
	}

	output, err := c.client.ReceiveMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to receive SQS messages: %w", err)
	}

	now := time.Now()

	for _, m := range output.Messages {
		receiveCount, _ := strconv.Atoi(m.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)])

		msg := &Message{
			ID:               aws.ToString(m.MessageId),
			GroupID:          m.Attributes[string(sqstypes.MessageSystemAttributeNameMessageGroupId)],
			Body:             aws.ToString(m.Body),
			ReceiveCount:     receiveCount,
			ReceiveTimestamp: now,
		}
		receiptHandle := aws.ToString(m.ReceiptHandle)

		c.logger.Debug("SQS message received", "message_id", msg.ID)

		g.Go(func() error {
			c.process(ctx, msg, receiptHandle, handler) //nolint:contextcheck // processing outlives the receive loop
			return nil
		})
	}

	return nil
}

func (c *Client) process(ctx context.Context, msg *Message, receiptHandle string, handler Handler) {
	timeout := time.Duration(c.opts.sqsVisibilityTimeoutSeconds) * time.Second

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := handler(ctx, msg); err != nil {
		c.logger.Warn("SQS message processing failed", "message_id", msg.ID, "receive_count", msg.ReceiveCount, "error", err)
		c.nackMessage(msg.ID, receiptHandle)

		return
	}

	c.deleteMessage(msg.ID, receiptHandle)
}

// deleteMessage and nackMessage use context.Background() with a short
// timeout because they must complete regardless of the caller's context
// state.
func (c *Client) deleteMessage(messageID, receiptHandle string) {
	input := &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: &receiptHandle,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := c.client.DeleteMessage(ctx, input); err != nil {
		c.logger.Error("Failed to delete SQS message", "message_id", messageID, "error", err)
		return
	}

	c.logger.Debug("SQS message deleted", "message_id", messageID)
}

func (c *Client) nackMessage(messageID, receiptHandle string) {
	input := &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          &c.queueURL,
		ReceiptHandle:     &receiptHandle,
		VisibilityTimeout: c.opts.sqsNackVisibilityTimeoutSeconds,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := c.client.ChangeMessageVisibility(ctx, input); err != nil {
		c.logger.Error("Failed to reset SQS message visibility", "message_id", messageID, "error", err)
		return
	}

	c.logger.Debug("SQS message visibility reset", "message_id", messageID, "visibility_timeout_seconds", c.opts.sqsNackVisibilityTimeoutSeconds)
}
