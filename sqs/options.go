package sqs

import (
	"errors"
	"time"
)

// Option is a functional option for configuring a [Client].
// Options are passed to [New] and applied before [Client.Init] is called.
type Option func(*Options)

// Options holds the resolved configuration for a [Client].
type Options struct {
	sqsVisibilityTimeoutSeconds     int32
	sqsNackVisibilityTimeoutSeconds int32
	sqsReceiveMaxNumberOfMessages   int32
	sqsReceiveWaitTimeSeconds       int32
	sqsAPIMaxRetryAttempts          int
	sqsAPIMaxRetryBackoffDelay      time.Duration
	receiveErrorBackoff             time.Duration
	maxOutstandingMessages          int
	endpoint                        string
	sqsClient                       sqsClient // Optional: injected SQS client for testing
}

func newOptions() *Options {
	return &Options{
		sqsVisibilityTimeoutSeconds:     30,
		sqsNackVisibilityTimeoutSeconds: 5,
		sqsReceiveMaxNumberOfMessages:   10,
		sqsReceiveWaitTimeSeconds:       20,
		sqsAPIMaxRetryAttempts:          5,
		sqsAPIMaxRetryBackoffDelay:      10 * time.Second,
		receiveErrorBackoff:             5 * time.Second,
		maxOutstandingMessages:          10,
	}
}

func (o *Options) validate() error {
	if o.sqsVisibilityTimeoutSeconds < 10 || o.sqsVisibilityTimeoutSeconds > 3600 {
		return errors.New("SQS message visibility timeout must be between 10 seconds and 1 hour")
	}

	if o.sqsNackVisibilityTimeoutSeconds < 0 || o.sqsNackVisibilityTimeoutSeconds > o.sqsVisibilityTimeoutSeconds {
		return errors.New("SQS nack visibility timeout must be between 0 and the visibility timeout")
	}

	if o.sqsReceiveMaxNumberOfMessages < 1 || o.sqsReceiveMaxNumberOfMessages > 10 {
		return errors.New("max number of messages per SQS receive must be between 1 and 10")
	}

	if o.sqsReceiveWaitTimeSeconds < 0 || o.sqsReceiveWaitTimeSeconds > 20 {
		return errors.New("SQS receive wait time must be between 0 and 20 seconds")
	}

	if o.sqsAPIMaxRetryAttempts < 0 || o.sqsAPIMaxRetryAttempts > 10 {
		return errors.New("max SQS API retry attempts must be between 0 and 10")
	}

	if o.sqsAPIMaxRetryBackoffDelay < 1*time.Second || o.sqsAPIMaxRetryBackoffDelay > 30*time.Second {
		return errors.New("max SQS API retry backoff delay must be between 1 and 30 seconds")
	}

	if o.receiveErrorBackoff <= 0 {
		return errors.New("receive error backoff must be positive")
	}

	if o.maxOutstandingMessages < 1 {
		return errors.New("max outstanding messages must be greater than or equal to 1")
	}

	return nil
}

// WithSqsVisibilityTimeout sets the visibility timeout applied to each
// received message. It also bounds how long one message may be processed.
// Must be between 10 and 3600 seconds. Default: 30.
func WithSqsVisibilityTimeout(seconds int32) Option {
	return func(o *Options) {
		o.sqsVisibilityTimeoutSeconds = seconds
	}
}

// WithSqsNackVisibilityTimeout sets how long a message whose processing
// failed stays hidden before it is redelivered. Must be between 0 and the
// visibility timeout. Default: 5.
func WithSqsNackVisibilityTimeout(seconds int32) Option {
	return func(o *Options) {
		o.sqsNackVisibilityTimeoutSeconds = seconds
	}
}

// WithSqsReceiveMaxNumberOfMessages sets the maximum number of messages
// returned by a single ReceiveMessage API call. Must be between 1 and 10.
// Default: 10.
func WithSqsReceiveMaxNumberOfMessages(n int32) Option {
	return func(o *Options) {
		o.sqsReceiveMaxNumberOfMessages = n
	}
}

// WithSqsReceiveWaitTimeSeconds sets the long-poll wait duration for each
// ReceiveMessage API call. Must be between 0 and 20 seconds. Default: 20.
func WithSqsReceiveWaitTimeSeconds(seconds int32) Option {
	return func(o *Options) {
		o.sqsReceiveWaitTimeSeconds = seconds
	}
}

// WithSqsAPIMaxRetryAttempts sets the maximum number of retry attempts for
// failed SQS API calls. Must be between 0 and 10. Default: 5.
func WithSqsAPIMaxRetryAttempts(n int) Option {
	return func(o *Options) {
		o.sqsAPIMaxRetryAttempts = n
	}
}

// WithSqsAPIMaxRetryBackoffDelay sets the maximum backoff delay between
// consecutive SQS API retry attempts. Must be between 1 second and 30 seconds.
// Default: 10 seconds.
func WithSqsAPIMaxRetryBackoffDelay(d time.Duration) Option {
	return func(o *Options) {
		o.sqsAPIMaxRetryBackoffDelay = d
	}
}

// WithReceiveErrorBackoff sets the pause after a failed ReceiveMessage call
// before [Client.Receive] polls again. Default: 5 seconds.
func WithReceiveErrorBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.receiveErrorBackoff = d
	}
}

// WithMaxOutstandingMessages sets how many received messages may be
// processed at once. [Client.Receive] stops polling while the limit is
// reached. Must be at least 1. Default: 10.
func WithMaxOutstandingMessages(n int) Option {
	return func(o *Options) {
		o.maxOutstandingMessages = n
	}
}

// WithEndpoint points the SQS client at a custom endpoint, such as a local
// ElasticMQ or LocalStack instance.
func WithEndpoint(endpoint string) Option {
	return func(o *Options) {
		o.endpoint = endpoint
	}
}

// WithSQSClient replaces the default AWS SQS client with a custom
// implementation of the internal sqsClient interface. This option is
// intended for testing with mock or stub clients.
func WithSQSClient(client sqsClient) Option {
	return func(o *Options) {
		o.sqsClient = client
	}
}
