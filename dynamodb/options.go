package dynamodb

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client]. Use [Option] functions
// (such as [WithEndpoint] or [WithConsistentReads]) to customise the
// defaults.
type Options struct {
	dynamoDBAPI     API
	endpoint        string
	maxAttempts     int
	consistentReads bool
	tableWait       time.Duration
}

func newOptions() *Options {
	return &Options{
		maxAttempts: 3,
		tableWait:   2 * time.Minute,
	}
}

func (o *Options) validate() error {
	if o.maxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}

	if o.tableWait <= 0 {
		return errors.New("table wait must be greater than zero")
	}

	if o.endpoint != "" {
		u, err := url.Parse(o.endpoint)
		if err != nil {
			return fmt.Errorf("invalid endpoint %q: %w", o.endpoint, err)
		}

		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("endpoint %q must be an absolute URL", o.endpoint)
		}
	}

	return nil
}

// WithAPI sets a custom [API] implementation. This is useful when a custom
// DynamoDB configuration is required, or for injecting mocks in tests.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.dynamoDBAPI = api
	}
}

// WithEndpoint points the client at a non-AWS endpoint, such as DynamoDB
// Local on http://localhost:8000. Ignored when [WithAPI] is used.
func WithEndpoint(endpoint string) Option {
	return func(o *Options) {
		o.endpoint = endpoint
	}
}

// WithMaxAttempts sets the number of attempts the SDK retryer makes for each
// request, including the first. The default is 3. Ignored when [WithAPI] is
// used.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		o.maxAttempts = n
	}
}

// WithConsistentReads makes point lookups and base-table queries strongly
// consistent. Index queries are always eventually consistent.
func WithConsistentReads(enabled bool) Option {
	return func(o *Options) {
		o.consistentReads = enabled
	}
}

// WithTableWait bounds how long [Client.CreateTable] waits for a new table to
// become active. The default is 2 minutes.
func WithTableWait(d time.Duration) Option {
	return func(o *Options) {
		o.tableWait = d
	}
}
