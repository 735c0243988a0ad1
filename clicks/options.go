package clicks

import (
	"errors"
	"time"
)

// Option is a functional option for configuring a [Service].
type Option func(*Options)

// Options holds the configuration for a [Service].
type Options struct {
	storeTimeout time.Duration
	rollups      bool
	clock        func() time.Time
}

func newOptions() *Options {
	return &Options{
		storeTimeout: 5 * time.Second,
		clock:        time.Now,
	}
}

func (o *Options) validate() error {
	if o.storeTimeout <= 0 {
		return errors.New("store timeout must be greater than zero")
	}

	if o.clock == nil {
		return errors.New("clock cannot be nil")
	}

	return nil
}

// WithStoreTimeout bounds every individual store call. The default is 5
// seconds. The duration must be greater than zero.
func WithStoreTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.storeTimeout = d
	}
}

// WithRollups makes [Service.RecordClick] also increment the daily and
// monthly rollups of the click's date. Disabled by default.
func WithRollups(enabled bool) Option {
	return func(o *Options) {
		o.rollups = enabled
	}
}

// WithClock sets the clock used to timestamp click events. Defaults to
// [time.Now]. This is useful for controlling time in tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
	}
}
