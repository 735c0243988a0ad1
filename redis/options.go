package redis

import (
	"errors"
	"strings"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client].
type Options struct {
	prefix string
}

func newOptions() *Options {
	return &Options{prefix: "clickstats"}
}

func (o *Options) validate() error {
	if o.prefix == "" {
		return errors.New("key prefix cannot be empty")
	}

	if strings.ContainsAny(o.prefix, "*?[]") {
		return errors.New("key prefix cannot contain glob characters")
	}

	return nil
}

// WithPrefix sets the prefix of every key the client writes. The default is
// "clickstats". Distinct prefixes keep several tables apart in one database.
func WithPrefix(prefix string) Option {
	return func(o *Options) {
		o.prefix = prefix
	}
}
