package client

import "time"

// Option configures a Client.
type Option func(*options)

type options struct {
	dialTimeout time.Duration
}

func defaultOptions() *options {
	return &options{
		dialTimeout: 5 * time.Second,
	}
}

// WithDialTimeout sets the per-call TCP dial timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}
