package source

import "github.com/okian/crowdcast/pkg/logger"

// Option applies a configuration option to the Loader.
type Option func(*Loader)

// WithYear sets the year prefixed to the MM-DD dates of sample files.
func WithYear(year int) Option {
	return func(l *Loader) {
		if year > 0 {
			l.year = year
		}
	}
}

// WithWorkers bounds how many files LoadAll reads at once.
func WithWorkers(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithNameSuffix sets the suffix removed from file stems to get game names.
func WithNameSuffix(suffix string) Option {
	return func(l *Loader) { l.suffix = suffix }
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}
