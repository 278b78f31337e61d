package search

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/quarry/retrieval"
	"github.com/poiesic/quarry/strategy"
)

// Options tunes an Orchestrator.
type Options struct {
	// DefaultLimit applies when a request sets no limit.
	DefaultLimit int `yaml:"default_limit"`
	// MaxLimit caps any requested limit.
	MaxLimit int `yaml:"max_limit"`
	// ClassifierTimeout bounds the task classification call.
	ClassifierTimeout time.Duration `yaml:"classifier_timeout"`
	// Retrieval tunes the executors and enhancements.
	Retrieval retrieval.Options `yaml:"retrieval"`
}

// DefaultOptions returns the default orchestrator options.
func DefaultOptions() Options {
	return Options{
		DefaultLimit:      10,
		MaxLimit:          100,
		ClassifierTimeout: 10 * time.Second,
		Retrieval:         retrieval.DefaultOptions(),
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.DefaultLimit <= 0 {
		return fmt.Errorf("%w: default limit must be positive", ErrInvalidOptions)
	}
	if o.MaxLimit < o.DefaultLimit {
		return fmt.Errorf("%w: max limit %d below default limit %d", ErrInvalidOptions, o.MaxLimit, o.DefaultLimit)
	}
	if o.ClassifierTimeout <= 0 {
		return fmt.Errorf("%w: classifier timeout must be positive", ErrInvalidOptions)
	}
	return o.Retrieval.Validate()
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger.With("component", "search")
		return nil
	}
}

// WithOptions replaces the default options.
func WithOptions(opts Options) Option {
	return func(o *Orchestrator) error {
		if err := opts.Validate(); err != nil {
			return err
		}
		o.options = opts
		return nil
	}
}

// WithRegistry replaces the default strategy registry.
func WithRegistry(registry *strategy.Registry) Option {
	return func(o *Orchestrator) error {
		if registry == nil {
			return fmt.Errorf("%w: registry is nil", ErrInvalidOptions)
		}
		o.registry = registry
		return nil
	}
}
