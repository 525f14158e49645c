package cleanup

import (
	"github.com/rs/zerolog"

	"github.com/dshills/flowreap-go/cleanup/emit"
)

// Option is a functional option for configuring an Engine.
//
// Example:
//
//	engine := cleanup.New(
//	    cleanup.OSDeleter{},
//	    cleanup.WithLogger(logger),
//	    cleanup.WithEmitter(emit.NewLogEmitter(os.Stdout, false)),
//	    cleanup.WithMetrics(cleanup.NewPrometheusMetrics(registry)),
//	)
type Option func(*Engine)

// WithEmitter sets the observability emitter receiving deletion and
// warning events. Defaults to a NullEmitter.
func WithEmitter(emitter emit.Emitter) Option {
	return func(e *Engine) {
		if emitter != nil {
			e.emitter = emitter
		}
	}
}

// WithMetrics sets the Prometheus metrics collector. Defaults to nil, in
// which case no metrics are recorded.
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithLogger sets the structured logger for operational messages such as
// deleter failures. Defaults to a disabled logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithRunID overrides the generated session identifier carried on emitted
// events. Useful for correlating cleanup events with executor logs.
func WithRunID(runID string) Option {
	return func(e *Engine) {
		if runID != "" {
			e.runID = runID
		}
	}
}
