package dimgo

import (
	"log/slog"

	"github.com/hupe1980/dimgo/resource"
)

type options struct {
	metrics    MetricsCollector
	logger     *Logger
	controller *resource.Controller
}

// Option configures World constructor behavior.
//
// Options exist to avoid exploding the API surface with constructor
// variants; a zero-option world logs nothing, collects nothing, and applies
// no resource limits.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &dimgo.BasicMetricsCollector{}
//	w, _ := dimgo.New[dimgo.Tuple](dims, store, dimgo.WithMetricsCollector(metrics))
//	// ... use w ...
//	stats := metrics.GetStats()
//	fmt.Printf("Loads: %d, Avg latency: %dns\n", stats.LoadCount, stats.LoadAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metrics = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := dimgo.NewJSONLogger(slog.LevelInfo)
//	w, _ := dimgo.New[dimgo.Tuple](dims, store, dimgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController configures global resource limits for storage
// access: concurrent chunk loads and read throughput. Pass nil to disable
// limiting.
//
// Example:
//
//	ctrl := resource.NewController(resource.Config{
//	    MaxConcurrentLoads: 4,
//	    IOLimitBytesPerSec: 8 << 20,
//	})
//	w, _ := dimgo.New[dimgo.Tuple](dims, store, dimgo.WithResourceController(ctrl))
func WithResourceController(ctrl *resource.Controller) Option {
	return func(o *options) {
		o.controller = ctrl
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metrics: NoopMetricsCollector{},
		logger:  NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metrics == nil {
		o.metrics = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
