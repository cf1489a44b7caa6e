package tamd

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Option func(*runtimeConfig)

type runtimeConfig struct {
	logger    *slog.Logger
	sink      Sink
	host      Host
	timeout   time.Duration
	newID     func() string
	onDefine  []DefineHook
	onResolve []ResolveHook
	onReport  []ReportHook
}

func defaultConfig() *runtimeConfig {
	return &runtimeConfig{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
		newID:   uuid.NewString,
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *runtimeConfig) {
		cfg.logger = logger
	}
}

// WithSink routes diagnostic reports to sink instead of LogSink(logger).
func WithSink(sink Sink) Option {
	return func(cfg *runtimeConfig) {
		cfg.sink = sink
	}
}

// WithHost runs the runtime on h instead of an owned event loop. The caller
// keeps ownership of h; Close does not stop it.
func WithHost(h Host) Option {
	return func(cfg *runtimeConfig) {
		cfg.host = h
	}
}

// WithTimeout sets the window after which unresolved names are reported as
// missing. Non-positive values keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(cfg *runtimeConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(cfg *runtimeConfig) {
		if fn != nil {
			cfg.newID = fn
		}
	}
}

func WithDefineObserver(hook DefineHook) Option {
	return func(cfg *runtimeConfig) {
		cfg.onDefine = append(cfg.onDefine, hook)
	}
}

func WithResolveObserver(hook ResolveHook) Option {
	return func(cfg *runtimeConfig) {
		cfg.onResolve = append(cfg.onResolve, hook)
	}
}

func WithReportObserver(hook ReportHook) Option {
	return func(cfg *runtimeConfig) {
		cfg.onReport = append(cfg.onReport, hook)
	}
}
