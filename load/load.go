package load

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/loadsim/internal/config"
	"github.com/wesleyorama2/loadsim/internal/loader"
	"github.com/wesleyorama2/loadsim/internal/metrics"
	"github.com/wesleyorama2/loadsim/internal/stress"
)

// Config is a fully resolved load configuration.
type Config = config.Config

// Result contains the outcome of one load.
type Result = loader.Result

// Report describes one finished stress unit run.
type Report = stress.Report

// Snapshot contains aggregated metrics of a Runner.
type Snapshot = metrics.Snapshot

// Defaults returns the default configuration. All stress units are disabled.
func Defaults() *Config {
	return config.Defaults()
}

// Resolve merges a partial configuration over the defaults and validates it.
func Resolve(input map[string]interface{}) (*Config, error) {
	return config.Resolve(input)
}

// IsConfigError reports whether err was caused by an invalid configuration.
func IsConfigError(err error) bool {
	return loader.IsConfigError(err)
}

var process = loader.NewCached()

// Payload runs one load and returns its payload. The configuration is
// resolved from the input of the first successful call and reused by every
// later call in the process.
func Payload(ctx context.Context, input map[string]interface{}) (string, error) {
	return process.Payload(ctx, input)
}

// Run resolves input and runs one load with it. Nothing is cached.
func Run(ctx context.Context, input map[string]interface{}) (*Result, error) {
	cfg, err := Resolve(input)
	if err != nil {
		return nil, err
	}
	return loader.New(cfg).Load(ctx)
}

// Runner runs loads with one configuration and aggregates their metrics.
//
// # Thread Safety
//
// Runner is safe for concurrent use.
type Runner struct {
	loader  *loader.Loader
	metrics *metrics.Engine
}

// Option configures a Runner.
type Option func(*runnerOptions)

type runnerOptions struct {
	log     logrus.FieldLogger
	tempDir string
}

// WithLogger sets the logger units and the orchestrator write to.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *runnerOptions) { o.log = log }
}

// WithTempDir sets the directory of the disk unit's temporary files.
func WithTempDir(dir string) Option {
	return func(o *runnerOptions) { o.tempDir = dir }
}

// NewRunner creates a runner for cfg. cfg must not be modified afterwards.
func NewRunner(cfg *Config, opts ...Option) *Runner {
	var o runnerOptions
	for _, opt := range opts {
		opt(&o)
	}

	engine := metrics.NewEngine()
	return &Runner{
		loader: loader.New(cfg,
			loader.WithLogger(o.log),
			loader.WithTempDir(o.tempDir),
			loader.WithRecorder(engine),
		),
		metrics: engine,
	}
}

// Run runs one load.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	return r.loader.Load(ctx)
}

// GetMetrics returns a snapshot of every load run so far.
func (r *Runner) GetMetrics() *Snapshot {
	return r.metrics.GetSnapshot()
}

// Reset clears the aggregated metrics.
func (r *Runner) Reset() {
	r.metrics.Reset()
}
