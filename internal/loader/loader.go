// Package loader provides the orchestrator that runs the stress units for one
// load invocation and returns the bandwidth payload.
package loader

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/loadsim/internal/config"
	"github.com/wesleyorama2/loadsim/internal/logging"
	"github.com/wesleyorama2/loadsim/internal/stress"
)

// Recorder receives the outcome of every load. Implementations must be safe
// for concurrent use.
type Recorder interface {
	// RecordReport records one finished stress unit run.
	RecordReport(report stress.Report)

	// RecordLoad records one finished load with its payload size.
	RecordLoad(duration time.Duration, payloadBytes int64, err error)
}

// Result contains the outcome of a load.
type Result struct {
	// Payload is the bandwidth payload. Empty when the load failed.
	Payload string `json:"-"`

	// PayloadBytes is len(Payload)
	PayloadBytes int64 `json:"payloadBytes"`

	// Reports holds one report per launched stress unit, in launch order,
	// followed by the bandwidth report on success
	Reports []stress.Report `json:"reports"`

	// Duration is the wall-clock time of the stress phase (the join barrier)
	Duration time.Duration `json:"duration"`

	// Total is the wall-clock time of the whole load
	Total time.Duration `json:"total"`
}

// Report returns the report of the named unit.
func (r *Result) Report(unit string) (stress.Report, bool) {
	for _, rep := range r.Reports {
		if rep.Unit == unit {
			return rep, true
		}
	}
	return stress.Report{}, false
}

// UnitError reports the failure of one stress unit.
type UnitError struct {
	Unit string
	Err  error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%s unit failed: %v", e.Unit, e.Err)
}

// Unwrap returns the underlying error.
func (e *UnitError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err was caused by an invalid configuration
// rather than by the load itself.
func IsConfigError(err error) bool {
	var verrs *config.ValidationErrors
	var cerr *stress.ConfigError
	return errors.As(err, &verrs) || errors.As(err, &cerr)
}

// Loader runs the enabled stress units of an immutable configuration.
//
// Example usage:
//
//	cfg, _ := config.Resolve(map[string]interface{}{
//	    "cpu_stress": map[string]interface{}{"run": true},
//	})
//	l := loader.New(cfg, loader.WithLogger(log))
//	result, err := l.Load(ctx)
//
// # Failure policy
//
// Units run concurrently and every outcome is collected at the join
// barrier. If any unit failed, Load returns all failures joined together
// and no payload is generated.
//
// # Thread Safety
//
// Loader is safe for concurrent use. Each Load call runs its own units.
type Loader struct {
	cfg      *config.Config
	log      logrus.FieldLogger
	recorder Recorder
	tempDir  string
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// WithRecorder sets the recorder that receives every report.
func WithRecorder(r Recorder) Option {
	return func(l *Loader) {
		l.recorder = r
	}
}

// WithTempDir sets the directory the disk unit writes to. The default is
// the working directory.
func WithTempDir(dir string) Option {
	return func(l *Loader) {
		l.tempDir = dir
	}
}

// New creates a loader for cfg. cfg must not be modified afterwards.
func New(cfg *config.Config, opts ...Option) *Loader {
	l := &Loader{
		cfg: cfg,
		log: logging.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config returns the configuration the loader runs with.
func (l *Loader) Config() *config.Config {
	return l.cfg
}

// Units returns the enabled stress units in launch order: cpu, memory, disk.
func (l *Loader) Units() []stress.Unit {
	var units []stress.Unit
	if l.cfg.CPUStress.Run {
		units = append(units, stress.NewCPU(l.cfg.CPUStress))
	}
	if l.cfg.MemoryStress.Run {
		units = append(units, stress.NewMemory(l.cfg.MemoryStress))
	}
	if l.cfg.DiskStress.Run {
		units = append(units, stress.NewDisk(l.cfg.DiskStress, l.tempDir))
	}
	return units
}

// Load runs one load: the enabled units concurrently, then, once all of them
// are done, the bandwidth unit.
//
// The context is only checked before the units are launched. A started load
// always runs to completion.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	l.log.Debug("Loader start")

	units := l.Units()
	reports, err := l.runUnits(units)

	result := &Result{
		Reports:  reports,
		Duration: time.Since(start),
	}
	l.log.WithFields(logrus.Fields{
		"duration_ms": float64(result.Duration) / float64(time.Millisecond),
		"units":       len(units),
	}).Infof("Loader took %.3f millis", float64(result.Duration)/float64(time.Millisecond))

	if err != nil {
		result.Total = time.Since(start)
		l.log.WithError(err).Error("Loader failed")
		l.recordLoad(result.Total, 0, err)
		return result, err
	}

	payload, report, err := stress.NewBandwidth(l.cfg.MeanResponseSize).Generate(l.log)
	l.recordReport(report)
	result.Total = time.Since(start)
	if err != nil {
		l.recordLoad(result.Total, 0, err)
		return result, &UnitError{Unit: stress.UnitBandwidth, Err: err}
	}

	result.Payload = payload
	result.PayloadBytes = int64(len(payload))
	result.Reports = append(result.Reports, report)
	l.recordLoad(result.Total, result.PayloadBytes, nil)

	return result, nil
}

// runUnits launches every unit on its own goroutine and waits for all of
// them. Reports come back in unit order. A panicking unit fails with an
// error instead of taking the process down.
func (l *Loader) runUnits(units []stress.Unit) ([]stress.Report, error) {
	reports := make([]stress.Report, len(units))
	errs := make([]error, len(units))

	var wg sync.WaitGroup
	for i, u := range units {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					l.log.WithField("unit", u.Name()).WithField("stack", string(debug.Stack())).Errorf("%s unit panicked: %v", u.Name(), r)
					reports[i] = stress.Report{Unit: u.Name()}
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()
			reports[i], errs[i] = u.Run(l.log)
		}()
	}
	wg.Wait()

	var failures []error
	for i, u := range units {
		l.recordReport(reports[i])
		if errs[i] != nil {
			failures = append(failures, &UnitError{Unit: u.Name(), Err: errs[i]})
		}
	}
	return reports, errors.Join(failures...)
}

func (l *Loader) recordReport(report stress.Report) {
	if l.recorder != nil {
		l.recorder.RecordReport(report)
	}
}

func (l *Loader) recordLoad(d time.Duration, payloadBytes int64, err error) {
	if l.recorder != nil {
		l.recorder.RecordLoad(d, payloadBytes, err)
	}
}
