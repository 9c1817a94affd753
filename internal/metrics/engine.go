// Package metrics aggregates load and stress unit timings.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/wesleyorama2/loadsim/internal/stress"
)

// Engine collects load and unit durations using HDR histograms.
//
// Key features:
// - HDR histogram for accurate percentiles (O(1) calculation)
// - One histogram per stress unit plus one for whole loads
// - Lock-free counter updates for high concurrency
//
// # Thread Safety
//
// Engine is safe for concurrent use. Counters use atomic operations and
// histograms use mutex protection.
type Engine struct {
	// Whole load durations
	// Range: 1 microsecond to 1 hour, 3 significant figures
	loadHist   *hdrhistogram.Histogram
	loadHistMu sync.Mutex

	// Per-unit histograms
	unitHists   map[string]*hdrhistogram.Histogram
	unitOps     map[string]int64
	unitBytes   map[string]int64
	unitHistsMu sync.Mutex

	totalLoads   atomic.Int64
	successLoads atomic.Int64
	failedLoads  atomic.Int64
	payloadBytes atomic.Int64

	startMu   sync.RWMutex
	startTime time.Time

	config EngineConfig
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 3600000000 = 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		HistogramMin:     1,
		HistogramMax:     3600000000, // 1 hour in microseconds
		HistogramSigFigs: 3,
	}
}

// NewEngine creates a new metrics engine with default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a new metrics engine with custom configuration.
func NewEngineWithConfig(config EngineConfig) *Engine {
	return &Engine{
		loadHist:  hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		unitHists: make(map[string]*hdrhistogram.Histogram),
		unitOps:   make(map[string]int64),
		unitBytes: make(map[string]int64),
		startTime: time.Now(),
		config:    config,
	}
}

func (e *Engine) micros(d time.Duration) int64 {
	v := d.Microseconds()
	if v < e.config.HistogramMin {
		v = e.config.HistogramMin
	}
	if v > e.config.HistogramMax {
		v = e.config.HistogramMax
	}
	return v
}

// RecordReport records one stress unit run. Reports without a unit name are
// ignored.
func (e *Engine) RecordReport(report stress.Report) {
	if report.Unit == "" {
		return
	}
	v := e.micros(report.Duration)

	// HDR histogram RecordValue is not thread-safe
	e.unitHistsMu.Lock()
	defer e.unitHistsMu.Unlock()

	hist, exists := e.unitHists[report.Unit]
	if !exists {
		hist = hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs)
		e.unitHists[report.Unit] = hist
	}
	hist.RecordValue(v)
	e.unitOps[report.Unit] += report.Ops
	e.unitBytes[report.Unit] += report.Bytes
}

// RecordLoad records one finished load.
func (e *Engine) RecordLoad(duration time.Duration, payloadBytes int64, err error) {
	v := e.micros(duration)

	e.loadHistMu.Lock()
	e.loadHist.RecordValue(v)
	e.loadHistMu.Unlock()

	e.totalLoads.Add(1)
	if err != nil {
		e.failedLoads.Add(1)
		return
	}
	e.successLoads.Add(1)
	e.payloadBytes.Add(payloadBytes)
}

// GetLatencyPercentiles returns current load duration percentiles.
func (e *Engine) GetLatencyPercentiles() LatencyPercentiles {
	e.loadHistMu.Lock()
	defer e.loadHistMu.Unlock()

	return LatencyPercentiles{
		Min: time.Duration(e.loadHist.Min()) * time.Microsecond,
		Max: time.Duration(e.loadHist.Max()) * time.Microsecond,
		P50: time.Duration(e.loadHist.ValueAtQuantile(50)) * time.Microsecond,
		P90: time.Duration(e.loadHist.ValueAtQuantile(90)) * time.Microsecond,
		P95: time.Duration(e.loadHist.ValueAtQuantile(95)) * time.Microsecond,
		P99: time.Duration(e.loadHist.ValueAtQuantile(99)) * time.Microsecond,
	}
}

// GetSnapshot returns a point-in-time snapshot of all metrics.
func (e *Engine) GetSnapshot() *Snapshot {
	e.loadHistMu.Lock()
	latency := statsOf(e.loadHist)
	e.loadHistMu.Unlock()

	e.unitHistsMu.Lock()
	units := make(map[string]UnitStats, len(e.unitHists))
	for name, hist := range e.unitHists {
		units[name] = UnitStats{
			Duration: statsOf(hist),
			Ops:      e.unitOps[name],
			Bytes:    e.unitBytes[name],
		}
	}
	e.unitHistsMu.Unlock()

	e.startMu.RLock()
	start := e.startTime
	e.startMu.RUnlock()

	elapsed := time.Since(start)
	total := e.totalLoads.Load()
	failed := e.failedLoads.Load()

	lps := 0.0
	if elapsed.Seconds() > 0 {
		lps = float64(total) / elapsed.Seconds()
	}

	errorRate := 0.0
	if total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	return &Snapshot{
		TotalLoads:   total,
		SuccessLoads: e.successLoads.Load(),
		FailedLoads:  failed,
		PayloadBytes: e.payloadBytes.Load(),
		Latency:      latency,
		Units:        units,
		LoadsPerSec:  lps,
		ErrorRate:    errorRate,
		Elapsed:      elapsed,
		StartTime:    start,
		Timestamp:    time.Now(),
	}
}

// Reset resets all metrics to initial state.
func (e *Engine) Reset() {
	e.loadHistMu.Lock()
	e.loadHist.Reset()
	e.loadHistMu.Unlock()

	e.unitHistsMu.Lock()
	e.unitHists = make(map[string]*hdrhistogram.Histogram)
	e.unitOps = make(map[string]int64)
	e.unitBytes = make(map[string]int64)
	e.unitHistsMu.Unlock()

	e.totalLoads.Store(0)
	e.successLoads.Store(0)
	e.failedLoads.Store(0)
	e.payloadBytes.Store(0)

	e.startMu.Lock()
	e.startTime = time.Now()
	e.startMu.Unlock()
}

func statsOf(hist *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    time.Duration(hist.Min()) * time.Microsecond,
		Max:    time.Duration(hist.Max()) * time.Microsecond,
		Mean:   time.Duration(hist.Mean()) * time.Microsecond,
		StdDev: time.Duration(hist.StdDev()) * time.Microsecond,
		P50:    time.Duration(hist.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(hist.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(hist.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(hist.ValueAtQuantile(99)) * time.Microsecond,
		Count:  hist.TotalCount(),
	}
}

// Snapshot contains a point-in-time view of all metrics.
type Snapshot struct {
	TotalLoads   int64                `json:"totalLoads"`
	SuccessLoads int64                `json:"successLoads"`
	FailedLoads  int64                `json:"failedLoads"`
	PayloadBytes int64                `json:"payloadBytes"`
	Latency      LatencyStats         `json:"latency"`
	Units        map[string]UnitStats `json:"units"`
	LoadsPerSec  float64              `json:"loadsPerSec"`
	ErrorRate    float64              `json:"errorRate"`
	Elapsed      time.Duration        `json:"elapsed"`
	StartTime    time.Time            `json:"startTime"`
	Timestamp    time.Time            `json:"timestamp"`
}

// UnitStats contains the aggregated runs of one stress unit.
type UnitStats struct {
	Duration LatencyStats `json:"duration"`
	Ops      int64        `json:"ops"`
	Bytes    int64        `json:"bytes"`
}

// LatencyStats contains duration statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

// LatencyPercentiles contains the percentiles reported while a bench runs.
type LatencyPercentiles struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
	P50 time.Duration `json:"p50"`
	P90 time.Duration `json:"p90"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}
