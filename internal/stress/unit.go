package stress

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Unit names.
const (
	UnitCPU       = "cpu"
	UnitMemory    = "memory"
	UnitDisk      = "disk"
	UnitBandwidth = "bandwidth"
)

// Unit is a stress unit that can be launched by the orchestrator.
type Unit interface {
	// Name returns the unit name (e.g., "cpu").
	Name() string

	// Run performs the load and blocks until it is done.
	Run(log logrus.FieldLogger) (Report, error)
}

// Report describes a finished stress run.
type Report struct {
	// Unit is the name of the unit that produced the report
	Unit string `json:"unit"`

	// Duration is the total wall-clock time of the run
	Duration time.Duration `json:"duration"`

	// Phases holds per-phase durations (e.g., disk "write" and "read")
	Phases map[string]time.Duration `json:"phases,omitempty"`

	// Ops counts the unit's work items: pi digits, memory cycles, blocks read
	Ops int64 `json:"ops"`

	// Bytes is the number of bytes allocated, written or generated
	Bytes int64 `json:"bytes"`

	// ReadBytes is the number of bytes read back (disk only)
	ReadBytes int64 `json:"readBytes,omitempty"`

	// Checksum folds every value read by the memory unit
	Checksum uint64 `json:"checksum,omitempty"`
}

// ConfigError reports an invalid unit configuration.
type ConfigError struct {
	Unit    string
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s stress: invalid %s: %s", e.Unit, e.Field, e.Message)
}

// IOError reports a file system failure in the disk unit.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("disk stress: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error {
	return e.Err
}

// millis converts a duration to fractional milliseconds for log fields.
func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// discard is used when a unit is run without a logger.
var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func loggerOrDiscard(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return discard
	}
	return log
}
