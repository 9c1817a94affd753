package stress

import (
	"bytes"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/loadsim/internal/config"
)

// ElementSize is the size in bytes of one memory buffer element.
const ElementSize = config.MemoryElementSize

// filler is the content every buffer element is initialized with.
var filler = bytes.Repeat([]byte{'A'}, ElementSize)

func newElement() []byte {
	e := make([]byte, ElementSize)
	copy(e, filler)
	return e
}

// RunMemory allocates memory_size elements of ElementSize bytes and runs
// memory_io cycles against the buffer. Cycle i reads element i mod
// memory_size, folding one of its bytes into the report checksum, then
// replaces it with a freshly allocated element. The buffer is released
// before returning.
func RunMemory(cfg config.MemoryStress, log logrus.FieldLogger) (Report, error) {
	log = loggerOrDiscard(log).WithField("unit", UnitMemory)

	report := Report{Unit: UnitMemory}
	if cfg.MemorySize <= 0 {
		return report, &ConfigError{Unit: UnitMemory, Field: "memory_size", Message: fmt.Sprintf("must be greater than 0, got %d", cfg.MemorySize)}
	}
	if config.ExceedsLimit(cfg.MemorySize, ElementSize, config.MaxMemoryBytes) {
		return report, &ConfigError{Unit: UnitMemory, Field: "memory_size", Message: fmt.Sprintf("must not exceed %d elements, got %d", config.MaxMemoryBytes/ElementSize, cfg.MemorySize)}
	}
	if cfg.MemoryIO < 0 {
		return report, &ConfigError{Unit: UnitMemory, Field: "memory_io", Message: fmt.Sprintf("must not be negative, got %d", cfg.MemoryIO)}
	}

	start := time.Now()
	log.WithField("elements", cfg.MemorySize).Debug("Memory stress start")

	buffer := make([][]byte, cfg.MemorySize)
	for i := range buffer {
		buffer[i] = newElement()
	}
	allocated := int64(cfg.MemorySize) * ElementSize

	var checksum uint64
	for i := 0; i < cfg.MemoryIO; i++ {
		idx := i % cfg.MemorySize

		// read
		v := buffer[idx]
		checksum = checksum*31 + uint64(v[i%ElementSize])

		// write
		buffer[idx] = newElement()
		allocated += ElementSize
	}

	clear(buffer)

	report.Duration = time.Since(start)
	report.Ops = int64(cfg.MemoryIO)
	report.Bytes = allocated
	report.Checksum = checksum

	log.WithFields(logrus.Fields{
		"duration_ms": millis(report.Duration),
		"cycles":      report.Ops,
	}).Debugf("Memory stress took %.3f millis", millis(report.Duration))

	return report, nil
}

// Memory is the memory stress unit.
type Memory struct {
	cfg config.MemoryStress
}

// NewMemory creates a memory stress unit.
func NewMemory(cfg config.MemoryStress) *Memory {
	return &Memory{cfg: cfg}
}

// Name returns the unit name.
func (m *Memory) Name() string { return UnitMemory }

// Run runs the read/write cycles.
func (m *Memory) Run(log logrus.FieldLogger) (Report, error) {
	return RunMemory(m.cfg, log)
}

var _ Unit = (*Memory)(nil)
