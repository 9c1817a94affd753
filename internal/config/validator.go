package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Fields returns the offending field names in order.
func (e *ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		fields = append(fields, err.Field)
	}
	return fields
}

// Validate validates the entire configuration, including the sections of
// disabled units.
//
// Returns nil if valid, or a ValidationErrors containing all validation errors.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	validateCPU(&c.CPUStress, errs)
	validateMemory(&c.MemoryStress, errs)
	validateDisk(&c.DiskStress, errs)

	if c.MeanResponseSize <= 0 {
		errs.Add(KeyMeanResponseSize, "mean_response_size must be greater than 0")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// validateCPU validates the cpu_stress section.
func validateCPU(c *CPUStress, errs *ValidationErrors) {
	prefix := KeyCPUStress

	lo, hi := c.RangeComplexity[0], c.RangeComplexity[1]
	if lo < 0 || hi < 0 {
		errs.Add(prefix+".range_complexity", "complexity bounds cannot be negative")
	} else if lo > hi {
		errs.Add(prefix+".range_complexity", fmt.Sprintf("min complexity %d is greater than max complexity %d", lo, hi))
	}

	if c.ThreadPoolSize <= 0 {
		errs.Add(prefix+".thread_pool_size", "thread_pool_size must be greater than 0")
	} else if c.ThreadPoolSize > MaxThreadPoolSize {
		errs.Add(prefix+".thread_pool_size", fmt.Sprintf("thread_pool_size cannot exceed %d", MaxThreadPoolSize))
	}

	if c.Trials < 0 {
		errs.Add(prefix+".trials", "trials cannot be negative")
	}
}

// validateMemory validates the memory_stress section.
func validateMemory(m *MemoryStress, errs *ValidationErrors) {
	prefix := KeyMemoryStress

	if m.MemorySize <= 0 {
		errs.Add(prefix+".memory_size", "memory_size must be greater than 0")
	} else if ExceedsLimit(m.MemorySize, MemoryElementSize, MaxMemoryBytes) {
		errs.Add(prefix+".memory_size", fmt.Sprintf("memory_size cannot exceed %d elements", MaxMemoryBytes/MemoryElementSize))
	}

	if m.MemoryIO < 0 {
		errs.Add(prefix+".memory_io", "memory_io cannot be negative")
	}
}

// validateDisk validates the disk_stress section.
func validateDisk(d *DiskStress, errs *ValidationErrors) {
	prefix := KeyDiskStress

	name := strings.TrimSpace(d.TmpFileName)
	if name == "" {
		errs.Add(prefix+".tmp_file_name", "tmp_file_name is required")
	} else if filepath.Base(name) != name || name == "." || name == ".." {
		errs.Add(prefix+".tmp_file_name", fmt.Sprintf("tmp_file_name must be a bare file name, got %q", d.TmpFileName))
	}

	if d.DiskWriteBlockCount < 0 {
		errs.Add(prefix+".disk_write_block_count", "disk_write_block_count cannot be negative")
	}

	if d.DiskWriteBlockSize <= 0 {
		errs.Add(prefix+".disk_write_block_size", "disk_write_block_size must be greater than 0")
	} else if d.DiskWriteBlockSize > MaxDiskBlockSize {
		errs.Add(prefix+".disk_write_block_size", fmt.Sprintf("disk_write_block_size cannot exceed %d bytes", MaxDiskBlockSize))
	} else if d.DiskWriteBlockCount > 0 && ExceedsLimit(d.DiskWriteBlockCount, d.DiskWriteBlockSize, MaxDiskBytes) {
		errs.Add(prefix+".disk_write_block_count", fmt.Sprintf("disk_write_block_count * disk_write_block_size cannot exceed %d bytes", int64(MaxDiskBytes)))
	}
}
