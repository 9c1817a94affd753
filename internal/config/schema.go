// Package config provides configuration parsing, merging and validation for the load generator.
package config

// Config is the effective configuration of a load invocation.
//
// Example YAML:
//
//	cpu_stress:
//	  run: true
//	  range_complexity: [50, 100]
//	  thread_pool_size: 4
//	  trials: 2
//	memory_stress:
//	  run: true
//	  memory_size: 10000
//	  memory_io: 1000
//	disk_stress:
//	  run: false
//	mean_response_size: 11
type Config struct {
	// CPUStress configures the CPU stress unit
	CPUStress CPUStress `json:"cpu_stress" yaml:"cpu_stress"`

	// MemoryStress configures the memory stress unit
	MemoryStress MemoryStress `json:"memory_stress" yaml:"memory_stress"`

	// DiskStress configures the disk stress unit
	DiskStress DiskStress `json:"disk_stress" yaml:"disk_stress"`

	// MeanResponseSize is the mean of the exponential distribution the
	// bandwidth payload size is drawn from, in kilo-characters
	MeanResponseSize float64 `json:"mean_response_size" yaml:"mean_response_size"`
}

// CPUStress configures the CPU stress unit.
type CPUStress struct {
	// Run enables the unit
	Run bool `json:"run" yaml:"run"`

	// RangeComplexity is the inclusive [min, max] range the number of
	// computed digits of pi is sampled from
	RangeComplexity [2]int `json:"range_complexity" yaml:"range_complexity,flow"`

	// ThreadPoolSize is the number of concurrent workers
	ThreadPoolSize int `json:"thread_pool_size" yaml:"thread_pool_size"`

	// Trials is how many times each worker recomputes pi
	Trials int `json:"trials" yaml:"trials"`
}

// MemoryStress configures the memory stress unit.
type MemoryStress struct {
	// Run enables the unit
	Run bool `json:"run" yaml:"run"`

	// MemorySize is the number of ~1kB elements in the buffer
	MemorySize int `json:"memory_size" yaml:"memory_size"`

	// MemoryIO is the number of read/write cycles against the buffer
	MemoryIO int `json:"memory_io" yaml:"memory_io"`
}

// DiskStress configures the disk stress unit.
type DiskStress struct {
	// Run enables the unit
	Run bool `json:"run" yaml:"run"`

	// TmpFileName is the base name of the temporary file. A random prefix
	// is added on every run.
	TmpFileName string `json:"tmp_file_name" yaml:"tmp_file_name"`

	// DiskWriteBlockCount is the number of blocks written and read back
	DiskWriteBlockCount int `json:"disk_write_block_count" yaml:"disk_write_block_count"`

	// DiskWriteBlockSize is the size of each block in bytes
	DiskWriteBlockSize int `json:"disk_write_block_size" yaml:"disk_write_block_size"`
}

// Document keys.
const (
	KeyCPUStress        = "cpu_stress"
	KeyMemoryStress     = "memory_stress"
	KeyDiskStress       = "disk_stress"
	KeyMeanResponseSize = "mean_response_size"

	// KeyMeanBandwidth is the legacy name of KeyMeanResponseSize. When
	// present it takes precedence.
	KeyMeanBandwidth = "mean_bandwidth"
)

// Upper bounds that keep a single load from exhausting the process.
const (
	// MaxThreadPoolSize caps cpu_stress.thread_pool_size
	MaxThreadPoolSize = 4096

	// MemoryElementSize is the size in bytes of one memory_stress element
	MemoryElementSize = 1000

	// MaxMemoryBytes caps memory_size * MemoryElementSize
	MaxMemoryBytes = 8 << 30

	// MaxDiskBlockSize caps disk_write_block_size
	MaxDiskBlockSize = 64 << 20

	// MaxDiskBytes caps disk_write_block_count * disk_write_block_size
	MaxDiskBytes = 16 << 30
)

// ExceedsLimit reports whether count items of size bytes each would go over
// limit. count and size must not be negative.
func ExceedsLimit(count, size int, limit int64) bool {
	if count == 0 || size == 0 {
		return false
	}
	return int64(count) > limit/int64(size)
}
