package stress

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	mathrand "math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/loadsim/internal/config"
)

// Disk phase names used in Report.Phases.
const (
	PhaseWrite = "write"
	PhaseRead  = "read"
)

const (
	opCreate     = "create"
	tmpPrefixLen = 10
	lowercase    = "abcdefghijklmnopqrstuvwxyz"
)

// TempFileName returns the per-run file name: a random 10-letter lowercase
// prefix, a dash, and base.
func TempFileName(base string) string {
	prefix := make([]byte, tmpPrefixLen)
	for i := range prefix {
		prefix[i] = lowercase[mathrand.IntN(len(lowercase))]
	}
	return string(prefix) + "-" + base
}

// RunDisk writes disk_write_block_count blocks of disk_write_block_size
// random bytes to a fresh temporary file in dir, forces them to stable
// storage, then reads every block back in shuffled order. The file is
// removed on every exit path. An empty dir means the working directory.
//
// Both phases are timed individually and reported in Report.Phases.
func RunDisk(cfg config.DiskStress, dir string, log logrus.FieldLogger) (report Report, err error) {
	log = loggerOrDiscard(log).WithField("unit", UnitDisk)

	report = Report{Unit: UnitDisk, Phases: map[string]time.Duration{}}
	if err := checkDisk(cfg); err != nil {
		return report, err
	}
	if cfg.DiskWriteBlockCount == 0 {
		return report, nil
	}

	start := time.Now()
	path := filepath.Join(dir, TempFileName(cfg.TmpFileName))

	defer func() {
		report.Duration = time.Since(start)
	}()

	buf := make([]byte, cfg.DiskWriteBlockSize)

	// A failed O_EXCL create means the name belongs to someone else, so the
	// file is only removed once create succeeded.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return report, &IOError{Op: opCreate, Path: path, Err: err}
	}
	defer func() {
		rmErr := os.Remove(path)
		if rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			log.WithError(rmErr).WithField("path", path).Warn("Disk stress - failed to remove temporary file")
			if err == nil {
				err = &IOError{Op: "remove", Path: path, Err: rmErr}
			}
		}
	}()

	written, writeDur, err := writeBlocks(f, buf, cfg.DiskWriteBlockCount)
	report.Bytes = written
	report.Phases[PhaseWrite] = writeDur
	if err != nil {
		return report, err
	}
	log.WithField("duration_ms", millis(writeDur)).Debugf("Disk stress - Write took %.3f millis", millis(writeDur))

	blocks, read, readDur, err := readBlocks(path, buf, cfg.DiskWriteBlockCount)
	report.Ops = blocks
	report.ReadBytes = read
	report.Phases[PhaseRead] = readDur
	if err != nil {
		return report, err
	}
	log.WithField("duration_ms", millis(readDur)).Debugf("Disk stress - Read took %.3f millis", millis(readDur))

	total := writeDur + readDur
	log.WithFields(logrus.Fields{
		"duration_ms": millis(total),
		"bytes":       written,
	}).Debugf("Disk stress - TOTAL took %.3f millis", millis(total))

	return report, nil
}

// randRead fills disk blocks.
var randRead = rand.Read

// writeBlocks writes count blocks of len(buf) random bytes to f, syncs it and
// closes it. f is closed on every path.
func writeBlocks(f *os.File, buf []byte, count int) (written int64, elapsed time.Duration, err error) {
	start := time.Now()
	defer func() { elapsed = time.Since(start) }()

	path := f.Name()
	defer func() {
		if f != nil {
			_ = f.Close()
		}
	}()

	for i := 0; i < count; i++ {
		if _, err := randRead(buf); err != nil {
			return written, 0, &IOError{Op: "generate", Path: path, Err: err}
		}
		n, err := f.Write(buf)
		written += int64(n)
		if err != nil {
			return written, 0, &IOError{Op: "write", Path: path, Err: err}
		}
	}

	if err := f.Sync(); err != nil {
		return written, 0, &IOError{Op: "sync", Path: path, Err: err}
	}

	closeErr := f.Close()
	f = nil
	if closeErr != nil {
		return written, 0, &IOError{Op: "close", Path: path, Err: closeErr}
	}
	return written, 0, nil
}

// readBlocks reads the count blocks of path in random order into buf,
// stopping at end of file.
func readBlocks(path string, buf []byte, count int) (blocks, read int64, elapsed time.Duration, err error) {
	start := time.Now()
	defer func() { elapsed = time.Since(start) }()

	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	offsets := make([]int64, count)
	for i := range offsets {
		offsets[i] = int64(i) * int64(len(buf))
	}
	mathrand.Shuffle(len(offsets), func(i, j int) {
		offsets[i], offsets[j] = offsets[j], offsets[i]
	})

	for _, off := range offsets {
		if _, err := f.Seek(off, io.SeekStart); err != nil {
			return blocks, read, 0, &IOError{Op: "seek", Path: path, Err: err}
		}
		n, err := io.ReadFull(f, buf)
		read += int64(n)
		if n > 0 {
			blocks++
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return blocks, read, 0, &IOError{Op: "read", Path: path, Err: err}
		}
	}

	return blocks, read, 0, nil
}

// checkDisk rejects configurations that would make the unit misbehave.
func checkDisk(cfg config.DiskStress) error {
	if cfg.TmpFileName == "" {
		return &ConfigError{Unit: UnitDisk, Field: "tmp_file_name", Message: "must not be empty"}
	}
	if filepath.Base(cfg.TmpFileName) != cfg.TmpFileName {
		return &ConfigError{Unit: UnitDisk, Field: "tmp_file_name", Message: fmt.Sprintf("must be a bare file name, got %q", cfg.TmpFileName)}
	}
	if cfg.DiskWriteBlockCount < 0 {
		return &ConfigError{Unit: UnitDisk, Field: "disk_write_block_count", Message: fmt.Sprintf("must not be negative, got %d", cfg.DiskWriteBlockCount)}
	}
	if cfg.DiskWriteBlockSize <= 0 {
		return &ConfigError{Unit: UnitDisk, Field: "disk_write_block_size", Message: fmt.Sprintf("must be greater than 0, got %d", cfg.DiskWriteBlockSize)}
	}
	if cfg.DiskWriteBlockSize > config.MaxDiskBlockSize {
		return &ConfigError{Unit: UnitDisk, Field: "disk_write_block_size", Message: fmt.Sprintf("must not exceed %d bytes, got %d", config.MaxDiskBlockSize, cfg.DiskWriteBlockSize)}
	}
	if config.ExceedsLimit(cfg.DiskWriteBlockCount, cfg.DiskWriteBlockSize, config.MaxDiskBytes) {
		return &ConfigError{Unit: UnitDisk, Field: "disk_write_block_count", Message: fmt.Sprintf("total size must not exceed %d bytes", int64(config.MaxDiskBytes))}
	}
	return nil
}

// Disk is the disk stress unit.
type Disk struct {
	cfg config.DiskStress
	dir string
}

// NewDisk creates a disk stress unit writing its temporary file to dir.
// An empty dir means the working directory.
func NewDisk(cfg config.DiskStress, dir string) *Disk {
	return &Disk{cfg: cfg, dir: dir}
}

// Name returns the unit name.
func (d *Disk) Name() string { return UnitDisk }

// Run runs the write and read phases.
func (d *Disk) Run(log logrus.FieldLogger) (Report, error) {
	return RunDisk(d.cfg, d.dir, log)
}

var _ Unit = (*Disk)(nil)
