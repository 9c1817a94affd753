// Package stress provides the resource stress units of the load generator.
//
// Each unit deliberately consumes one resource dimension:
//
//   - CPU: computes digits of pi with an unbounded spigot, across a pool of workers
//   - Memory: allocates a buffer and runs read/replace cycles against it
//   - Disk: writes a temporary file, reads it back at random offsets, removes it
//   - Bandwidth: synthesizes a response payload of exponentially distributed size
//
// The loads are approximate and randomized. Units never return meaningful
// data to the caller: a Report carries timings and counters for logging and
// metrics only. The bandwidth payload is the one exception.
//
// # Errors
//
// Non-positive sizes and counts fail fast with a *ConfigError naming the
// field. File system failures in the disk unit are reported as *IOError, and
// the temporary file is removed on every exit path.
//
// # Example
//
//	cfg := config.Defaults()
//	report, err := stress.RunPool(cfg.CPUStress, logrus.StandardLogger())
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("cpu stress took %v\n", report.Duration)
//
// No unit can be cancelled once started.
package stress
