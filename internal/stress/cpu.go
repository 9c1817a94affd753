package stress

import (
	"fmt"
	"math/big"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/loadsim/internal/config"
)

// PiDigits returns the first n decimal digits of pi ("31415...").
//
// It uses Gibbons' unbounded spigot, which streams one digit at a time with
// arbitrary-precision integers. The work is CPU bound and allocation heavy,
// and grows faster than linearly with n.
func PiDigits(n int) []byte {
	if n <= 0 {
		return nil
	}

	digits := make([]byte, 0, n)

	q := big.NewInt(1)
	r := big.NewInt(0)
	t := big.NewInt(1)
	k := big.NewInt(1)
	m := big.NewInt(3)
	x := big.NewInt(3)

	var (
		lhs, rhs, tmp, nr, nt big.Int
		ten                   = big.NewInt(10)
		two                   = big.NewInt(2)
		three                 = big.NewInt(3)
		seven                 = big.NewInt(7)
	)

	for len(digits) < n {
		// 4q + r - t < m*t
		lhs.Lsh(q, 2)
		lhs.Add(&lhs, r)
		lhs.Sub(&lhs, t)
		rhs.Mul(m, t)

		if lhs.Cmp(&rhs) < 0 {
			digits = append(digits, byte('0'+m.Int64()))

			// r' = 10(r - m*t)
			nr.Sub(r, &rhs)
			nr.Mul(&nr, ten)

			// m' = 10(3q + r) / t - 10m
			tmp.Mul(q, three)
			tmp.Add(&tmp, r)
			tmp.Mul(&tmp, ten)
			tmp.Div(&tmp, t)
			m.Mul(m, ten)
			m.Sub(&tmp, m)

			q.Mul(q, ten)
			r.Set(&nr)
			continue
		}

		// r' = (2q + r)x
		nr.Mul(q, two)
		nr.Add(&nr, r)
		nr.Mul(&nr, x)

		// t' = t*x
		nt.Mul(t, x)

		// m' = (q(7k + 2) + r*x) / (t*x)
		tmp.Mul(k, seven)
		tmp.Add(&tmp, two)
		tmp.Mul(&tmp, q)
		lhs.Mul(r, x)
		tmp.Add(&tmp, &lhs)
		m.Div(&tmp, &nt)

		q.Mul(q, k)
		r.Set(&nr)
		t.Set(&nt)
		k.Add(k, big.NewInt(1))
		x.Add(x, two)
	}

	return digits
}

// SampleComplexity draws a complexity uniformly from the inclusive range
// [r[0], r[1]].
func SampleComplexity(r [2]int) int {
	lo, hi := r[0], r[1]
	if hi <= lo {
		return lo
	}
	return lo + rand.IntN(hi-lo+1)
}

// RunJob samples a complexity and computes that many digits of pi, trials
// times. The digits are discarded. Returns the total number of digits
// computed.
func RunJob(cfg config.CPUStress) (int64, error) {
	if err := checkCPU(cfg, false); err != nil {
		return 0, err
	}

	complexity := SampleComplexity(cfg.RangeComplexity)

	var total int64
	for i := 0; i < cfg.Trials; i++ {
		total += int64(len(PiDigits(complexity)))
	}
	return total, nil
}

// RunPool runs RunJob on thread_pool_size concurrent workers and blocks
// until every worker is done. Each worker samples its own complexity.
func RunPool(cfg config.CPUStress, log logrus.FieldLogger) (Report, error) {
	log = loggerOrDiscard(log).WithField("unit", UnitCPU)

	report := Report{Unit: UnitCPU}
	if err := checkCPU(cfg, true); err != nil {
		return report, err
	}

	start := time.Now()
	log.WithField("workers", cfg.ThreadPoolSize).Debug("CPU stress start")

	var (
		g      errgroup.Group
		digits atomic.Int64
	)
	for i := 0; i < cfg.ThreadPoolSize; i++ {
		g.Go(func() error {
			n, err := RunJob(cfg)
			digits.Add(n)
			return err
		})
	}
	err := g.Wait()

	report.Duration = time.Since(start)
	report.Ops = digits.Load()

	log.WithFields(logrus.Fields{
		"duration_ms": millis(report.Duration),
		"digits":      report.Ops,
	}).Debugf("CPU stress took %.3f millis", millis(report.Duration))

	return report, err
}

// checkCPU rejects configurations that would make the unit misbehave.
func checkCPU(cfg config.CPUStress, pool bool) error {
	lo, hi := cfg.RangeComplexity[0], cfg.RangeComplexity[1]
	if lo < 0 || hi < 0 {
		return &ConfigError{Unit: UnitCPU, Field: "range_complexity", Message: "bounds cannot be negative"}
	}
	if lo > hi {
		return &ConfigError{Unit: UnitCPU, Field: "range_complexity", Message: fmt.Sprintf("min %d is greater than max %d", lo, hi)}
	}
	if cfg.Trials < 0 {
		return &ConfigError{Unit: UnitCPU, Field: "trials", Message: "must not be negative"}
	}
	if pool && cfg.ThreadPoolSize <= 0 {
		return &ConfigError{Unit: UnitCPU, Field: "thread_pool_size", Message: fmt.Sprintf("must be greater than 0, got %d", cfg.ThreadPoolSize)}
	}
	if pool && cfg.ThreadPoolSize > config.MaxThreadPoolSize {
		return &ConfigError{Unit: UnitCPU, Field: "thread_pool_size", Message: fmt.Sprintf("must not exceed %d, got %d", config.MaxThreadPoolSize, cfg.ThreadPoolSize)}
	}
	return nil
}

// CPU is the CPU stress unit.
type CPU struct {
	cfg config.CPUStress
}

// NewCPU creates a CPU stress unit.
func NewCPU(cfg config.CPUStress) *CPU {
	return &CPU{cfg: cfg}
}

// Name returns the unit name.
func (c *CPU) Name() string { return UnitCPU }

// Run runs the worker pool.
func (c *CPU) Run(log logrus.FieldLogger) (Report, error) {
	return RunPool(c.cfg, log)
}

var _ Unit = (*CPU)(nil)
