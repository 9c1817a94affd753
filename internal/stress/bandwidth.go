package stress

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Letters is the alphabet bandwidth payloads are drawn from.
const Letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// CharsPerUnit scales an exponential sample to a payload length: a sample of
// 1.0 yields 1000 characters.
const CharsPerUnit = 1000

// maxPayloadChars caps a single payload so an extreme tail sample cannot
// overflow int.
const maxPayloadChars = 1 << 30

// SampleExponential draws a sample from an exponential distribution with the
// given mean (rate 1/mean).
func SampleExponential(mean float64) float64 {
	return rand.ExpFloat64() * mean
}

// PayloadLength converts an exponential sample to a payload length:
// max(1, floor(1000 * sample)).
func PayloadLength(sample float64) int {
	n := math.Floor(CharsPerUnit * sample)
	if n < 1 || math.IsNaN(n) {
		return 1
	}
	if n > maxPayloadChars {
		return maxPayloadChars
	}
	return int(n)
}

// RandomLetters returns n letters drawn uniformly from Letters.
func RandomLetters(n int) string {
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		sb.WriteByte(Letters[rand.IntN(len(Letters))])
	}
	return sb.String()
}

// Generate synthesizes a bandwidth payload whose length follows an
// exponential distribution with mean 1000*mean characters. The payload is
// never empty.
func Generate(mean float64) (string, error) {
	if !(mean > 0) || math.IsInf(mean, 0) {
		return "", &ConfigError{Unit: UnitBandwidth, Field: "mean_response_size", Message: fmt.Sprintf("must be a positive number, got %v", mean)}
	}
	return RandomLetters(PayloadLength(SampleExponential(mean))), nil
}

// Bandwidth is the bandwidth stress unit. Unlike the other units its output
// is returned to the caller.
type Bandwidth struct {
	mean float64
}

// NewBandwidth creates a bandwidth unit for the given mean response size.
func NewBandwidth(mean float64) *Bandwidth {
	return &Bandwidth{mean: mean}
}

// Name returns the unit name.
func (b *Bandwidth) Name() string { return UnitBandwidth }

// Generate produces one payload along with its report.
func (b *Bandwidth) Generate(log logrus.FieldLogger) (string, Report, error) {
	log = loggerOrDiscard(log).WithField("unit", UnitBandwidth)
	log.Debug("Creating random response")

	start := time.Now()
	payload, err := Generate(b.mean)
	report := Report{
		Unit:     UnitBandwidth,
		Duration: time.Since(start),
		Bytes:    int64(len(payload)),
		Ops:      1,
	}
	if err != nil {
		report.Ops = 0
	}
	return payload, report, err
}

// Run generates and discards a payload.
func (b *Bandwidth) Run(log logrus.FieldLogger) (Report, error) {
	_, report, err := b.Generate(log)
	return report, err
}

var _ Unit = (*Bandwidth)(nil)
