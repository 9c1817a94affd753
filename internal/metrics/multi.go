package metrics

import (
	"time"

	"github.com/wesleyorama2/loadsim/internal/stress"
)

// Recorder receives load outcomes. It matches loader.Recorder.
type Recorder interface {
	RecordReport(report stress.Report)
	RecordLoad(duration time.Duration, payloadBytes int64, err error)
}

// Multi fans every record out to several recorders. Nil entries are skipped.
type Multi []Recorder

// RecordReport forwards report to every recorder.
func (m Multi) RecordReport(report stress.Report) {
	for _, r := range m {
		if r != nil {
			r.RecordReport(report)
		}
	}
}

// RecordLoad forwards the load outcome to every recorder.
func (m Multi) RecordLoad(duration time.Duration, payloadBytes int64, err error) {
	for _, r := range m {
		if r != nil {
			r.RecordLoad(duration, payloadBytes, err)
		}
	}
}
