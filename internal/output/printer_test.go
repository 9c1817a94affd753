package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/loadsim/internal/loader"
	"github.com/wesleyorama2/loadsim/internal/metrics"
	"github.com/wesleyorama2/loadsim/internal/stress"
)

func sampleResult() *loader.Result {
	return &loader.Result{
		Payload:      "abcXYZ",
		PayloadBytes: 6,
		Duration:     12 * time.Millisecond,
		Total:        13 * time.Millisecond,
		Reports: []stress.Report{
			{Unit: stress.UnitCPU, Duration: 5 * time.Millisecond, Ops: 1200},
			{
				Unit:      stress.UnitDisk,
				Duration:  7 * time.Millisecond,
				Phases:    map[string]time.Duration{stress.PhaseWrite: 4 * time.Millisecond, stress.PhaseRead: 3 * time.Millisecond},
				Ops:       10,
				Bytes:     10240,
				ReadBytes: 10240,
			},
			{Unit: stress.UnitBandwidth, Duration: time.Millisecond, Ops: 1, Bytes: 6},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "text", want: FormatText},
		{in: "JSON", want: FormatJSON},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "ParseFormat(%q)", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestPrintResult_Text(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(PrinterConfig{Writer: &buf})

	require.NoError(t, p.PrintResult(sampleResult(), nil))
	out := buf.String()

	assert.NotContains(t, out, "\x1b[", "non-terminal writer must not get colors")
	assert.Contains(t, out, "Load completed ✓")
	assert.Contains(t, out, "digits 1,200")
	assert.Contains(t, out, "written 10.0 KiB")
	assert.Contains(t, out, "Payload:")
	assert.NotContains(t, out, "abcXYZ")

	// write phase is listed before read
	assert.Less(t, strings.Index(out, "    write"), strings.Index(out, "    read"))
}

func TestPrintResult_ShowPayloadQuiet(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(PrinterConfig{Writer: &buf, Quiet: true, ShowPayload: true})

	require.NoError(t, p.PrintResult(sampleResult(), nil))
	assert.Equal(t, "abcXYZ\n", buf.String())
}

func TestPrintResult_Failure(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(PrinterConfig{Writer: &buf, ShowPayload: true})

	result := &loader.Result{Reports: []stress.Report{{Unit: stress.UnitDisk}}}
	require.NoError(t, p.PrintResult(result, errors.New("disk unit failed: no space")))

	out := buf.String()
	assert.Contains(t, out, "Load failed ✗")
	assert.Contains(t, out, "Error: disk unit failed: no space")
	assert.NotContains(t, out, "Payload:")
}

func TestPrintResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(PrinterConfig{Writer: &buf, Format: FormatJSON})

	require.NoError(t, p.PrintResult(sampleResult(), nil))
	doc := buf.String()

	assert.True(t, gjson.Valid(doc))
	assert.True(t, gjson.Get(doc, "ok").Bool())
	assert.Equal(t, int64(6), gjson.Get(doc, "payloadBytes").Int())
	assert.False(t, gjson.Get(doc, "payload").Exists(), "payload only with ShowPayload")
	assert.Equal(t, int64(3), gjson.Get(doc, "reports.#").Int())
	assert.Equal(t, "disk", gjson.Get(doc, "reports.1.unit").String())
	assert.InDelta(t, 4.0, gjson.Get(doc, "reports.1.phasesMs.write").Float(), 0.001)
}

func TestPrintResult_JSONError(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(PrinterConfig{Writer: &buf, Format: FormatJSON})

	require.NoError(t, p.PrintResult(nil, errors.New("context canceled")))
	doc := buf.String()

	assert.False(t, gjson.Get(doc, "ok").Bool())
	assert.Equal(t, "context canceled", gjson.Get(doc, "error").String())
	assert.Equal(t, int64(0), gjson.Get(doc, "reports.#").Int())
}

func TestPrintBench(t *testing.T) {
	engine := metrics.NewEngine()
	for i := 1; i <= 4; i++ {
		engine.RecordReport(stress.Report{Unit: stress.UnitCPU, Duration: time.Duration(i) * time.Millisecond})
		engine.RecordLoad(time.Duration(i)*2*time.Millisecond, 2048, nil)
	}

	summary := &BenchSummary{Count: 4, Concurrency: 2, Rate: 10, Wall: 2 * time.Second, Snapshot: engine.GetSnapshot()}

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(PrinterConfig{Writer: &buf}).PrintBench(summary))
	out := buf.String()

	assert.Contains(t, out, "Bench summary: 4 loads, concurrency 2")
	assert.Contains(t, out, "Loads/sec:")
	assert.Contains(t, out, "2.0")
	assert.Contains(t, out, "Target rate:")
	assert.Contains(t, out, "8.0 KiB")
	assert.Contains(t, out, "Unit duration")
	assert.Contains(t, out, "cpu")

	buf.Reset()
	require.NoError(t, NewPrinter(PrinterConfig{Writer: &buf, Format: FormatJSON}).PrintBench(summary))
	assert.Equal(t, int64(4), gjson.Get(buf.String(), "metrics.totalLoads").Int())
	assert.Equal(t, int64(4), gjson.Get(buf.String(), "metrics.units.cpu.duration.count").Int())
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(PrinterConfig{Writer: &buf}).PrintError(errors.New("bad config"))
	assert.Equal(t, "✗ bad config\n", buf.String())

	buf.Reset()
	NewPrinter(PrinterConfig{Writer: &buf, Format: FormatJSON}).PrintError(errors.New("bad config"))
	assert.Equal(t, "bad config", gjson.Get(buf.String(), "error").String())
}

func TestForceColors(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(PrinterConfig{Writer: &buf, ForceColors: true})
	require.NoError(t, p.PrintResult(sampleResult(), nil))
	assert.Contains(t, buf.String(), "\x1b[")

	buf.Reset()
	p = NewPrinter(PrinterConfig{Writer: &buf, ForceColors: true, NoColor: true})
	require.NoError(t, p.PrintResult(sampleResult(), nil))
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
	assert.Equal(t, "-1,000", formatNumber(-1000))

	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "2.0 MiB", formatBytes(2*1024*1024))

	assert.Equal(t, "0ms", formatDurationShort(0))
	assert.Equal(t, "250µs", formatDurationShort(250*time.Microsecond))
	assert.Equal(t, "1.50ms", formatDurationShort(1500*time.Microsecond))
	assert.Equal(t, "2.50s", formatDurationShort(2500*time.Millisecond))

	assert.Equal(t, "1m 05s", formatDuration(65*time.Second))
}
