// Package output renders load results and bench summaries for the console.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wesleyorama2/loadsim/internal/loader"
	"github.com/wesleyorama2/loadsim/internal/metrics"
	"github.com/wesleyorama2/loadsim/internal/stress"
)

// Format represents the available output formats
type Format string

const (
	// FormatText is the default human-readable text format
	FormatText Format = "text"
	// FormatJSON outputs one JSON document per result
	FormatJSON Format = "json"
)

const ruleWidth = 56

// ParseFormat converts a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (must be text or json)", s)
	}
}

// PrinterConfig contains configuration for Printer.
type PrinterConfig struct {
	Writer      io.Writer
	Format      Format
	NoColor     bool
	ForceColors bool

	// Quiet suppresses the per-unit report in text mode
	Quiet bool

	// ShowPayload prints the payload itself, not only its length
	ShowPayload bool
}

// Printer writes results to the console.
//
// # Thread Safety
//
// Printer is safe for concurrent use. Every print holds a mutex.
type Printer struct {
	w           io.Writer
	format      Format
	scheme      *ColorScheme
	useColors   bool
	quiet       bool
	showPayload bool

	mu sync.Mutex
}

// NewPrinter creates a new printer.
func NewPrinter(config PrinterConfig) *Printer {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	if config.Format == "" {
		config.Format = FormatText
	}

	useColors := !config.NoColor && (config.ForceColors || (isTerminal(config.Writer) && supportsColors()))

	scheme := NoColorScheme()
	if useColors {
		scheme = ForcedColorScheme()
	}

	return &Printer{
		w:           config.Writer,
		format:      config.Format,
		scheme:      scheme,
		useColors:   useColors,
		quiet:       config.Quiet,
		showPayload: config.ShowPayload,
	}
}

// resultDocument is the JSON rendering of a load.
type resultDocument struct {
	OK           bool             `json:"ok"`
	Error        string           `json:"error,omitempty"`
	DurationMS   float64          `json:"durationMs"`
	TotalMS      float64          `json:"totalMs"`
	PayloadBytes int64            `json:"payloadBytes"`
	Payload      string           `json:"payload,omitempty"`
	Reports      []reportDocument `json:"reports"`
}

type reportDocument struct {
	Unit       string             `json:"unit"`
	DurationMS float64            `json:"durationMs"`
	PhasesMS   map[string]float64 `json:"phasesMs,omitempty"`
	Ops        int64              `json:"ops"`
	Bytes      int64              `json:"bytes"`
	ReadBytes  int64              `json:"readBytes,omitempty"`
	Checksum   uint64             `json:"checksum,omitempty"`
}

// PrintResult prints one load. err is the error returned by the load; result
// may be nil when the load never started.
func (p *Printer) PrintResult(result *loader.Result, err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == FormatJSON {
		return p.writeJSON(p.resultDocument(result, err))
	}

	if !p.quiet {
		line := strings.Repeat("━", ruleWidth)
		status := p.scheme.Success.Sprint("Load completed ") + SuccessIcon(!p.useColors)
		if err != nil {
			status = p.scheme.Error.Sprint("Load failed ") + ErrorIcon(!p.useColors)
		}

		p.writeln(p.scheme.Dim.Sprint(line))
		if result != nil {
			p.writeln(fmt.Sprintf("%s %s", status, p.scheme.Dim.Sprintf("(%s)", formatDurationShort(result.Total))))
		} else {
			p.writeln(status)
		}
		p.writeln(p.scheme.Dim.Sprint(line))

		if result != nil {
			for _, r := range result.Reports {
				p.writeReport(r)
			}
			p.writeln("")
			p.writeln(fmt.Sprintf("%-12s %s", "Stress:", p.scheme.Value.Sprint(formatDurationShort(result.Duration))))
			if err == nil {
				p.writeln(fmt.Sprintf("%-12s %s chars", "Payload:", p.scheme.Highlight.Sprint(formatNumber(result.PayloadBytes))))
			}
		}
	}

	if err != nil {
		p.writeln(fmt.Sprintf("%s %s", p.scheme.Error.Sprint("Error:"), err))
		return nil
	}

	if p.showPayload && result != nil {
		p.writeln(result.Payload)
	}
	return nil
}

// writeReport prints one unit report line plus its phases.
func (p *Printer) writeReport(r stress.Report) {
	var extra []string
	switch r.Unit {
	case stress.UnitCPU:
		extra = append(extra, fmt.Sprintf("digits %s", formatNumber(r.Ops)))
	case stress.UnitMemory:
		extra = append(extra, fmt.Sprintf("cycles %s", formatNumber(r.Ops)), fmt.Sprintf("touched %s", formatBytes(r.Bytes)))
	case stress.UnitDisk:
		extra = append(extra, fmt.Sprintf("written %s", formatBytes(r.Bytes)), fmt.Sprintf("read %s", formatBytes(r.ReadBytes)))
	case stress.UnitBandwidth:
		extra = append(extra, fmt.Sprintf("chars %s", formatNumber(r.Bytes)))
	default:
		extra = append(extra, fmt.Sprintf("ops %s", formatNumber(r.Ops)))
	}

	p.writeln(fmt.Sprintf("  %s %s  %s",
		p.scheme.Unit.Sprintf("%-10s", r.Unit),
		p.scheme.Value.Sprintf("%9s", formatDurationShort(r.Duration)),
		p.scheme.Dim.Sprint(strings.Join(extra, "  "))))

	for _, name := range sortedPhases(r.Phases) {
		p.writeln(fmt.Sprintf("    %s %s",
			p.scheme.Phase.Sprintf("%-8s", name),
			formatDurationShort(r.Phases[name])))
	}
}

func (p *Printer) resultDocument(result *loader.Result, err error) resultDocument {
	doc := resultDocument{OK: err == nil, Reports: []reportDocument{}}
	if err != nil {
		doc.Error = err.Error()
	}
	if result == nil {
		return doc
	}

	doc.DurationMS = millis(result.Duration)
	doc.TotalMS = millis(result.Total)
	doc.PayloadBytes = result.PayloadBytes
	if p.showPayload {
		doc.Payload = result.Payload
	}
	for _, r := range result.Reports {
		rd := reportDocument{
			Unit:       r.Unit,
			DurationMS: millis(r.Duration),
			Ops:        r.Ops,
			Bytes:      r.Bytes,
			ReadBytes:  r.ReadBytes,
			Checksum:   r.Checksum,
		}
		if len(r.Phases) > 0 {
			rd.PhasesMS = make(map[string]float64, len(r.Phases))
			for name, d := range r.Phases {
				rd.PhasesMS[name] = millis(d)
			}
		}
		doc.Reports = append(doc.Reports, rd)
	}
	return doc
}

// BenchSummary describes a finished bench run.
type BenchSummary struct {
	Count       int               `json:"count"`
	Concurrency int               `json:"concurrency"`
	Rate        float64           `json:"rate,omitempty"`
	Wall        time.Duration     `json:"wall"`
	Snapshot    *metrics.Snapshot `json:"metrics"`
}

// PrintBench prints the summary of a bench run.
func (p *Printer) PrintBench(summary *BenchSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == FormatJSON {
		return p.writeJSON(summary)
	}

	snap := summary.Snapshot
	if snap == nil {
		snap = &metrics.Snapshot{}
	}

	line := strings.Repeat("━", ruleWidth)
	p.writeln(p.scheme.Dim.Sprint(line))
	p.writeln(p.scheme.Title.Sprintf("Bench summary: %d loads, concurrency %d", summary.Count, summary.Concurrency))
	p.writeln(p.scheme.Dim.Sprint(line))

	lps := 0.0
	if summary.Wall > 0 {
		lps = float64(snap.TotalLoads) / summary.Wall.Seconds()
	}

	errColor := p.scheme.Success
	if snap.ErrorRate > 0.01 {
		errColor = p.scheme.Warn
	}
	if snap.ErrorRate > 0.05 {
		errColor = p.scheme.Error
	}

	p.writeln(fmt.Sprintf("%-14s %s (%s ok, %s failed)",
		"Loads:",
		p.scheme.Value.Sprint(formatNumber(snap.TotalLoads)),
		formatNumber(snap.SuccessLoads),
		errColor.Sprint(formatNumber(snap.FailedLoads))))
	p.writeln(fmt.Sprintf("%-14s %s", "Wall time:", formatDuration(summary.Wall)))
	p.writeln(fmt.Sprintf("%-14s %s", "Loads/sec:", p.scheme.Value.Sprintf("%.1f", lps)))
	if summary.Rate > 0 {
		p.writeln(fmt.Sprintf("%-14s %.1f/s", "Target rate:", summary.Rate))
	}
	p.writeln(fmt.Sprintf("%-14s %s", "Error rate:", errColor.Sprintf("%.1f%%", snap.ErrorRate*100)))
	p.writeln(fmt.Sprintf("%-14s %s", "Payload:", formatBytes(snap.PayloadBytes)))
	p.writeln("")

	p.writeln(p.scheme.Title.Sprint("Load duration"))
	p.writeLatency("load", snap.Latency)

	if len(snap.Units) > 0 {
		p.writeln("")
		p.writeln(p.scheme.Title.Sprint("Unit duration"))
		names := make([]string, 0, len(snap.Units))
		for name := range snap.Units {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p.writeLatency(name, snap.Units[name].Duration)
		}
	}
	return nil
}

func (p *Printer) writeLatency(name string, s metrics.LatencyStats) {
	p.writeln(fmt.Sprintf("  %s min=%s avg=%s p50=%s p90=%s p95=%s p99=%s max=%s",
		p.scheme.Unit.Sprintf("%-10s", name),
		formatDurationShort(s.Min),
		formatDurationShort(s.Mean),
		formatDurationShort(s.P50),
		formatDurationShort(s.P90),
		formatDurationShort(s.P95),
		formatDurationShort(s.P99),
		formatDurationShort(s.Max)))
}

// PrintError prints an error that prevented any result.
func (p *Printer) PrintError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == FormatJSON {
		_ = p.writeJSON(resultDocument{Error: err.Error(), Reports: []reportDocument{}})
		return
	}
	p.writeln(fmt.Sprintf("%s %s", ErrorIcon(!p.useColors), p.scheme.Error.Sprint(err)))
}

func (p *Printer) writeJSON(v interface{}) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func (p *Printer) writeln(s string) {
	fmt.Fprintln(p.w, s)
}

func sortedPhases(phases map[string]time.Duration) []string {
	names := make([]string, 0, len(phases))
	for name := range phases {
		names = append(names, name)
	}
	// Disk phases read in execution order: write before read
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// formatDuration formats a duration for wall times.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatDurationShort formats a duration in a short format.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%.2fms", millis(d))
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}

// formatBytes formats a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
