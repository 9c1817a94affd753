package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// runCLI executes the root command with args and returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLIContext(t, context.Background(), args...)
}

func runCLIContext(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := execute(ctx, root)
	return stdout.String(), stderr.String(), err
}

func isLetters(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return len(s) > 0
}

func TestRoot_Help(t *testing.T) {
	stdout, _, err := runCLI(t)
	require.NoError(t, err)
	assert.Contains(t, stdout, "loadsim")
	for _, sub := range []string{"run", "bench", "serve", "config"} {
		assert.Contains(t, stdout, sub)
	}
}

func TestRoot_Version(t *testing.T) {
	stdout, _, err := runCLI(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, stdout, version)
}

func TestRun_JSON(t *testing.T) {
	stdout, _, err := runCLI(t, "run", "--json", "--log-level", "error",
		"--set", "mean_response_size=0.01",
		"--set", "memory_stress.run=true",
		"--set", "memory_stress.memory_size=10",
		"--set", "memory_stress.memory_io=10")
	require.NoError(t, err)

	assert.True(t, gjson.Get(stdout, "ok").Bool())
	assert.GreaterOrEqual(t, gjson.Get(stdout, "payloadBytes").Int(), int64(1))
	assert.Equal(t, "memory", gjson.Get(stdout, "reports.0.unit").String())
	assert.Equal(t, "bandwidth", gjson.Get(stdout, "reports.1.unit").String())
	assert.Equal(t, int64(10), gjson.Get(stdout, "reports.0.ops").Int())
}

func TestRun_PrintPayload(t *testing.T) {
	stdout, _, err := runCLI(t, "run", "--quiet", "--print-payload", "--log-level", "error",
		"--set", "mean_response_size=0.01")
	require.NoError(t, err)
	assert.True(t, isLetters(strings.TrimSpace(stdout)))
}

func TestRun_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "load.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
disk_stress:
  run: true
  disk_write_block_count: 4
  disk_write_block_size: 256
mean_bandwidth: 0.01
`), 0o644))

	tmp := t.TempDir()
	stdout, _, err := runCLI(t, "run", "--json", "--log-level", "error", "--config", path, "--temp-dir", tmp)
	require.NoError(t, err)

	assert.Equal(t, "disk", gjson.Get(stdout, "reports.0.unit").String())
	assert.Equal(t, int64(1024), gjson.Get(stdout, "reports.0.readBytes").Int())
	assert.True(t, gjson.Get(stdout, "reports.0.phasesMs.write").Exists())

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_InvalidConfig(t *testing.T) {
	_, stderr, err := runCLI(t, "run", "--set", "cpu_stress.thread_pool_size=0")
	require.Error(t, err)
	assert.Contains(t, stderr, "Error:")
	assert.Contains(t, stderr, "thread_pool_size")
}

func TestRun_InvalidSet(t *testing.T) {
	_, _, err := runCLI(t, "run", "--set", "no-equals-sign")
	assert.Error(t, err)
}

func TestRun_UnitFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	stdout, stderr, err := runCLI(t, "run", "--log-level", "error", "--no-color",
		"--set", "disk_stress.run=true",
		"--set", "disk_stress.disk_write_block_count=1",
		"--temp-dir", missing)
	require.Error(t, err)

	assert.Contains(t, stdout, "Load failed")
	assert.Contains(t, stdout, "disk unit failed")
	assert.NotContains(t, stderr, "Error: disk", "already reported on stdout")
}

func TestRun_LogsToStderr(t *testing.T) {
	_, stderr, err := runCLI(t, "run", "--quiet", "--log-format", "json", "--set", "mean_response_size=0.01")
	require.NoError(t, err)

	var sawLoader bool
	for _, line := range strings.Split(strings.TrimSpace(stderr), "\n") {
		if strings.HasPrefix(gjson.Get(line, "msg").String(), "Loader took") {
			sawLoader = true
		}
	}
	assert.True(t, sawLoader, "stderr: %s", stderr)
}

func TestRun_InvalidLogLevel(t *testing.T) {
	_, _, err := runCLI(t, "run", "--log-level", "loud")
	assert.Error(t, err)
}

func TestBench_JSON(t *testing.T) {
	stdout, _, err := runCLI(t, "bench", "--json", "--log-level", "error",
		"--count", "6", "--concurrency", "3",
		"--set", "mean_response_size=0.001",
		"--set", "cpu_stress.run=true",
		"--set", "cpu_stress.range_complexity=[5,10]")
	require.NoError(t, err)

	assert.Equal(t, int64(6), gjson.Get(stdout, "count").Int())
	assert.Equal(t, int64(6), gjson.Get(stdout, "metrics.totalLoads").Int())
	assert.Equal(t, int64(0), gjson.Get(stdout, "metrics.failedLoads").Int())
	assert.Equal(t, int64(6), gjson.Get(stdout, "metrics.units.cpu.duration.count").Int())
	assert.Equal(t, int64(6), gjson.Get(stdout, "metrics.units.bandwidth.duration.count").Int())
}

func TestBench_Rate(t *testing.T) {
	start := time.Now()
	stdout, _, err := runCLI(t, "bench", "--log-level", "error", "--no-color",
		"--count", "3", "--rate", "20", "--set", "mean_response_size=0.001")
	require.NoError(t, err)

	// Three loads at 20/s need at least two 50ms intervals
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Contains(t, stdout, "Bench summary: 3 loads")
	assert.Contains(t, stdout, "Target rate:")
}

func TestBench_InvalidFlags(t *testing.T) {
	tests := [][]string{
		{"bench", "--count", "0"},
		{"bench", "--concurrency", "0"},
		{"bench", "--rate", "-1"},
	}
	for _, args := range tests {
		_, _, err := runCLI(t, args...)
		assert.Error(t, err, "args %v", args)
	}
}

func TestBench_Failures(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	stdout, _, err := runCLI(t, "bench", "--json", "--log-level", "panic",
		"--count", "2",
		"--set", "disk_stress.run=true",
		"--temp-dir", missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 2 loads failed")
	assert.Equal(t, int64(2), gjson.Get(stdout, "metrics.failedLoads").Int())
}

func TestBench_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stdout, _, err := runCLIContext(t, ctx, "bench", "--json", "--log-level", "error", "--count", "5")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), gjson.Get(stdout, "count").Int())
}

func TestConfig_YAML(t *testing.T) {
	stdout, _, err := runCLI(t, "config", "--set", "cpu_stress.run=true", "--set", "cpu_stress.trials=3")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &doc))

	cpu := doc["cpu_stress"].(map[string]interface{})
	assert.Equal(t, true, cpu["run"])
	assert.Equal(t, 3, cpu["trials"])
	assert.Equal(t, 1, cpu["thread_pool_size"], "untouched fields keep defaults")
	assert.Equal(t, 11, doc["mean_response_size"])
}

func TestConfig_JSON(t *testing.T) {
	stdout, _, err := runCLI(t, "config", "--format", "json", "--set", "mean_bandwidth=2.5")
	require.NoError(t, err)

	assert.Equal(t, 2.5, gjson.Get(stdout, "mean_response_size").Float())
	assert.False(t, gjson.Get(stdout, "mean_bandwidth").Exists())
	assert.Equal(t, "mubtestfile.txt", gjson.Get(stdout, "disk_stress.tmp_file_name").String())
	assert.Equal(t, int64(100), gjson.Get(stdout, "cpu_stress.range_complexity.1").Int())
}

func TestConfig_BadFormat(t *testing.T) {
	_, _, err := runCLI(t, "config", "--format", "toml")
	assert.Error(t, err)
}

func TestServe_BadAddr(t *testing.T) {
	_, _, err := runCLI(t, "serve", "--log-level", "error", "--addr", "256.0.0.1:99999")
	assert.Error(t, err)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, _, err := runCLIContext(t, ctx, "serve", "--log-level", "error", "--addr", "127.0.0.1:0")
	assert.NoError(t, err)
}

func TestServe_InvalidFixedConfig(t *testing.T) {
	_, _, err := runCLI(t, "serve", "--addr", "127.0.0.1:0", "--set", "mean_response_size=0")
	assert.Error(t, err)
}
