package cli

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/loadsim/internal/loader"
	"github.com/wesleyorama2/loadsim/internal/metrics"
	"github.com/wesleyorama2/loadsim/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve loads over HTTP",
		Long: `Serve loads over HTTP. Every GET or POST /load runs one load and answers
with the payload as text/plain.

Without --config or --set, the JSON (or YAML) body of the first successful
request becomes the configuration for the lifetime of the process and later
bodies are ignored. With --config or --set the configuration is fixed at
startup and every body is ignored.

Endpoints:
  GET|POST /load   run one load
  GET /healthz     liveness
  GET /metrics     Prometheus metrics

Examples:
  loadsim serve --addr :8080
  loadsim serve --config load.yaml --max-rps 50`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	addConfigFlags(cmd)
	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().Float64("max-rps", 0, "Maximum /load requests per second (0 = unlimited)")
	cmd.Flags().Int("burst", 0, "Rate limiter burst (default: max-rps)")
	cmd.Flags().Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	cmd.Flags().String("temp-dir", "", "Directory for the disk unit's temporary files (default: working directory)")

	return cmd
}

// runServe serves until the command context is cancelled.
func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	maxRPS, _ := cmd.Flags().GetFloat64("max-rps")
	burst, _ := cmd.Flags().GetInt("burst")
	shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
	tempDir, _ := cmd.Flags().GetString("temp-dir")

	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	if log.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	prom := metrics.NewPrometheus()
	opts := []loader.Option{
		loader.WithLogger(log),
		loader.WithRecorder(prom),
		loader.WithTempDir(tempDir),
	}

	var loads *loader.Cached
	if configGiven(cmd) {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		loads = loader.NewCachedWith(cfg, opts...)
		log.Info("configuration fixed at startup; request bodies are ignored")
	} else {
		loads = loader.NewCached(opts...)
	}

	srv := server.New(server.Config{
		Addr:            addr,
		MaxRPS:          maxRPS,
		Burst:           burst,
		ShutdownTimeout: shutdownTimeout,
	}, loads, prom, log)

	return srv.Run(cmd.Context())
}
