// Package server exposes the loader over HTTP.
//
// Every request to /load runs one load and answers with the generated
// payload. The configuration is taken from the body of the first successful
// request and kept for the lifetime of the process, unless the server was
// started with a fixed configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/wesleyorama2/loadsim/internal/loader"
	"github.com/wesleyorama2/loadsim/internal/logging"
	"github.com/wesleyorama2/loadsim/internal/metrics"
)

// Config contains configuration for the HTTP server.
type Config struct {
	// Addr is the listen address (default: ":8080")
	Addr string

	// MaxRPS caps accepted /load requests per second. Zero disables the limit.
	MaxRPS float64

	// Burst is the limiter bucket size (default: max(1, MaxRPS))
	Burst int

	// MaxBodyBytes caps request bodies (default: 1 MiB)
	MaxBodyBytes int64

	// ShutdownTimeout bounds graceful shutdown (default: 10s)
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodyBytes:    1 << 20,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server serves loads over HTTP.
type Server struct {
	cfg    Config
	loads  *loader.Cached
	prom   *metrics.Prometheus
	log    logrus.FieldLogger
	router *gin.Engine
}

// New creates a server. prom and log may be nil.
func New(cfg Config, loads *loader.Cached, prom *metrics.Prometheus, log logrus.FieldLogger) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if log == nil {
		log = logging.Discard()
	}

	s := &Server{
		cfg:   cfg,
		loads: loads,
		prom:  prom,
		log:   log,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(s.log))
	if s.prom != nil {
		router.Use(s.prom.Middleware())
	}

	router.GET("/healthz", s.health)
	if s.prom != nil {
		router.GET("/metrics", gin.WrapH(s.prom.Handler()))
	}

	load := router.Group("/load")
	load.Use(RateLimit(s.limiter()))
	load.GET("", s.load)
	load.POST("", s.load)

	return router
}

func (s *Server) limiter() *rate.Limiter {
	if s.cfg.MaxRPS <= 0 {
		return nil
	}
	burst := s.cfg.Burst
	if burst <= 0 {
		burst = max(1, int(s.cfg.MaxRPS))
	}
	return rate.NewLimiter(rate.Limit(s.cfg.MaxRPS), burst)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address and serves until ctx is done, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", ln.Addr().String()).Info("starting http server")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.WithError(err).Error("server shutdown")
		return err
	}
	s.log.Info("server stopped")
	return nil
}
