// Package mockserver serves the analysis REST contract with deterministic
// heuristics. It backs `unip mock-server` and the client tests.
package mockserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jasperwreed/unip/internal/models"
)

const (
	Version         = "1.0.0"
	PipelineVersion = "heuristic-1"
	MaxBatchSize    = 100
	MaxTextLength   = 100000
	MaxUploadBytes  = 10 * 1024 * 1024
)

// Fault makes the next matching requests fail with Status and Detail.
type Fault struct {
	Path   string
	Status int
	Detail string
	// Count is the number of requests to fail; 0 fails forever.
	Count int
}

type Server struct {
	engine  *gin.Engine
	logger  *slog.Logger
	latency time.Duration
	mode    string

	mu       sync.Mutex
	faults   []*Fault
	logs     []models.LogRecord
	requests map[string]int
}

type Option func(*Server)

func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMode sets the processing mode reported in response metadata.
func WithMode(mode string) Option {
	return func(s *Server) { s.mode = mode }
}

func New(opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:   gin.New(),
		logger:   slog.Default(),
		mode:     "cpu",
		requests: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(
		gin.Recovery(),
		s.correlationID(),
		s.processTime(),
		s.faultInjector(),
	)

	api := s.engine.Group("/api/v1")
	api.GET("/health", s.health)
	api.GET("/meta", s.meta)
	api.POST("/analyze", s.analyzeTexts)
	api.POST("/analyze/file", s.analyzeFile)
	api.POST("/logs", s.receiveLog)
	api.POST("/logs/batch", s.receiveLogBatch)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// InjectFault queues a failure for requests to f.Path.
func (s *Server) InjectFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc := f
	s.faults = append(s.faults, &fc)
}

// Logs returns every client log record received so far.
func (s *Server) Logs() []models.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LogRecord(nil), s.logs...)
}

// Requests returns how many requests reached path.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mock server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) correlationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Correlation-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("correlation_id", id)
		c.Writer.Header().Set("X-Correlation-ID", id)
		c.Next()
	}
}

func (s *Server) processTime() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		s.mu.Lock()
		s.requests[c.Request.URL.Path]++
		s.mu.Unlock()

		if s.latency > 0 {
			select {
			case <-time.After(s.latency):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}

		// Headers must be set before the handler writes the body.
		c.Writer.Header().Set("X-Process-Time", strconv.FormatFloat(time.Since(start).Seconds(), 'f', 4, 64))
		c.Next()

		s.logger.Debug("mock request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"correlation_id", c.GetString("correlation_id"),
		)
	}
}

func (s *Server) faultInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		var hit *Fault
		for i, f := range s.faults {
			if f.Path != c.Request.URL.Path {
				continue
			}
			hit = f
			if f.Count > 0 {
				f.Count--
				if f.Count == 0 {
					s.faults = append(s.faults[:i], s.faults[i+1:]...)
				}
			}
			break
		}
		s.mu.Unlock()

		if hit == nil {
			c.Next()
			return
		}
		if hit.Detail == "" {
			c.AbortWithStatus(hit.Status)
			return
		}
		c.AbortWithStatusJSON(hit.Status, gin.H{"detail": hit.Detail})
	}
}

func errorDetail(c *gin.Context, status int, format string, args ...any) {
	c.AbortWithStatusJSON(status, gin.H{"detail": fmt.Sprintf(format, args...)})
}
