package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/executor"
	"github.com/hupe1980/capmesh/keypool"
	"github.com/hupe1980/capmesh/logging"
	"github.com/hupe1980/capmesh/statusbus"
	"github.com/hupe1980/capmesh/stream"
	"github.com/hupe1980/capmesh/tracker"
)

// Result sources reported on capability responses.
const (
	// SourceAI marks results produced by a credential-backed provider.
	SourceAI = "ai"
	// SourceAlgorithmic marks results produced by a credential-free
	// fallback handler.
	SourceAlgorithmic = "algorithmic"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// Logger receives request logs and handler diagnostics.
	Logger logging.Logger
	// Debug leaves gin in debug mode; release mode otherwise.
	Debug bool
}

// Server is the HTTP front of a CapMesh deployment.
type Server struct {
	engine   *gin.Engine
	pool     *keypool.Manager
	bus      *statusbus.Bus
	executor *executor.Executor
	bridge   *stream.Bridge
	handlers []core.Handler
	logger   logging.Logger
}

// New assembles the gin engine and routes over the given components. The
// handler list is the static capability routing table; it is not mutated.
func New(pool *keypool.Manager, bus *statusbus.Bus, exec *executor.Executor, bridge *stream.Bridge, handlers []core.Handler, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(requestLogger(opts.Logger), gin.Recovery())

	s := &Server{
		engine:   engine,
		pool:     pool,
		bus:      bus,
		executor: exec,
		bridge:   bridge,
		handlers: handlers,
		logger:   opts.Logger,
	}
	s.routes()

	return s
}

// Engine exposes the underlying gin engine, e.g. for httptest servers or
// mounting under a parent router.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Serve runs the HTTP listener until ctx is cancelled, then drains open
// connections with a bounded grace period.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server", "addr", addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) routes() {
	api := s.engine.Group("/api/v1")

	api.POST("/sessions", s.createSession)
	api.DELETE("/sessions/:id", s.deleteSession)
	api.POST("/capability", s.runCapability)
	api.GET("/status/stream", s.streamStatus)
	api.GET("/keys", s.listKeys)
	api.POST("/keys", s.addKey)
}

func (s *Server) createSession(c *gin.Context) {
	c.JSON(http.StatusCreated, gin.H{"session_id": core.NewSessionID()})
}

func (s *Server) deleteSession(c *gin.Context) {
	s.bus.ClearSession(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// capabilityRequest is the POST /capability body.
type capabilityRequest struct {
	SessionID      string `json:"session_id"`
	Capability     string `json:"capability" binding:"required"`
	Prompt         string `json:"prompt" binding:"required"`
	SystemPrompt   string `json:"system_prompt"`
	ResponseFormat string `json:"response_format"`
}

func (s *Server) runCapability(c *gin.Context) {
	var body capabilityRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := body.SessionID
	if sessionID == "" {
		sessionID = core.NewSessionID()
	}

	track := tracker.New(s.bus, sessionID, body.Capability, "capability")
	outcome := s.executor.ExecuteWithProgress(c.Request.Context(), core.CapabilityRequest{
		Capability:     body.Capability,
		Prompt:         body.Prompt,
		SystemPrompt:   body.SystemPrompt,
		ResponseFormat: body.ResponseFormat,
	}, s.handlers, func(message string) {
		track.Step(message, core.StatusWarning)
	})

	switch {
	case outcome.Success:
		track.Complete("capability completed", outcome.HandlerUsed)
	case outcome.Cancelled:
		track.Fail("capability cancelled")
	default:
		track.Fail("capability failed", outcome.Error)
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"action_id":  track.ActionID(),
		"source":     s.sourceOf(outcome),
		"outcome":    outcome,
	})
}

// sourceOf reports whether the winning handler was credential-backed AI or
// an algorithmic fallback. Failed outcomes have no source.
func (s *Server) sourceOf(outcome core.ExecutionOutcome) string {
	if !outcome.Success {
		return ""
	}
	if adapter, ok := s.executor.Adapter(outcome.ProviderUsed); ok && !adapter.Info().RequiresCredential {
		return SourceAlgorithmic
	}
	return SourceAI
}

func (s *Server) streamStatus(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id query parameter is required"})
		return
	}

	if err := s.bridge.ServeSession(c.Request.Context(), c.Writer, sessionID); err != nil {
		s.logger.Error("status stream failed", "session_id", sessionID, "error", err)
	}
}

// listKeys returns the pool snapshot. Credential secrets never serialize;
// only owner labels, states and counters leave the process.
func (s *Server) listKeys(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"credentials": s.pool.Snapshot()})
}

// keyRequest is the POST /keys body.
type keyRequest struct {
	Provider string `json:"provider" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
	Owner    string `json:"owner"`
}

func (s *Server) addKey(c *gin.Context) {
	var body keyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := s.pool.AddSecret(body.Provider, body.Secret, body.Owner)
	c.JSON(http.StatusCreated, gin.H{"credential_id": id})
}

// requestLogger logs one line per request with method, path, status and
// latency.
func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
