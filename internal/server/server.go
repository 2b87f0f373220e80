// Package server runs the gate as a long-lived decision service behind a
// local socket, for hosts that prefer RPC over process-per-call hooks.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/audit"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/checks"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/guidance"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/handlers"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/logger"
)

var log = logger.New("server")

// MaxBodySize caps decision request bodies (1MB).
const MaxBodySize = 1 << 20

// Options configures the decision service.
type Options struct {
	SocketPath string
	// RecordAllowed also audits Allow rulings, not only Ask/Deny.
	RecordAllowed bool
}

// Server serves decisions over HTTP on a local socket. The gate pointer
// swaps atomically on config reload, so in-flight requests finish on the
// gate they started with.
type Server struct {
	gate  atomic.Pointer[handlers.Gate]
	store *audit.Store // nil disables auditing

	opts   Options
	router *gin.Engine
}

// New creates a Server around an initial gate. store may be nil.
func New(gate *handlers.Gate, store *audit.Store, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(securityHeaders())
	router.Use(bodySizeLimit(MaxBodySize))

	s := &Server{store: store, opts: opts, router: router}
	s.gate.Store(gate)
	s.registerRoutes()
	return s
}

// SetGate swaps in a rebuilt gate (config hot reload).
func (s *Server) SetGate(g *handlers.Gate) {
	s.gate.Store(g)
	log.Info("gate reloaded")
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens on the configured socket until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := apiListener(s.opts.SocketPath)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.SocketPath, err)
	}
	defer cleanupSocket(s.opts.SocketPath)

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	log.Info("decision service listening on %s", s.opts.SocketPath)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	v1 := s.router.Group("/v1")
	{
		v1.POST("/decisions", s.handleDecision)
		v1.GET("/decisions/recent", s.handleRecent)
	}
}

// decisionRequest mirrors the hook protocol's stdin payload.
type decisionRequest struct {
	ToolName  string             `json:"tool_name" binding:"required"`
	ToolInput handlers.ToolInput `json:"tool_input"`
}

type decisionResponse struct {
	Decision string `json:"decision"`
	Origin   string `json:"origin,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (s *Server) handleDecision(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := s.gate.Load().Dispatch(req.ToolName, req.ToolInput)
	s.record(req, res)

	c.JSON(http.StatusOK, decisionResponse{
		Decision: res.Decision.String(),
		Origin:   res.Origin,
		Message:  guidance.Message(res),
	})
}

type recentQuery struct {
	Minutes int `form:"minutes" binding:"omitempty,min=1,max=10080"`
	Limit   int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

func (s *Server) handleRecent(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "auditing disabled"})
		return
	}
	var query recentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recs, err := s.store.Recent(query.Minutes, query.Limit)
	if err != nil {
		log.Error("recent decisions query: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query decisions"})
		return
	}
	if recs == nil {
		recs = []audit.Record{}
	}
	c.JSON(http.StatusOK, recs)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// record audits one ruling. Audit failures log; they never affect the
// decision already made.
func (s *Server) record(req decisionRequest, res checks.CheckResult) {
	if s.store == nil {
		return
	}
	if res.Allowed() && !s.opts.RecordAllowed {
		return
	}
	rec := audit.Record{
		Tool:     req.ToolName,
		Kind:     string(toolKind(req.ToolName)),
		Decision: res.Decision.String(),
		Origin:   res.Origin,
		Reason:   res.Reason,
		Input:    inputSummary(req.ToolInput),
	}
	if err := s.store.Insert(rec); err != nil {
		log.Warn("audit insert failed: %v", err)
	}
}

func toolKind(toolName string) checks.Kind {
	switch toolName {
	case "Bash":
		return checks.KindCommand
	case "Read":
		return checks.KindRead
	case "Write", "Edit", "MultiEdit", "NotebookEdit":
		return checks.KindWrite
	case "Glob", "Grep":
		return checks.KindSearch
	}
	return checks.Kind(toolName)
}

func inputSummary(in handlers.ToolInput) string {
	switch {
	case in.Command != "":
		return in.Command
	case in.FilePath != "":
		return in.FilePath
	case in.Pattern != "":
		return in.Pattern
	}
	return ""
}
