// Package rest is the additive job-submission API: a gin HTTP server
// wrapping internal/xmatch.Pipeline so a cross-match run can be
// triggered over HTTP and its progress streamed over WebSocket, instead
// of only from the CLI.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	apiws "github.com/astrocross/nway/internal/api/websocket"
	"github.com/astrocross/nway/internal/catalogio"
	"github.com/astrocross/nway/internal/eventbus"
	"github.com/astrocross/nway/internal/store"
	"github.com/astrocross/nway/internal/xconfig"
	"github.com/astrocross/nway/internal/xmatch"
)

// JobStatus is the lifecycle state of a submitted cross-match job.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is the externally visible state of one submitted run.
type Job struct {
	ID          string    `json:"id"`
	Status      JobStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
	ResultPath  string    `json:"result_path,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// JobRequest is the POST /v1/jobs request body: a config plus the
// on-disk paths of the catalogues it references, in the same order as
// Config.Catalogues.
type JobRequest struct {
	Config         xconfig.Config `json:"config"`
	CataloguePaths []string       `json:"catalogue_paths" binding:"required"`
}

// Server wires gin routes onto a job runner backed by internal/xmatch.
type Server struct {
	engine *gin.Engine
	bus    eventbus.EventBus
	hub    *apiws.Hub
	cache  store.Cache

	mu     sync.Mutex
	nextID int
}

// NewServer builds a Server. bus and hub should be the same pair, with
// hub already subscribed to bus (see apiws.NewHub); cache backs job
// status lookups across the process's lifetime.
func NewServer(bus eventbus.EventBus, hub *apiws.Hub, cache store.Cache) *Server {
	s := &Server{bus: bus, hub: hub, cache: cache}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

// Engine returns the underlying gin.Engine, e.g. to pass to http.Server.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")
	v1.POST("/jobs", s.handleSubmitJob)
	v1.GET("/jobs/:id", s.handleGetJob)
	v1.GET("/jobs/:id/ws", s.handleJobWebSocket)
	s.engine.GET("/healthz", s.handleHealth)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSubmitJob(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.CataloguePaths) != len(req.Config.Catalogues) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "catalogue_paths length must match config.catalogues length"})
		return
	}
	if err := xconfig.Validate(req.Config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := s.newJobID()
	job := Job{ID: id, Status: JobQueued, SubmittedAt: time.Now().UTC()}
	if err := s.cache.SetJSON(c.Request.Context(), jobKey(id), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	go s.runJob(id, req)

	c.JSON(http.StatusAccepted, job)
}

func (s *Server) handleGetJob(c *gin.Context) {
	id := c.Param("id")
	var job Job
	if err := s.cache.GetJSON(c.Request.Context(), jobKey(id), &job); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleJobWebSocket(c *gin.Context) {
	id := c.Param("id")
	s.hub.HandleWebSocket(id)(c.Writer, c.Request)
}

func (s *Server) runJob(id string, req JobRequest) {
	ctx := context.Background()
	setStatus := func(job Job) {
		_ = s.cache.SetJSON(ctx, jobKey(id), job)
	}
	setStatus(Job{ID: id, Status: JobRunning, SubmittedAt: time.Now().UTC()})

	tables := make([]catalogio.Table, len(req.CataloguePaths))
	for i, path := range req.CataloguePaths {
		t, err := catalogio.ReadCSV(path)
		if err != nil {
			setStatus(Job{ID: id, Status: JobFailed, Error: err.Error()})
			return
		}
		tables[i] = t
	}

	pipe := xmatch.NewPipeline(req.Config, s.bus, nil)
	res, err := pipe.Run(ctx, id, tables)
	if err != nil {
		setStatus(Job{ID: id, Status: JobFailed, Error: err.Error()})
		return
	}

	outPath := req.Config.Out
	if outPath == "" {
		outPath = fmt.Sprintf("xmatch-%s.csv", id)
	}
	if err := xmatch.WriteResultCSV(outPath, res, req.Config.MinProb); err != nil {
		setStatus(Job{ID: id, Status: JobFailed, Error: err.Error()})
		return
	}

	setStatus(Job{ID: id, Status: JobDone, ResultPath: outPath})
}

func (s *Server) newJobID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return fmt.Sprintf("job-%d-%d", time.Now().UnixNano(), s.nextID)
}

func jobKey(id string) string {
	return "job:" + id
}
