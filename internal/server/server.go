// Package server exposes the orchestrator over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/themis-legal/themis/internal/asyncexec"
	"github.com/themis-legal/themis/internal/metrics"
	"github.com/themis-legal/themis/internal/orchestrator"
	"github.com/themis-legal/themis/pkg/models"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string

	// BodyLimit caps request payload size. Defaults to "2M".
	BodyLimit string
}

// Server wires the orchestrator service and the async job manager into
// an echo router.
type Server struct {
	echo    *echo.Echo
	service *orchestrator.Service
	jobs    *asyncexec.Manager
	metrics *metrics.Registry
	config  *Config
	startup time.Time
}

// NewServer creates the HTTP server. service is required; jobs may be
// nil, in which case a manager with default concurrency is created.
func NewServer(service *orchestrator.Service, jobs *asyncexec.Manager, cfg *Config) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("orchestrator service is required")
	}
	if jobs == nil {
		jobs = asyncexec.NewManager(service, 0)
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8000}
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "2M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		service: service,
		jobs:    jobs,
		metrics: metrics.NewRegistry(),
		config:  cfg,
		startup: time.Now(),
	}

	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{MinLength: 1000}))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.CORSOrigins,
			AllowCredentials: true,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			ExposeHeaders:    []string{echo.HeaderXRequestID},
		}))
	}
	e.Use(s.requestMetrics)

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", s.handleMetrics)

	g := s.echo.Group("/orchestrator")
	g.POST("/plan", s.handlePlan)
	g.POST("/execute", s.handleExecute)
	g.POST("/execute/stream", s.handleExecuteStream)
	g.POST("/execute/async", s.handleExecuteAsync)
	g.POST("/re-execute", s.handleReExecute)
	g.GET("/plans/:planID", s.handleGetPlan)
	g.GET("/plans/:planID/artifacts", s.handleGetArtifacts)
	g.GET("/plans/:planID/execution", s.handleGetExecution)
	g.GET("/breakers", s.handleBreakers)
	g.GET("/jobs", s.handleListJobs)
	g.GET("/jobs/stats", s.handleJobStats)
	g.GET("/jobs/:jobID", s.handleGetJob)
	g.GET("/jobs/:jobID/result", s.handleGetJobResult)
	g.DELETE("/jobs/:jobID", s.handleCancelJob)
}

// requestMetrics counts requests and records latency per completed
// request.
func (s *Server) requestMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	total := s.metrics.Counter("themis_http_requests_total", "Total HTTP requests served.")
	errored := s.metrics.Counter("themis_http_errors_total", "HTTP requests that returned an error status.")
	latency := s.metrics.Timing("themis_http_request_duration_seconds", "HTTP request latency.")
	active := s.metrics.Gauge("themis_http_active_requests", "Requests currently in flight.")

	return func(c echo.Context) error {
		start := time.Now()
		active.Add(1)
		err := next(c)
		active.Add(-1)
		total.Inc()
		latency.Observe(time.Since(start))
		if err != nil || c.Response().Status >= 400 {
			errored.Inc()
		}

		log.Printf("[server] %s %s %d %s",
			c.Request().Method, c.Request().RequestURI, c.Response().Status, time.Since(start).Round(time.Millisecond))
		return err
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// errorHandler renders every error in one JSON envelope and maps
// orchestrator error types onto HTTP status codes.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "internal server error"
	field := ""

	var validationErr *orchestrator.ValidationError
	var planErr *orchestrator.PlanNotFoundError
	var execErr *orchestrator.ExecutionNotFoundError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		message = validationErr.Message
		field = validationErr.Field
	case errors.As(err, &planErr):
		status = http.StatusNotFound
		message = planErr.Error()
	case errors.As(err, &execErr):
		status = http.StatusNotFound
		message = execErr.Error()
	case errors.As(err, &httpErr):
		status = httpErr.Code
		if m, ok := httpErr.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(status)
		}
	default:
		log.Printf("[server] unhandled error: %v", err)
	}

	body := errorBody{Error: errorDetail{
		Code:      status,
		Message:   message,
		Field:     field,
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
	}}
	if writeErr := c.JSON(status, body); writeErr != nil {
		log.Printf("[server] writing error response: %v", writeErr)
	}
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.HTML(http.StatusOK, `<html><body>
<h1>Themis Orchestration API</h1>
<p>Multi-agent legal analysis workflow orchestration.</p>
</body></html>`)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadiness(c echo.Context) error {
	checks := map[string]bool{
		"orchestrator": s.service != nil,
		"jobs":         s.jobs != nil,
	}
	status := "ready"
	for _, ok := range checks {
		if !ok {
			status = "not_ready"
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":         status,
		"uptime_seconds": time.Since(s.startup).Seconds(),
		"checks":         checks,
	})
}

func (s *Server) handleMetrics(c echo.Context) error {
	return c.Blob(http.StatusOK, "text/plain; version=0.0.4", []byte(s.metrics.Render()))
}

// PlanRequest is the body for POST /orchestrator/plan.
type PlanRequest struct {
	Matter models.Matter `json:"matter"`
}

func (s *Server) handlePlan(c echo.Context) error {
	var req PlanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	plan, err := s.service.Plan(c.Request().Context(), req.Matter)
	if err != nil {
		return err
	}
	s.metrics.Counter("themis_plans_created_total", "Plans created.").Inc()
	return c.JSON(http.StatusOK, plan)
}

// ExecuteRequest is the body for the execute endpoints. Either matter
// or plan_id must be present.
type ExecuteRequest struct {
	Matter models.Matter `json:"matter"`
	PlanID string        `json:"plan_id"`
}

func (s *Server) handleExecute(c echo.Context) error {
	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	start := time.Now()
	record, err := s.service.Execute(c.Request().Context(), req.Matter, req.PlanID)
	if err != nil {
		return err
	}
	s.metrics.Counter("themis_executions_total", "Workflow executions run.").Inc()
	s.metrics.Timing("themis_execution_duration_seconds", "Workflow execution latency.").Observe(time.Since(start))
	return c.JSON(http.StatusOK, record)
}

func (s *Server) handleExecuteStream(c echo.Context) error {
	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp := c.Response()
	header := resp.Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")

	var streamErr error
	sink := func(ev orchestrator.Event) {
		if streamErr != nil {
			return
		}
		if err := writeSSE(resp, ev); err != nil {
			streamErr = err
		}
	}

	_, err := s.service.ExecuteStream(c.Request().Context(), req.Matter, req.PlanID, sink)
	if err != nil {
		// Errors before the first event still get a JSON response.
		if !resp.Committed {
			return err
		}
		writeSSE(resp, map[string]string{"stage": "error", "error": err.Error()})
	}
	if streamErr != nil {
		return streamErr
	}
	s.metrics.Counter("themis_executions_total", "Workflow executions run.").Inc()
	return nil
}

// ReExecuteRequest is the body for POST /orchestrator/re-execute.
type ReExecuteRequest struct {
	PlanID            string `json:"plan_id"`
	FromStep          string `json:"from_step"`
	ResumeFromFailure bool   `json:"resume_from_failure"`
}

func (s *Server) handleReExecute(c echo.Context) error {
	var req ReExecuteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	record, err := s.service.ReExecute(c.Request().Context(), req.PlanID, req.FromStep, req.ResumeFromFailure)
	if err != nil {
		return err
	}
	s.metrics.Counter("themis_executions_total", "Workflow executions run.").Inc()
	return c.JSON(http.StatusOK, record)
}

// AsyncExecuteRequest is the body for POST /orchestrator/execute/async.
type AsyncExecuteRequest struct {
	Matter  models.Matter            `json:"matter"`
	PlanID  string                   `json:"plan_id"`
	Webhook *asyncexec.WebhookConfig `json:"webhook"`
}

func (s *Server) handleExecuteAsync(c echo.Context) error {
	var req AsyncExecuteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	planID := req.PlanID
	if planID == "" {
		plan, err := s.service.Plan(c.Request().Context(), req.Matter)
		if err != nil {
			return err
		}
		planID = plan.PlanID
	}

	job := s.jobs.StartAsync(planID, req.Webhook)
	s.metrics.Counter("themis_async_jobs_total", "Async jobs started.").Inc()
	return c.JSON(http.StatusAccepted, job)
}

func (s *Server) handleGetPlan(c echo.Context) error {
	plan, err := s.service.GetPlan(c.Request().Context(), c.Param("planID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plan)
}

func (s *Server) handleGetArtifacts(c echo.Context) error {
	artifacts, err := s.service.GetArtifacts(c.Request().Context(), c.Param("planID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"plan_id":   c.Param("planID"),
		"artifacts": artifacts,
	})
}

func (s *Server) handleGetExecution(c echo.Context) error {
	record, err := s.service.GetExecution(c.Request().Context(), c.Param("planID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, record)
}

func (s *Server) handleBreakers(c echo.Context) error {
	return c.JSON(http.StatusOK, s.service.BreakerStats())
}

func (s *Server) handleListJobs(c echo.Context) error {
	status := asyncexec.JobStatus(c.QueryParam("status"))
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"jobs": s.jobs.ListJobs(status, limit)})
}

func (s *Server) handleJobStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.jobs.GetStats())
}

func (s *Server) handleGetJob(c echo.Context) error {
	job := s.jobs.GetJob(c.Param("jobID"))
	if job == nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("job %q does not exist", c.Param("jobID")))
	}
	return c.JSON(http.StatusOK, job)
}

func (s *Server) handleGetJobResult(c echo.Context) error {
	jobID := c.Param("jobID")
	job := s.jobs.GetJob(jobID)
	if job == nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("job %q does not exist", jobID))
	}
	result := s.jobs.GetJobResult(jobID)
	if result == nil {
		return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("job %q has no result (status %s)", jobID, job.Status))
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleCancelJob(c echo.Context) error {
	jobID := c.Param("jobID")
	if !s.jobs.CancelJob(jobID) {
		job := s.jobs.GetJob(jobID)
		if job == nil {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("job %q does not exist", jobID))
		}
		return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("job %q is already %s", jobID, job.Status))
	}
	return c.JSON(http.StatusOK, map[string]string{"job_id": jobID, "status": string(asyncexec.JobCancelled)})
}

// ServeHTTP makes the server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start starts the HTTP listener.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	log.Printf("[server] listening on %s", addr)
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests and waits for background jobs.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Printf("[server] shutting down")
	if err := s.echo.Shutdown(ctx); err != nil {
		return err
	}
	s.jobs.Wait()
	return nil
}
