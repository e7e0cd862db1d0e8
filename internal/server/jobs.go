package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/incidentwire/incidentwire/internal/config"
	"github.com/incidentwire/incidentwire/internal/jobs"
	"github.com/incidentwire/incidentwire/pkg/apperror"
)

// Job types the admin API accepts for manual enqueue.
var enqueueableTypes = map[string]string{
	jobs.TypeFetchArticles:  jobs.QueueFetch,
	jobs.TypeProcessArticle: jobs.QueueExtraction,
	jobs.TypeBatchExtract:   jobs.QueueExtraction,
	jobs.TypeEnrich:         jobs.QueueEnrichment,
	jobs.TypeFullPipeline:   jobs.QueueExtraction,
	jobs.TypeMetricsRollup:  jobs.QueueDefault,
	jobs.TypeStaleSweep:     jobs.QueueDefault,
	jobs.TypeViewRefresh:    jobs.QueueDefault,
}

// JobsHandler is the jobs admin API.
type JobsHandler struct {
	store *jobs.Store
	cfg   *config.Config
}

func NewJobsHandler(store *jobs.Store, cfg *config.Config) *JobsHandler {
	return &JobsHandler{store: store, cfg: cfg}
}

// RegisterJobRoutes binds the jobs admin endpoints.
func RegisterJobRoutes(e *echo.Echo, h *JobsHandler) {
	g := e.Group("/api/jobs")
	g.GET("", h.List)
	g.GET("/stats", h.Stats)
	g.GET("/:id", h.Get)
	g.POST("", h.Enqueue)
	g.POST("/:id/cancel", h.Cancel)
	g.POST("/:id/retry", h.Retry)
	g.POST("/recover-stale", h.RecoverStale)
}

// List handles GET /api/jobs?status=&queue=&limit=.
func (h *JobsHandler) List(c echo.Context) error {
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	list, err := h.store.List(c.Request().Context(),
		jobs.Status(c.QueryParam("status")), c.QueryParam("queue"), limit)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"jobs": list, "count": len(list)})
}

// Stats handles GET /api/jobs/stats?queue=.
func (h *JobsHandler) Stats(c echo.Context) error {
	stats, err := h.store.GetStats(c.Request().Context(), c.QueryParam("queue"))
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Get handles GET /api/jobs/:id.
func (h *JobsHandler) Get(c echo.Context) error {
	job, err := h.store.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if job == nil {
		return apperror.NewNotFound("job not found")
	}
	return c.JSON(http.StatusOK, job)
}

type enqueueRequest struct {
	Type   string    `json:"type"`
	Queue  string    `json:"queue"`
	Params jobs.JSON `json:"params"`
}

// Enqueue handles POST /api/jobs.
func (h *JobsHandler) Enqueue(c echo.Context) error {
	var req enqueueRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	defaultQueue, ok := enqueueableTypes[req.Type]
	if !ok {
		return apperror.NewBadRequest("unknown job type: " + req.Type)
	}
	queue := req.Queue
	if queue == "" {
		queue = defaultQueue
	}

	jobID, err := h.store.Enqueue(c.Request().Context(), req.Type, queue, req.Params)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"id": jobID, "status": "pending"})
}

// Cancel handles POST /api/jobs/:id/cancel.
func (h *JobsHandler) Cancel(c echo.Context) error {
	if err := h.store.Cancel(c.Request().Context(), c.Param("id")); err != nil {
		return apperror.NewBadRequest(err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id"), "status": "cancelled"})
}

// Retry handles POST /api/jobs/:id/retry for failed jobs.
func (h *JobsHandler) Retry(c echo.Context) error {
	if err := h.store.RetryFailed(c.Request().Context(), c.Param("id")); err != nil {
		return apperror.NewBadRequest(err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id"), "status": "pending"})
}

// RecoverStale handles POST /api/jobs/recover-stale: an on-demand watchdog
// sweep, same as the scheduled one.
func (h *JobsHandler) RecoverStale(c echo.Context) error {
	requeued, failed, err := h.store.WatchdogSweep(c.Request().Context(), h.cfg.Worker.StaleTimeout)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"requeued": requeued, "failed": failed})
}
