package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"

	"github.com/incidentwire/incidentwire/pkg/apperror"
)

// Handler serves the pipeline status API.
type Handler struct {
	db *bun.DB
}

func NewHandler(db *bun.DB) *Handler {
	return &Handler{db: db}
}

// StatusResponse summarizes pipeline throughput for the status endpoint.
type StatusResponse struct {
	Articles  map[string]int64 `json:"articles"`
	Incidents map[string]int64 `json:"incidents"`
	Window    string           `json:"window"`
}

// TaskAggregateRow is one rollup bucket in the task metrics response.
type TaskAggregateRow struct {
	PeriodStart   time.Time `bun:"period_start" json:"periodStart"`
	TaskName      string    `bun:"task_name" json:"taskName"`
	TotalRuns     int       `bun:"total_runs" json:"totalRuns"`
	Successful    int       `bun:"successful" json:"successful"`
	Failed        int       `bun:"failed" json:"failed"`
	AvgDurationMs float64   `bun:"avg_duration_ms" json:"avgDurationMs"`
	P95DurationMs float64   `bun:"p95_duration_ms" json:"p95DurationMs"`
}

// Status handles GET /api/monitoring/status?hours=.
func (h *Handler) Status(c echo.Context) error {
	hours := 24
	if raw := c.QueryParam("hours"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 24*30 {
			hours = n
		}
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	ctx := c.Request().Context()

	resp := StatusResponse{
		Articles:  map[string]int64{},
		Incidents: map[string]int64{},
		Window:    strconv.Itoa(hours) + "h",
	}

	var articleRows []struct {
		Status string `bun:"status"`
		Count  int64  `bun:"count"`
	}
	err := h.db.NewRaw(
		"SELECT status, count(*) AS count FROM ingested_articles WHERE created_at > ? GROUP BY status",
		since).Scan(ctx, &articleRows)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	for _, row := range articleRows {
		resp.Articles[row.Status] = row.Count
	}

	var incidentRows []struct {
		CurationStatus string `bun:"curation_status"`
		Count          int64  `bun:"count"`
	}
	err = h.db.NewRaw(
		"SELECT curation_status, count(*) AS count FROM incidents WHERE created_at > ? GROUP BY curation_status",
		since).Scan(ctx, &incidentRows)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	for _, row := range incidentRows {
		resp.Incidents[row.CurationStatus] = row.Count
	}

	return c.JSON(http.StatusOK, resp)
}

// TaskMetrics handles GET /api/monitoring/task-metrics?task=&hours=.
func (h *Handler) TaskMetrics(c echo.Context) error {
	hours := 6
	if raw := c.QueryParam("hours"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 24*7 {
			hours = n
		}
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	q := h.db.NewRaw(
		`SELECT period_start, task_name, total_runs, successful, failed,
		        avg_duration_ms, p95_duration_ms
		 FROM task_metrics_aggregate
		 WHERE period_start > ?
		 ORDER BY period_start DESC`, since)

	var rows []TaskAggregateRow
	if err := q.Scan(c.Request().Context(), &rows); err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}

	task := c.QueryParam("task")
	if task != "" {
		filtered := rows[:0]
		for _, row := range rows {
			if row.TaskName == task {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	if rows == nil {
		rows = []TaskAggregateRow{}
	}
	return c.JSON(http.StatusOK, map[string]any{"buckets": rows, "count": len(rows)})
}
