// Package monitoring exposes Prometheus metrics and a pipeline status API.
package monitoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"

	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Collector gauges are refreshed on scrape from live database counts.
type Collector struct {
	db  *bun.DB
	log *slog.Logger

	jobsByStatus     *prometheus.Desc
	articlesByStatus *prometheus.Desc
	incidentsTotal   *prometheus.Desc
	queueOldestAge   *prometheus.Desc
}

func NewCollector(db *bun.DB, log *slog.Logger) *Collector {
	return &Collector{
		db:  db,
		log: log.With(logger.Scope("monitoring.collector")),
		jobsByStatus: prometheus.NewDesc(
			"incidentwire_jobs_total",
			"Background jobs by status and queue.",
			[]string{"status", "queue"}, nil),
		articlesByStatus: prometheus.NewDesc(
			"incidentwire_articles_total",
			"Ingested articles by processing status.",
			[]string{"status"}, nil),
		incidentsTotal: prometheus.NewDesc(
			"incidentwire_incidents_total",
			"Incidents by curation status and category.",
			[]string{"curation_status", "category"}, nil),
		queueOldestAge: prometheus.NewDesc(
			"incidentwire_queue_oldest_pending_seconds",
			"Age of the oldest pending job per queue.",
			[]string{"queue"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobsByStatus
	ch <- c.articlesByStatus
	ch <- c.incidentsTotal
	ch <- c.queueOldestAge
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectJobs(ctx, ch)
	c.collectArticles(ctx, ch)
	c.collectIncidents(ctx, ch)
	c.collectQueueAge(ctx, ch)
}

func (c *Collector) collectJobs(ctx context.Context, ch chan<- prometheus.Metric) {
	var rows []struct {
		Status string  `bun:"status"`
		Queue  string  `bun:"queue"`
		Count  float64 `bun:"count"`
	}
	err := c.db.NewRaw(
		"SELECT status, queue, count(*) AS count FROM background_jobs GROUP BY status, queue").
		Scan(ctx, &rows)
	if err != nil {
		c.log.Warn("job gauge scrape failed", logger.Error(err))
		return
	}
	for _, row := range rows {
		ch <- prometheus.MustNewConstMetric(c.jobsByStatus,
			prometheus.GaugeValue, row.Count, row.Status, row.Queue)
	}
}

func (c *Collector) collectArticles(ctx context.Context, ch chan<- prometheus.Metric) {
	var rows []struct {
		Status string  `bun:"status"`
		Count  float64 `bun:"count"`
	}
	err := c.db.NewRaw(
		"SELECT status, count(*) AS count FROM ingested_articles GROUP BY status").
		Scan(ctx, &rows)
	if err != nil {
		c.log.Warn("article gauge scrape failed", logger.Error(err))
		return
	}
	for _, row := range rows {
		ch <- prometheus.MustNewConstMetric(c.articlesByStatus,
			prometheus.GaugeValue, row.Count, row.Status)
	}
}

func (c *Collector) collectIncidents(ctx context.Context, ch chan<- prometheus.Metric) {
	var rows []struct {
		CurationStatus string  `bun:"curation_status"`
		Category       string  `bun:"category"`
		Count          float64 `bun:"count"`
	}
	err := c.db.NewRaw(
		"SELECT curation_status, category, count(*) AS count FROM incidents GROUP BY curation_status, category").
		Scan(ctx, &rows)
	if err != nil {
		c.log.Warn("incident gauge scrape failed", logger.Error(err))
		return
	}
	for _, row := range rows {
		ch <- prometheus.MustNewConstMetric(c.incidentsTotal,
			prometheus.GaugeValue, row.Count, row.CurationStatus, row.Category)
	}
}

func (c *Collector) collectQueueAge(ctx context.Context, ch chan<- prometheus.Metric) {
	var rows []struct {
		Queue string  `bun:"queue"`
		Age   float64 `bun:"age"`
	}
	err := c.db.NewRaw(
		`SELECT queue, EXTRACT(EPOCH FROM now() - min(scheduled_at)) AS age
		 FROM background_jobs WHERE status = 'pending' GROUP BY queue`).
		Scan(ctx, &rows)
	if err != nil {
		c.log.Warn("queue age scrape failed", logger.Error(err))
		return
	}
	for _, row := range rows {
		ch <- prometheus.MustNewConstMetric(c.queueOldestAge,
			prometheus.GaugeValue, row.Age, row.Queue)
	}
}
