package monitoring

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry builds the Prometheus registry with process, Go runtime and
// pipeline collectors installed.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c,
	)
	return reg
}

// RegisterRoutes binds the metrics scrape endpoint and the status API.
func RegisterRoutes(e *echo.Echo, reg *prometheus.Registry, h *Handler) {
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	g := e.Group("/api/monitoring")
	g.GET("/status", h.Status)
	g.GET("/task-metrics", h.TaskMetrics)
}
