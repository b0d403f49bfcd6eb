package monitoring

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	DecisionsCommitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_decisions_total",
			Help: "Total number of agent decisions by agent and outcome",
		},
		[]string{"agent", "outcome"},
	)
	DecisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_decision_duration_seconds",
			Help:    "Duration of decide-and-commit by agent",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"agent"},
	)
	CommitConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "commit_conflicts_total",
			Help: "Total number of optimistic commit conflicts",
		},
	)
	SideEffects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "side_effects_total",
			Help: "Total number of post-commit side effects by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func InitMetrics() {
	collectors := []prometheus.Collector{
		DecisionsCommitted, DecisionDuration, CommitConflicts,
		SideEffects, RequestCounter, RequestDuration,
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			log.Error().Err(err).Msg("Failed to register metric")
		}
	}
}

// HTTPMetrics is echo middleware recording request counts and latency.
func HTTPMetrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			RequestCounter.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			RequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
