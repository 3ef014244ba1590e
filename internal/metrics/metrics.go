// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plaza_gateway_requests_total",
		Help: "Gateway calls by backend, operation and outcome",
	}, []string{"backend", "op", "outcome"})

	gatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plaza_gateway_request_duration_seconds",
		Help:    "Gateway call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "op"})

	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plaza_comment_refresh_total",
		Help: "Comment thread refetches by trigger and outcome",
	}, []string{"trigger", "outcome"})

	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plaza_query_cache_lookups_total",
		Help: "Query cache lookups by entity and result (hit, stale, miss, error)",
	}, []string{"entity", "result"})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveGateway 记录一次网关调用
func ObserveGateway(backend, op string, start time.Time, err error) {
	gatewayRequestsTotal.WithLabelValues(backend, op, outcome(err)).Inc()
	gatewayRequestDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

// ObserveRefresh 记录一次评论刷新，trigger 为 tick 或 mutation
func ObserveRefresh(trigger string, err error) {
	refreshTotal.WithLabelValues(trigger, outcome(err)).Inc()
}

func ObserveCacheLookup(entity, result string) {
	cacheLookupsTotal.WithLabelValues(entity, result).Inc()
}
