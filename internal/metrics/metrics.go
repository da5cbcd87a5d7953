// Package metrics exposes Prometheus collectors for provisioning.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hearth-panel/hearth-ctl/internal/errors"
)

var (
	// ServerCreations counts creation attempts by outcome ("success" or an
	// error kind such as "validation" or "daemon_connection").
	ServerCreations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_server_creations_total",
		Help: "Server creation attempts by outcome.",
	}, []string{"outcome"})

	// Rollbacks counts servers removed again after a failed remote create.
	Rollbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hearth_server_rollbacks_total",
		Help: "Servers rolled back after the daemon failed to create them.",
	})

	// AllocationReservations counts reservation attempts by result
	// ("reserved" or "conflict").
	AllocationReservations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_allocation_reservations_total",
		Help: "Allocation reservation attempts by result.",
	}, []string{"result"})

	// AllocationsCreated counts allocation rows created automatically or by operators.
	AllocationsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_allocations_created_total",
		Help: "Allocations created, by source.",
	}, []string{"source"})

	// DaemonCalls times daemon calls by operation and result.
	DaemonCalls = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hearth_daemon_call_duration_seconds",
		Help:    "Daemon call latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation", "result"})

	// HTTPRequests counts API requests.
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_http_requests_total",
		Help: "API requests by method, route, and status.",
	}, []string{"method", "path", "status"})

	// HTTPDuration times API requests.
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hearth_http_response_time_seconds",
		Help:    "API response time in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "path", "status"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		ServerCreations, Rollbacks, AllocationReservations, AllocationsCreated,
		DaemonCalls, HTTPRequests, HTTPDuration,
	}
}

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(collectors()...)
	})
}

// RegisterWith adds every collector to reg.
func RegisterWith(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Outcome labels an error for ServerCreations.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(errors.KindOf(err))
}

// RecordCreation counts one creation attempt.
func RecordCreation(err error) {
	ServerCreations.WithLabelValues(Outcome(err)).Inc()
}

// RecordReservation counts one reservation attempt.
func RecordReservation(ok bool) {
	result := "reserved"
	if !ok {
		result = "conflict"
	}
	AllocationReservations.WithLabelValues(result).Inc()
}

// RecordDaemonCall observes one daemon call.
func RecordDaemonCall(operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	DaemonCalls.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
}

// RecordRequest observes one API request.
func RecordRequest(method, path string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	HTTPRequests.WithLabelValues(method, path, code).Inc()
	HTTPDuration.WithLabelValues(method, path, code).Observe(d.Seconds())
}
