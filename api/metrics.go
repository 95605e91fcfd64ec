package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coordinator-core/core/registry"
)

// metrics are the Prometheus gauges/counters exported at /metrics. They are
// package-level (rather than per-Server) because a process hosts exactly one
// coordinator and client_golang's default registry is process-wide.
var (
	tasksSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coordinator_tasks_submitted_total",
		Help: "Total tasks accepted via /submit.",
	})
	subtasksOffered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coordinator_subtasks_offered_total",
		Help: "Total subtask offers made via /pull.",
	})
	agentsRegistered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "coordinator_agents_registered",
		Help: "Current number of enrolled agents.",
	})
	ledgerHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "coordinator_ledger_height",
		Help: "Current ledger entry count.",
	})
)

func init() {
	prometheus.MustRegister(tasksSubmitted, subtasksOffered, agentsRegistered, ledgerHeight)
}

// handleMetrics implements GET /metrics, refreshing the gauges from live
// collaborator state before delegating to promhttp.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.Registry != nil {
		agentsRegistered.Set(float64(len(s.Registry.List(registry.Filter{}))))
	}
	if s.Ledger != nil {
		height, _ := s.Ledger.Head()
		ledgerHeight.Set(float64(height))
	}
	promhttp.Handler().ServeHTTP(w, r)
}
