package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the console agent.
	Registry = prometheus.NewRegistry()

	// PollTicks counts scheduler ticks by key and outcome.
	PollTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "console_poll_ticks_total", Help: "Polling ticks by key and outcome."},
		[]string{"key", "outcome"},
	)

	// EventsReceived counts pushed events by name and disposition.
	EventsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "console_events_total", Help: "Pushed events by name and disposition (applied, filtered, dropped)."},
		[]string{"event", "disposition"},
	)

	// JobActions counts lifecycle transitions by kind and outcome.
	JobActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "console_job_actions_total", Help: "Job lifecycle actions by kind and outcome."},
		[]string{"kind", "outcome"},
	)

	// GatewayLatency tracks backend call latencies in seconds.
	GatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "console_gateway_latency_seconds", Help: "Backend call latency in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"operation", "status"},
	)
)

var regOnce sync.Once

// Register registers all collectors on the console registry exactly once.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(PollTicks)
		Registry.MustRegister(EventsReceived)
		Registry.MustRegister(JobActions)
		Registry.MustRegister(GatewayLatency)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
