package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the orchestrator's Prometheus collectors
type Metrics struct {
	Deployments          *prometheus.CounterVec
	AdmissionDecisions   *prometheus.CounterVec
	OrphansReclaimed     *prometheus.CounterVec
	ImagePulls           *prometheus.CounterVec
	ModelEnsure          *prometheus.CounterVec
	ProvisionDuration    prometheus.Histogram
	PairingStreamsActive prometheus.Gauge
	DirectoriesSwept     prometheus.Counter
	AgentsRunning        prometheus.Gauge
}

// NewMetrics registers all collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Deployments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "localclaw",
				Name:      "deployments_total",
				Help:      "Deployment requests by outcome",
			},
			[]string{"outcome"},
		),
		AdmissionDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "localclaw",
				Name:      "admission_decisions_total",
				Help:      "Admission decisions by path and result",
			},
			[]string{"path", "result"},
		),
		OrphansReclaimed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "localclaw",
				Name:      "orphans_reclaimed_total",
				Help:      "Orphaned agent containers processed by the reaper",
			},
			[]string{"result"},
		),
		ImagePulls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "localclaw",
				Name:      "image_pulls_total",
				Help:      "Agent image pulls by result",
			},
			[]string{"result"},
		),
		ModelEnsure: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "localclaw",
				Name:      "model_ensure_total",
				Help:      "Local model ensure attempts by result",
			},
			[]string{"result"},
		),
		ProvisionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "localclaw",
				Name:      "provision_duration_seconds",
				Help:      "Time spent provisioning an agent container",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		PairingStreamsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "localclaw",
				Name:      "pairing_streams_active",
				Help:      "Pairing streams currently open",
			},
		),
		DirectoriesSwept: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "localclaw",
				Name:      "agent_directories_swept_total",
				Help:      "Dangling agent directories removed by the sweep job",
			},
		),
		AgentsRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "localclaw",
				Name:      "agents_running",
				Help:      "Agent containers currently running",
			},
		),
	}
}
