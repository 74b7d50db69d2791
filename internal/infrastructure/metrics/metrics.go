package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yukia3e/evm-contract-deployer/internal/domain/repository"
)

const namespace = "deployer"

const (
	OutcomeSuccess  = "success"
	OutcomePending  = "pending"
	OutcomeMismatch = "address_mismatch"
	OutcomeReverted = "reverted"
	OutcomeFailed   = "failed"
)

// Metrics and labels naming conventions https://prometheus.io/docs/practices/naming/.
type DeployerMetrics struct {
	registry *prometheus.Registry

	DeploymentsTotal    *prometheus.CounterVec
	DeploymentDuration  prometheus.Histogram
	ReceiptWaitDuration prometheus.Histogram
	LastNonce           prometheus.Gauge
}

var _ repository.DeploymentMetrics = (*DeployerMetrics)(nil)

func NewDeployerMetrics() *DeployerMetrics {
	deploymentsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "deployment",
		Name:      "total",
		Help:      "Number of contract deployments by outcome",
	}, []string{"outcome"})

	deploymentDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "deployment",
		Name:      "duration_seconds",
		Help:      "Histogram of contract deployment duration, nonce read to confirmation",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 30, 60, 120, 300},
	})

	receiptWaitDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "receipt",
		Name:      "wait_seconds",
		Help:      "Histogram of time spent polling for a transaction receipt",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 30, 60, 120, 300},
	})

	lastNonce := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "account",
		Name:      "last_nonce",
		Help:      "Nonce used by the most recent deployment",
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		deploymentsTotal,
		deploymentDuration,
		receiptWaitDuration,
		lastNonce,
	)

	return &DeployerMetrics{
		registry:            registry,
		DeploymentsTotal:    deploymentsTotal,
		DeploymentDuration:  deploymentDuration,
		ReceiptWaitDuration: receiptWaitDuration,
		LastNonce:           lastNonce,
	}
}

func (m *DeployerMetrics) ObserveDeployment(outcome string, duration time.Duration) {
	m.DeploymentsTotal.WithLabelValues(outcome).Inc()
	m.DeploymentDuration.Observe(duration.Seconds())
}

func (m *DeployerMetrics) ObserveReceiptWait(duration time.Duration) {
	m.ReceiptWaitDuration.Observe(duration.Seconds())
}

func (m *DeployerMetrics) ObserveNonce(nonce uint64) {
	m.LastNonce.Set(float64(nonce))
}

func (m *DeployerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteToTextfile writes the current values in the node_exporter textfile format.
func (m *DeployerMetrics) WriteToTextfile(filename string) error {
	return prometheus.WriteToTextfile(filename, m.registry)
}
