package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// QueriesTotal counts unified query workflow runs by mode (rag/direct)
	// and outcome (success/error).
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "raggate",
			Name:      "queries_total",
			Help:      "Total unified query workflow executions",
		},
		[]string{"mode", "status"},
	)

	// ModelPullsTotal counts synchronous model auto-provision pulls.
	ModelPullsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "raggate",
			Name:      "model_pulls_total",
			Help:      "Total blocking model pulls triggered by auto-provisioning",
		},
		[]string{"status"},
	)

	// RetrievedSources tracks how many sources RAG queries retrieve.
	RetrievedSources = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "raggate",
			Name:      "retrieved_sources",
			Help:      "Number of sources retrieved per RAG query",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50},
		},
	)
)

// RegisterGatewayMetrics registers the gateway-level collectors. Called once
// from the composition root (no init side effects).
func RegisterGatewayMetrics() {
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(ModelPullsTotal)
	prometheus.MustRegister(RetrievedSources)
}
