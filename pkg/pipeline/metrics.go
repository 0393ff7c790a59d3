package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dkt"

// Metrics counts what preprocessing runs have loaded.
type Metrics struct {
	RowsLoaded        *prometheus.CounterVec
	UnknownCategories *prometheus.CounterVec
	Sequences         *prometheus.CounterVec
	VocabularySize    *prometheus.GaugeVec
}

// NewMetrics registers the pipeline metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RowsLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Interaction rows read from input tables.",
		}, []string{"mode"}),
		UnknownCategories: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_categories_total",
			Help:      "Categorical values encoded as unknown because the fitted vocabulary lacks them.",
		}, []string{"mode", "column"}),
		Sequences: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequences_total",
			Help:      "Per-entity sequences produced.",
		}, []string{"mode"}),
		VocabularySize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vocabulary_size",
			Help:      "Number of classes in each persisted vocabulary, unknown included.",
		}, []string{"column"}),
	}
}
