package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentsIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refdoc_documents_ingested_total",
		Help: "Number of reference documents ingested.",
	})

	chunksIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refdoc_chunks_ingested_total",
		Help: "Number of document chunks persisted.",
	})

	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refdoc_searches_total",
		Help: "Number of retrieval searches by mode.",
	}, []string{"mode"})
)
