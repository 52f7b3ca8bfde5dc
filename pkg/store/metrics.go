package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreHits tracks reads that found a record
	StoreHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planvault_store_hits_total",
			Help: "Total number of store reads that found a record",
		},
	)

	// StoreMisses tracks reads for absent keys
	StoreMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planvault_store_misses_total",
			Help: "Total number of store reads for absent keys",
		},
	)

	// StoreSize tracks bytes written to the store
	StoreSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "planvault_store_written_bytes",
			Help: "Bytes written to the plan store",
		},
	)

	// StoreErrors tracks store operation errors
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planvault_store_errors_total",
			Help: "Total number of store operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "ping"
	)
)
