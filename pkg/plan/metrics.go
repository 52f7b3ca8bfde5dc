package plan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// preconditionFailures tracks If-Match mismatches by operation
	preconditionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planvault_precondition_failures_total",
			Help: "Total number of mutations rejected by a failed If-Match precondition",
		},
		[]string{"operation"}, // "replace", "patch", "delete"
	)

	// createConflicts tracks creates rejected because the key existed
	createConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planvault_create_conflicts_total",
			Help: "Total number of creates rejected because the key already existed",
		},
	)

	// notModifiedResponses tracks reads answered from the client's own copy
	notModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planvault_not_modified_total",
			Help: "Total number of reads short-circuited by a matching If-None-Match",
		},
	)

	// validationFailures tracks documents rejected by the schema gate
	validationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planvault_validation_failures_total",
			Help: "Total number of documents rejected by schema validation",
		},
		[]string{"operation"}, // "create", "replace", "patch"
	)
)
