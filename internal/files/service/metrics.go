package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ingestTotal counts uploads by outcome: ok or an error code.
	ingestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartfiles_ingest_total",
			Help: "Total number of upload attempts by outcome",
		},
		[]string{"outcome"},
	)

	// blobCleanupFailures counts blobs left behind because a delete failed.
	blobCleanupFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartfiles_blob_cleanup_failures_total",
			Help: "Total number of blob deletes that failed and left an orphaned blob",
		},
		[]string{"stage"},
	)

	// purgedDescriptors counts descriptors removed for an unusable blob reference.
	purgedDescriptors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartfiles_purged_descriptors_total",
			Help: "Total number of corrupt file descriptors purged",
		},
		[]string{"path"},
	)
)

const (
	stageIngest = "ingest"
	stageDelete = "delete"

	purgeList  = "list"
	purgeGet   = "get"
	purgeSweep = "sweep"

	outcomeOK = "ok"
)
