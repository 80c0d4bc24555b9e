package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classportal",
		Subsystem: "storage",
		Name:      "uploads_total",
		Help:      "Accepted and failed uploads by backend.",
	}, []string{"backend", "result"})

	uploadBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classportal",
		Subsystem: "storage",
		Name:      "upload_bytes_total",
		Help:      "Bytes written to the blob backend.",
	}, []string{"backend"})

	releasedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classportal",
		Subsystem: "storage",
		Name:      "released_total",
		Help:      "Blobs deleted after their record went away, or swept as orphans.",
	}, []string{"backend", "reason"})
)
