package snapshotdir

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricManifestBytesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapstream_snapshot_manifest_bytes_read_total",
			Help: "Number of manifest bytes read",
		},
	)
	metricSegmentsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapstream_snapshot_segments_opened_total",
			Help: "Number of segment files opened",
		},
	)
	metricUnparsableSegmentNames = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapstream_snapshot_unparsable_segment_names_total",
			Help: "Number of files under accounts/ skipped for unparsable names",
		},
	)
)

func init() {
	prometheus.MustRegister(metricManifestBytesRead)
	prometheus.MustRegister(metricSegmentsOpened)
	prometheus.MustRegister(metricUnparsableSegmentNames)
}
