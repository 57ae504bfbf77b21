package accountindex

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricRecordsScanned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapstream_index_records_scanned_total",
			Help: "Number of account records scanned while building the index",
		},
	)
	metricSegmentsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapstream_index_segments_skipped_total",
			Help: "Number of undeclared segment files skipped during index builds",
		},
	)
	metricAccountsIndexed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "snapstream_index_accounts",
			Help: "Number of distinct accounts in the last built index",
		},
	)
)

func init() {
	prometheus.MustRegister(metricRecordsScanned)
	prometheus.MustRegister(metricSegmentsSkipped)
	prometheus.MustRegister(metricAccountsIndexed)
}
