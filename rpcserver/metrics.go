package rpcserver

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapstream_rpc_requests_total",
			Help: "Number of RPC requests received",
		},
		[]string{"method"},
	)
	metricErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapstream_rpc_errors_total",
			Help: "Number of RPC requests answered with an error",
		},
		[]string{"method"},
	)
	metricForwardFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapstream_rpc_forward_failed_total",
			Help: "Number of failed upstream transaction forwards",
		},
	)
)

func init() {
	prometheus.MustRegister(metricRequests)
	prometheus.MustRegister(metricErrors)
	prometheus.MustRegister(metricForwardFailed)
}
