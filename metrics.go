package main

import "github.com/prometheus/client_golang/prometheus"

var (
	admittedTxCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedd_admission_total",
			Help: "Transactions processed by the admission pipeline, by outcome.",
		},
		[]string{"outcome"},
	)

	peersOnlineGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fedd_peers_online",
		Help: "Number of peers currently considered connected.",
	})

	peersFlaggedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fedd_peers_flagged",
		Help: "Number of peers currently flagged as unhealthy.",
	})

	cacheRefreshCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fedd_status_cache_refresh_total",
		Help: "Number of times the status endpoint's cache actually refreshed.",
	})
)

func init() {
	prometheus.MustRegister(
		admittedTxCounter, peersOnlineGauge, peersFlaggedGauge, cacheRefreshCounter,
	)
}
