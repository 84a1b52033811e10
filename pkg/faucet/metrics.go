package faucet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "toke_faucet_build_info",
			Help: "Build information of the faucet bot",
		},
		[]string{"version", "commit", "date"},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toke_faucet_requests_total",
			Help: "Total number of faucet requests handled",
		},
		[]string{"outcome"},
	)

	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toke_faucet_transfers_total",
			Help: "Total number of transfer attempts",
		},
		[]string{"result", "confirmation"},
	)

	TransferAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "toke_faucet_transfer_amount",
			Help:    "Dispersed amount per transfer in whole tokens",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 12),
		},
	)

	StatusPublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toke_faucet_status_publishes_total",
			Help: "Total number of status publish attempts",
		},
		[]string{"result"},
	)
)
