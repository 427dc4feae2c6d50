package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BetsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bets_placed_total",
		Help: "Bets accepted by the placement transaction.",
	})

	StakeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bet_stake_minor_total",
		Help: "Total stake accepted, in minor currency units.",
	})

	MarketsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "markets_resolved_total",
		Help: "Markets moved to the resolved state.",
	})

	PayoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payouts_minor_total",
		Help: "Total winnings credited, in minor currency units.",
	})

	RefundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refunds_minor_total",
		Help: "Total stakes refunded on cancellation, in minor currency units.",
	})

	TxRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tx_retries_total",
		Help: "Serialization-conflict retries inside the transaction runner.",
	})
)
