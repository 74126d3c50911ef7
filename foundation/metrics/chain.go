// Package metrics provides the prometheus metrics recorded by the node.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "powledger"

// Set of outcomes recorded with the chain metrics.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
	StatusStale     = "stale"
	StatusReplaced  = "replaced"
	StatusUnchanged = "unchanged"
)

var (
	chainMineTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "mine_total",
		Help:      "Count of mining attempts by outcome.",
	}, []string{"status"})

	chainMineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "mine_duration_seconds",
		Help:      "Duration of mining attempts.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"status"})

	chainHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "height",
		Help:      "Height of the latest block in the local chain.",
	})

	chainBlocksAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "proposed_blocks_total",
		Help:      "Count of blocks proposed by peers by outcome.",
	}, []string{"status"})

	chainReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "reconcile_total",
		Help:      "Count of reconciliation runs by outcome.",
	}, []string{"status"})

	mempoolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "mempool",
		Name:      "size",
		Help:      "Number of transactions waiting to be mined.",
	})

	mempoolSubmitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mempool",
		Name:      "submit_total",
		Help:      "Count of submitted transactions by outcome.",
	}, []string{"status"})

	mempoolDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mempool",
		Name:      "dropped_total",
		Help:      "Count of transactions dropped because they could not be applied.",
	})

	peerRequestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "peer",
		Name:      "requests_total",
		Help:      "Count of requests made to peers by operation and outcome.",
	}, []string{"op", "status"})

	peerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "peer",
		Name:      "request_duration_seconds",
		Help:      "Duration of requests made to peers.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op", "status"})
)

// Chain tracks metrics for the chain, mempool and peer activity.
type Chain struct{}

// ObserveMine records the outcome and duration of a mining attempt.
func (Chain) ObserveMine(status string, started time.Time) {
	chainMineTotal.WithLabelValues(status).Inc()
	chainMineDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
}

// ObserveHeight records the height of the latest block.
func (Chain) ObserveHeight(height uint64) {
	chainHeight.Set(float64(height))
}

// ObserveProposedBlock records the outcome of processing a peer block.
func (Chain) ObserveProposedBlock(err error) {
	chainBlocksAccepted.WithLabelValues(status(err)).Inc()
}

// ObserveReconcile records the outcome of a reconciliation run.
func (Chain) ObserveReconcile(status string) {
	chainReconcileTotal.WithLabelValues(status).Inc()
}

// ObserveMempool records the number of transactions in the mempool.
func (Chain) ObserveMempool(size int) {
	mempoolSize.Set(float64(size))
}

// ObserveSubmit records the outcome of a transaction submission.
func (Chain) ObserveSubmit(err error) {
	mempoolSubmitTotal.WithLabelValues(status(err)).Inc()
}

// ObserveDropped records transactions removed from a block candidate.
func (Chain) ObserveDropped(n int) {
	mempoolDroppedTotal.Add(float64(n))
}

// ObservePeerRequest records the outcome and duration of a peer request.
func (Chain) ObservePeerRequest(op string, err error, started time.Time) {
	s := status(err)
	peerRequestTotal.WithLabelValues(op, s).Inc()
	peerRequestDuration.WithLabelValues(op, s).Observe(time.Since(started).Seconds())
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
