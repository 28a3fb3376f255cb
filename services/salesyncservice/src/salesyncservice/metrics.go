package salesyncservice

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	_RESULT_OK    = "ok"
	_RESULT_ERROR = "error"
)

type syncMetrics struct {
	reads          *prometheus.CounterVec
	passes         *prometheus.CounterVec
	staleDiscarded prometheus.Counter
	purchases      *prometheus.CounterVec
	lastPass       prometheus.Gauge
}

func newSyncMetrics(registerer prometheus.Registerer) (*syncMetrics, error) {
	m := &syncMetrics{
		reads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presale_sync_reads_total",
				Help: "Chain reads issued by the sync service",
			},
			[]string{"read", "result"},
		),
		passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presale_sync_passes_total",
				Help: "Scheduled refresh passes",
			},
			[]string{"trigger", "result"},
		),
		staleDiscarded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "presale_sync_stale_responses_total",
				Help: "Leaderboard responses dropped because a newer request was issued",
			},
		),
		purchases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presale_sync_purchases_total",
				Help: "Purchase attempts by outcome",
			},
			[]string{"result"},
		),
		lastPass: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "presale_sync_last_pass_timestamp_seconds",
				Help: "Unix time of the last completed refresh pass",
			},
		),
	}

	if registerer == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{m.reads, m.passes, m.staleDiscarded, m.purchases, m.lastPass} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *syncMetrics) read(name string, err error) {
	result := _RESULT_OK
	if err != nil {
		result = _RESULT_ERROR
	}
	m.reads.WithLabelValues(name, result).Inc()
}
