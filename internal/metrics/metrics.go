package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Collector metrics
	TicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stockwatch_collector_ticks_total",
			Help: "Total number of completed collection ticks",
		},
	)

	FetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockwatch_fetch_failures_total",
			Help: "Total number of per-ticker fetch failures recorded as absent values",
		},
		[]string{"ticker"},
	)

	RowsAppendedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stockwatch_rows_appended_total",
			Help: "Total number of rows persisted",
		},
	)

	AppendFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stockwatch_append_failures_total",
			Help: "Total number of failed row appends",
		},
	)

	// Alerting metrics
	AlertsFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockwatch_alerts_fired_total",
			Help: "Total number of threshold alerts fired",
		},
		[]string{"ticker"},
	)

	AlertSendFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockwatch_alert_send_failures_total",
			Help: "Total number of alert notifications that failed to deliver",
		},
		[]string{"ticker"},
	)
)
