// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics holds the Node's prometheus instrumentation.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the Node's bundle of prometheus collectors.
type Metrics struct {
	PacketsProcessed *prometheus.CounterVec
	PacketsDropped   *prometheus.CounterVec
	MACFailures      prometheus.Counter
	ExecutorErrors   prometheus.Counter
	MissingOverflow  prometheus.Counter
	StoreFull        prometheus.Counter
	RegistrySize     prometheus.Gauge
	OutboxDepth      prometheus.Gauge
	MissingDepth     prometheus.Gauge
}

// New constructs and registers the Node's metrics against registerer.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		PacketsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "myco_packets_processed_total",
			Help: "Number of inbound packets dispatched by message type.",
		}, []string{"type"}),
		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "myco_packets_dropped_total",
			Help: "Number of inbound packets dropped, by reason.",
		}, []string{"reason"}),
		MACFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "myco_mac_failures_total",
			Help: "Number of packets that failed MAC verification.",
		}),
		ExecutorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "myco_executor_errors_total",
			Help: "Number of executor invocations that returned an error.",
		}),
		MissingOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "myco_missing_overflow_total",
			Help: "Number of missing-tracker insertions that evicted an existing entry.",
		}),
		StoreFull: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "myco_store_full_total",
			Help: "Number of Deploy records dropped because the service store was full.",
		}),
		RegistrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "myco_registry_size",
			Help: "Number of distinct service ids currently tracked.",
		}),
		OutboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "myco_outbox_depth",
			Help: "Number of packets queued in the outbox after the last tick.",
		}),
		MissingDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "myco_missing_depth",
			Help: "Number of ids currently held in the missing-work tracker.",
		}),
	}

	collectors := []prometheus.Collector{
		m.PacketsProcessed,
		m.PacketsDropped,
		m.MACFailures,
		m.ExecutorErrors,
		m.MissingOverflow,
		m.StoreFull,
		m.RegistrySize,
		m.OutboxDepth,
		m.MissingDepth,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
