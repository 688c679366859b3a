// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

package rotation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/window"
)

const (
	metricsNamespace = "satl"
	metricsSubsystem = "rotation"
)

var (
	appliedPacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "applied_packs_total",
			Help:      "Number of rotation packs applied, per channel",
		},
		[]string{"channel"},
	)
	rejectedPacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "rejected_packs_total",
			Help:      "Number of rotation packs rejected, per channel and reason",
		},
		[]string{"channel", "reason"},
	)
	sweptEntries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "window_swept_entries_total",
			Help:      "Number of expired window entries removed by GC",
		},
	)
	windowBackendInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "window_backend_info",
			Help:      "Selected anti-replay window backend",
		},
		[]string{"backend"},
	)
	storeOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "window_store_op_duration_seconds",
			Help:      "Window store operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(appliedPacks)
	prometheus.MustRegister(rejectedPacks)
	prometheus.MustRegister(sweptEntries)
	prometheus.MustRegister(windowBackendInfo)
	prometheus.MustRegister(storeOpDuration)
}

// instrumentedStore wraps a window.Store with operation latency metrics.
type instrumentedStore struct {
	window.Store
}

func (s *instrumentedStore) Exists(channel, id string) (bool, error) {
	t := prometheus.NewTimer(storeOpDuration.With(prometheus.Labels{"op": "exists"}))
	defer t.ObserveDuration()
	return s.Store.Exists(channel, id)
}

func (s *instrumentedStore) Add(channel, id string, issuedAt, validUntil uint64) (bool, error) {
	t := prometheus.NewTimer(storeOpDuration.With(prometheus.Labels{"op": "add"}))
	defer t.ObserveDuration()
	return s.Store.Add(channel, id, issuedAt, validUntil)
}

func (s *instrumentedStore) GC(now time.Time) (int, error) {
	t := prometheus.NewTimer(storeOpDuration.With(prometheus.Labels{"op": "gc"}))
	defer t.ObserveDuration()
	return s.Store.GC(now)
}
