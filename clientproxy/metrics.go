// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric names exposed by the Client Proxy.
const (
	ClientCountGauge        = "relay_client_count"
	ClientConnectCounter    = "relay_client_connect_total"
	ClientDisconnectCounter = "relay_client_disconnect_total"
	QueueDepthGauge         = "relay_queue_depth"
	QueueDroppedCounter     = "relay_queue_dropped_total"
)

// Measures holds the Prometheus instruments the Client Proxy updates as
// it runs.
type Measures struct {
	ClientCount  prometheus.Gauge
	Connects     prometheus.Counter
	Disconnects  *prometheus.CounterVec
	QueueDepth   prometheus.Gauge
	QueueDropped prometheus.Counter
}

// NewMeasures registers and returns the Client Proxy's metrics against the
// given registerer.
func NewMeasures(r prometheus.Registerer) *Measures {
	factory := promauto.With(r)

	return &Measures{
		ClientCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: ClientCountGauge,
			Help: "Current number of connected clients.",
		}),
		Connects: factory.NewCounter(prometheus.CounterOpts{
			Name: ClientConnectCounter,
			Help: "Total number of client connections accepted.",
		}),
		Disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: ClientDisconnectCounter,
			Help: "Total number of client disconnections, by reason.",
		}, []string{"reason"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: QueueDepthGauge,
			Help: "Total number of pending messages queued across all devices.",
		}),
		QueueDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: QueueDroppedCounter,
			Help: "Total number of pending messages dropped without delivery.",
		}),
	}
}
