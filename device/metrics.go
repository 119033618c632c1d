package device

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric names exposed by the Device Relay.
const (
	DeviceCountGauge        = "relay_device_count"
	ConnectCounter          = "relay_device_connect_total"
	DisconnectCounter       = "relay_device_disconnect_total"
	MissedPingCounter       = "relay_device_missed_ping_total"
	ForcedDisconnectCounter = "relay_device_forced_disconnect_total"
	ReconcileDriftGauge     = "relay_device_reconcile_drift"
)

// Measures holds the Prometheus instruments the Device Relay updates as it
// runs. A nil *Measures is never passed to a Manager; NewMeasures always
// returns a usable instance.
type Measures struct {
	DeviceCount      prometheus.Gauge
	Connects         prometheus.Counter
	Disconnects      *prometheus.CounterVec
	MissedPings      prometheus.Counter
	ForcedDisconnect prometheus.Counter
	ReconcileDrift   prometheus.Gauge
}

// NewMeasures registers and returns the Device Relay's metrics against the
// given registerer. Passing a fresh prometheus.NewRegistry() per Manager
// instance keeps tests free of global-registry collisions.
func NewMeasures(r prometheus.Registerer) *Measures {
	factory := promauto.With(r)

	return &Measures{
		DeviceCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: DeviceCountGauge,
			Help: "Current number of connected devices.",
		}),
		Connects: factory.NewCounter(prometheus.CounterOpts{
			Name: ConnectCounter,
			Help: "Total number of device connections accepted.",
		}),
		Disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: DisconnectCounter,
			Help: "Total number of device disconnections, by reason.",
		}, []string{"reason"}),
		MissedPings: factory.NewCounter(prometheus.CounterOpts{
			Name: MissedPingCounter,
			Help: "Total number of devices disconnected for missing too many keepalive pongs.",
		}),
		ForcedDisconnect: factory.NewCounter(prometheus.CounterOpts{
			Name: ForcedDisconnectCounter,
			Help: "Total number of operator-forced device disconnects.",
		}),
		ReconcileDrift: factory.NewGauge(prometheus.GaugeOpts{
			Name: ReconcileDriftGauge,
			Help: "Devices found out of sync with the database during the last reconciliation sweep.",
		}),
	}
}
