// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brewbridge/relay/relaymsg"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// DefaultPingPeriod is how often the relay pings every registered device.
const DefaultPingPeriod = 10 * time.Second

// DefaultMissedPingThreshold is the number of consecutive keep-alive
// sweeps without liveness evidence that a device may miss; the sweep that
// takes the count above it forces a disconnect.
const DefaultMissedPingThreshold = 2

// DefaultReconcilePeriod is how often the relay asks the Credential Store
// to reconcile its online flags against the live registry.
const DefaultReconcilePeriod = 60 * time.Second

// RelayStats is a point-in-time snapshot of Device Relay activity.
type RelayStats struct {
	DeviceCount          int
	TotalConnects        uint64
	TotalDisconnects     uint64
	TotalMessagesRelayed uint64
	RequestResponseCount uint64
}

// Relay is the set of operations the Device Relay exposes to the rest of
// the system -- chiefly the Client Proxy and the HTTP Router.
type Relay interface {
	// SendToDevice encodes message as JSON and dispatches it to the
	// device non-blocking. It returns false if the device is not
	// registered or its socket is not open; the caller is responsible for
	// queuing in that case.
	SendToDevice(id ID, message *relaymsg.Message) bool

	// IsDeviceConnected reports whether id currently has a registered
	// connection.
	IsDeviceConnected(id ID) bool

	// GetDeviceLastSeen returns the last time any frame was read from id.
	GetDeviceLastSeen(id ID) (time.Time, bool)

	// GetConnectedDeviceCount returns the current registry size.
	GetConnectedDeviceCount() int

	// GetConnectedDevices returns the ids of every registered device.
	GetConnectedDevices() []ID

	// DisconnectDevice forcibly closes id's connection with CloseForceDisconnect,
	// returning whether a device was connected.
	DisconnectDevice(id ID) bool

	// OnDeviceMessage subscribes to every message published by any
	// device, including the synthetic device_online/device_offline
	// lifecycle events. The returned function removes the subscription.
	OnDeviceMessage(h MessageHandler) (unsubscribe func())

	// GetStats returns a snapshot of relay activity counters.
	GetStats() RelayStats

	// Shutdown stops the keep-alive and reconciliation sweeps. Open
	// sockets are left to close on process teardown.
	Shutdown()
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	CredentialStore   CredentialStore
	Logger            *zap.Logger
	Registerer        prometheus.Registerer
	ConnectionFactory ConnectionFactory

	PingPeriod          time.Duration
	MissedPingThreshold int32
	ReconcilePeriod     time.Duration
	QueueSize           int
}

// Manager is the Relay implementation: it owns the device registry, the
// pub/sub of device messages, and the keep-alive/reconciliation sweeps.
type Manager struct {
	logger            *zap.Logger
	credentialStore   CredentialStore
	connectionFactory ConnectionFactory

	devices   *registry
	listeners *Listeners
	measures  *Measures

	pingPeriod          time.Duration
	missedPingThreshold int32
	reconcilePeriod     time.Duration
	queueSize           int

	totalConnects        uint64
	totalDisconnects     uint64
	totalMessagesRelayed uint64
	requestResponseCount uint64

	shutdown chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager constructs a Manager from the given options, filling in
// defaults for anything left zero.
func NewManager(o ManagerOptions) *Manager {
	if o.Logger == nil {
		o.Logger = sallust.Default()
	}

	if o.Registerer == nil {
		o.Registerer = prometheus.NewRegistry()
	}

	if o.ConnectionFactory == nil {
		o.ConnectionFactory = NewConnectionFactory(ConnectionFactoryOptions{
			HandshakeTimeout: 10 * time.Second,
			IdlePeriod:       2 * DefaultPingPeriod,
			WriteTimeout:     5 * time.Second,
		})
	}

	if o.PingPeriod <= 0 {
		o.PingPeriod = DefaultPingPeriod
	}

	if o.MissedPingThreshold <= 0 {
		o.MissedPingThreshold = DefaultMissedPingThreshold
	}

	if o.ReconcilePeriod <= 0 {
		o.ReconcilePeriod = DefaultReconcilePeriod
	}

	if o.QueueSize <= 0 {
		o.QueueSize = DefaultDeviceMessageQueueSize
	}

	return &Manager{
		logger:              o.Logger,
		credentialStore:     o.CredentialStore,
		connectionFactory:   o.ConnectionFactory,
		devices:             newRegistry(64),
		listeners:           NewListeners(),
		measures:            NewMeasures(o.Registerer),
		pingPeriod:          o.PingPeriod,
		missedPingThreshold: o.MissedPingThreshold,
		reconcilePeriod:     o.ReconcilePeriod,
		queueSize:           o.QueueSize,
		shutdown:            make(chan struct{}),
	}
}

// Start launches the keep-alive and reconciliation sweeps. It must be
// called once before any device connects.
func (m *Manager) Start() {
	m.wg.Add(2)
	go m.keepAliveLoop()
	go m.reconcileLoop()
}

// Connect upgrades request to a WebSocket, authenticates the device, and
// begins the read/write pumps. rawID and rawKey are the "id" and "key"
// query parameters, already extracted by the caller.
func (m *Manager) Connect(w http.ResponseWriter, r *http.Request, rawID, rawKey string) (Interface, error) {
	conn, err := m.connectionFactory.NewConnection(w, r, nil)
	if err != nil {
		return nil, err
	}

	id, parseErr := ParseID(rawID)
	if rawID == "" || rawKey == "" || parseErr != nil {
		conn.SendClose(CloseAuthFailed, "bad request")
		conn.Close()
		return nil, ErrorInvalidID
	}

	if len(rawKey) < 32 || len(rawKey) > 64 {
		conn.SendClose(CloseForbidden, "forbidden")
		conn.Close()
		return nil, ErrorInvalidKey
	}

	ctx := r.Context()
	if ok, verifyErr := m.credentialStore.VerifyDeviceKey(ctx, id, rawKey); verifyErr != nil || !ok {
		if verifyErr != nil {
			m.logger.Error("credential store verify failed", zap.String("deviceId", string(id)), zap.Error(verifyErr))
		}

		conn.SendClose(CloseForbidden, "forbidden")
		conn.Close()
		return nil, ErrorAuthFailed
	}

	d := newDevice(deviceOptions{ID: id, QueueSize: m.queueSize, Logger: m.logger})
	d.conn = conn
	conn.SetPongCallback(func(string) { d.touch(time.Now()) })

	if displaced := m.devices.add(d); displaced != nil {
		displaced.requestClose(CloseReason{Code: CloseReplaced, Text: "replaced by new connection"})
		displaced.conn.SendClose(CloseReplaced, "replaced by new connection")
		displaced.conn.Close()
	}

	if err := m.credentialStore.UpdateDeviceStatus(ctx, id, true); err != nil {
		m.logger.Error("failed to mark device online", zap.String("deviceId", string(id)), zap.Error(err))
	}

	now := time.Now()
	m.sendControl(d, relaymsg.TypeConnected, now)
	m.sendControl(d, relaymsg.TypeRequestState, now)

	m.listeners.notifyConnect(d)
	m.publishLifecycleEvent(d, relaymsg.TypeDeviceOnline, now)

	atomic.AddUint64(&m.totalConnects, 1)
	m.measures.Connects.Inc()
	m.measures.DeviceCount.Set(float64(m.devices.len()))

	closeOnce := new(sync.Once)
	go m.readPump(d, closeOnce)
	go m.writePump(d, closeOnce)

	return d, nil
}

func (m *Manager) sendControl(d *device, messageType string, now time.Time) {
	msg := relaymsg.NewMessage(messageType)
	msg.SetTimestamp(now)

	data, err := relaymsg.EncodeJSON(msg)
	if err != nil {
		m.logger.Error("failed to encode control message", zap.String("type", messageType), zap.Error(err))
		return
	}

	if err := d.Send(data); err != nil {
		m.logger.Warn("failed to enqueue control message", zap.String("type", messageType), zap.Error(err))
	}
}

func (m *Manager) publishLifecycleEvent(d *device, messageType string, now time.Time) {
	msg := relaymsg.NewMessage(messageType)
	msg.SetDeviceID(string(d.id))
	msg.SetTimestamp(now)
	m.listeners.notifyMessage(d, msg)
}

// readPump decodes frames from d's connection in a loop until an error
// occurs, publishing every decoded message.
func (m *Manager) readPump(d *device, closeOnce *sync.Once) {
	defer closeOnce.Do(func() { m.closeDevice(d, CloseReason{Text: "read closed"}) })

	for {
		messageType, data, err := d.conn.ReadFrame()
		if err != nil {
			return
		}

		d.touch(time.Now())

		var (
			messages  []*relaymsg.Message
			decodeErr error
		)

		switch messageType {
		case websocket.BinaryMessage:
			messages, decodeErr = relaymsg.DecodeMsgpackFrame(data)
		case websocket.TextMessage:
			var single *relaymsg.Message
			single, decodeErr = relaymsg.DecodeJSONFrame(data)
			if decodeErr == nil {
				messages = []*relaymsg.Message{single}
			}
		default:
			continue
		}

		if decodeErr != nil {
			m.logger.Warn("dropping unparseable device frame", zap.String("deviceId", string(d.id)), zap.Error(decodeErr))
			continue
		}

		now := time.Now()
		for _, msg := range messages {
			msg.SetDeviceID(string(d.id))
			msg.StampTimestampIfAbsent(now)

			atomic.AddUint64(&m.totalMessagesRelayed, 1)
			if isResponseType(msg.Type()) {
				atomic.AddUint64(&m.requestResponseCount, 1)
			}

			m.listeners.notifyMessage(d, msg)
		}
	}
}

func isResponseType(messageType string) bool {
	return messageType == relaymsg.TypeError || strings.HasSuffix(messageType, "_response")
}

// writePump services d's outbound queue until shutdown or a write error.
func (m *Manager) writePump(d *device, closeOnce *sync.Once) {
	defer closeOnce.Do(func() { m.closeDevice(d, CloseReason{Text: "write closed"}) })

	for {
		select {
		case <-d.shutdown:
			d.conn.Close()
			return
		case data := <-d.outbound:
			if err := d.conn.WriteFrame(websocket.TextMessage, data); err != nil {
				m.logger.Error("device write failed", zap.String("deviceId", string(d.id)), zap.Error(err))
				return
			}
		}
	}
}

// closeDevice removes d from the registry (if it is still the registered
// occupant for its id) and notifies subscribers. Invoked exactly once per
// connection via the read/write pumps' shared sync.Once.
func (m *Manager) closeDevice(d *device, reason CloseReason) {
	removed := m.devices.remove(d)
	d.requestClose(reason)
	d.conn.Close()

	if !removed {
		// this connection already lost its registry slot to a replacement;
		// the replacement owns the lifecycle events from here.
		return
	}

	atomic.AddUint64(&m.totalDisconnects, 1)
	m.measures.Disconnects.WithLabelValues(reason.Text).Inc()
	m.measures.DeviceCount.Set(float64(m.devices.len()))

	ctx := context.Background()
	if err := m.credentialStore.UpdateDeviceStatus(ctx, d.id, false); err != nil {
		m.logger.Error("failed to mark device offline", zap.String("deviceId", string(d.id)), zap.Error(err))
	}

	m.listeners.notifyDisconnect(d)
	m.publishLifecycleEvent(d, relaymsg.TypeDeviceOffline, time.Now())
}

func (m *Manager) keepAliveLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-m.shutdown:
			return
		case <-ticker.C:
			m.devices.visitAll(func(d *device) {
				if d.incrementMissedPings() > m.missedPingThreshold {
					m.measures.MissedPings.Inc()
					d.conn.SendClose(websocket.CloseNormalClosure, "missed-ping-timeout")
					d.conn.Close()
					return
				}

				if err := d.conn.Ping([]byte(d.id)); err != nil {
					m.logger.Warn("device ping failed", zap.String("deviceId", string(d.id)), zap.Error(err))
				}
			})
		}
	}
}

func (m *Manager) reconcileLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.reconcilePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-m.shutdown:
			return
		case <-ticker.C:
			ids := m.GetConnectedDevices()
			staleCount, err := m.credentialStore.SyncOnlineDevicesWithConnections(context.Background(), ids)
			if err != nil {
				m.logger.Error("reconciliation sweep failed", zap.Error(err))
				continue
			}

			m.measures.ReconcileDrift.Set(float64(staleCount))
		}
	}
}

func (m *Manager) SendToDevice(id ID, message *relaymsg.Message) bool {
	d, ok := m.devices.get(id)
	if !ok || d.Closed() {
		return false
	}

	data, err := relaymsg.EncodeJSON(message)
	if err != nil {
		m.logger.Error("failed to encode outbound message", zap.String("deviceId", string(id)), zap.Error(err))
		return false
	}

	return d.Send(data) == nil
}

func (m *Manager) IsDeviceConnected(id ID) bool {
	d, ok := m.devices.get(id)
	return ok && !d.Closed()
}

func (m *Manager) GetDeviceLastSeen(id ID) (time.Time, bool) {
	d, ok := m.devices.get(id)
	if !ok {
		return time.Time{}, false
	}

	return d.LastSeen(), true
}

func (m *Manager) GetConnectedDeviceCount() int {
	return m.devices.len()
}

func (m *Manager) GetConnectedDevices() []ID {
	ids := make([]ID, 0, m.devices.len())
	m.devices.visitAll(func(d *device) { ids = append(ids, d.id) })
	return ids
}

func (m *Manager) DisconnectDevice(id ID) bool {
	d, ok := m.devices.get(id)
	if !ok {
		return false
	}

	m.measures.ForcedDisconnect.Inc()
	d.conn.SendClose(CloseForceDisconnect, "disconnected by admin")
	d.conn.Close()
	return true
}

func (m *Manager) OnDeviceMessage(h MessageHandler) (unsubscribe func()) {
	return m.listeners.OnMessage(h)
}

func (m *Manager) GetStats() RelayStats {
	return RelayStats{
		DeviceCount:          m.devices.len(),
		TotalConnects:        atomic.LoadUint64(&m.totalConnects),
		TotalDisconnects:     atomic.LoadUint64(&m.totalDisconnects),
		TotalMessagesRelayed: atomic.LoadUint64(&m.totalMessagesRelayed),
		RequestResponseCount: atomic.LoadUint64(&m.requestResponseCount),
	}
}

func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() { close(m.shutdown) })
	m.wg.Wait()
}

var _ Relay = (*Manager)(nil)
