// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brewbridge/relay/device"
	"github.com/google/uuid"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

const (
	stateOpen int32 = iota
	stateClosed
)

// DefaultClientMessageQueueSize is the default capacity of a client's
// outbound message channel.
const DefaultClientMessageQueueSize = 100

// ConnectionMetrics tracks per-session traffic and keep-alive statistics,
// exposed to the client on demand via the get_metrics control type.
type ConnectionMetrics struct {
	MessagesSent     uint64        `json:"messagesSent"`
	MessagesReceived uint64        `json:"messagesReceived"`
	LastPingRTT      time.Duration `json:"lastPingRTTMillis"`
	AvgPingRTT       time.Duration `json:"avgPingRTTMillis"`
	PingCount        uint64        `json:"pingCount"`
	ReconnectCount   uint64        `json:"reconnectCount"`
}

// MarshalJSON writes the two RTT fields as whole milliseconds, matching
// their JSON names.
func (m ConnectionMetrics) MarshalJSON() ([]byte, error) {
	type plain ConnectionMetrics
	return json.Marshal(struct {
		plain
		LastPingRTT int64 `json:"lastPingRTTMillis"`
		AvgPingRTT  int64 `json:"avgPingRTTMillis"`
	}{plain(m), m.LastPingRTT.Milliseconds(), m.AvgPingRTT.Milliseconds()})
}

// ClientConnection is a single authenticated end-user session bound to one
// target device. Instances are mutated only by the Client Proxy that
// created them.
type ClientConnection struct {
	sessionID uuid.UUID
	userID    string
	deviceID  device.ID

	logger *zap.Logger
	conn   device.Connection

	connectedAt  time.Time
	lastActivity atomic.Value // time.Time
	missedPongs  int32
	pingStart    atomic.Value // time.Time

	accessTokenExpiresAt atomic.Value // time.Time

	tokenTimerMu sync.Mutex
	tokenTimer   *time.Timer

	state    int32
	shutdown chan struct{}
	outbound chan []byte

	metricsMu sync.Mutex
	metrics   ConnectionMetrics
}

type clientConnectionOptions struct {
	UserID      string
	DeviceID    device.ID
	TokenExpiry time.Time
	QueueSize   int
	ConnectedAt time.Time
	Logger      *zap.Logger
}

func newClientConnection(o clientConnectionOptions) *ClientConnection {
	if o.ConnectedAt.IsZero() {
		o.ConnectedAt = time.Now()
	}

	if o.Logger == nil {
		o.Logger = sallust.Default()
	}

	if o.QueueSize < 1 {
		o.QueueSize = DefaultClientMessageQueueSize
	}

	c := &ClientConnection{
		sessionID:   uuid.New(),
		userID:      o.UserID,
		deviceID:    o.DeviceID,
		logger:      o.Logger.With(zap.String("sessionId", "")),
		connectedAt: o.ConnectedAt,
		state:       stateOpen,
		shutdown:    make(chan struct{}),
		outbound:    make(chan []byte, o.QueueSize),
	}

	c.logger = o.Logger.With(zap.String("sessionId", c.sessionID.String()), zap.String("deviceId", string(o.DeviceID)))
	c.lastActivity.Store(o.ConnectedAt)
	c.accessTokenExpiresAt.Store(o.TokenExpiry)
	return c
}

func (c *ClientConnection) SessionID() uuid.UUID   { return c.sessionID }
func (c *ClientConnection) UserID() string         { return c.userID }
func (c *ClientConnection) DeviceID() device.ID    { return c.deviceID }
func (c *ClientConnection) ConnectedAt() time.Time { return c.connectedAt }

func (c *ClientConnection) LastActivity() time.Time {
	return c.lastActivity.Load().(time.Time)
}

func (c *ClientConnection) AccessTokenExpiresAt() time.Time {
	return c.accessTokenExpiresAt.Load().(time.Time)
}

func (c *ClientConnection) setAccessTokenExpiresAt(t time.Time) {
	c.accessTokenExpiresAt.Store(t)
}

func (c *ClientConnection) touch(t time.Time) {
	c.lastActivity.Store(t)
	atomic.StoreInt32(&c.missedPongs, 0)
}

func (c *ClientConnection) incrementMissedPongs() int32 {
	return atomic.AddInt32(&c.missedPongs, 1)
}

func (c *ClientConnection) MissedPongs() int32 {
	return atomic.LoadInt32(&c.missedPongs)
}

func (c *ClientConnection) markPingSent(t time.Time) {
	c.pingStart.Store(t)
}

func (c *ClientConnection) recordPong(now time.Time) {
	start, ok := c.pingStart.Load().(time.Time)
	if !ok || start.IsZero() {
		return
	}

	rtt := now.Sub(start)

	c.metricsMu.Lock()
	defer c.metricsMu.Unlock()

	c.metrics.LastPingRTT = rtt
	c.metrics.PingCount++
	if c.metrics.AvgPingRTT == 0 {
		c.metrics.AvgPingRTT = rtt
	} else {
		c.metrics.AvgPingRTT += (rtt - c.metrics.AvgPingRTT) / time.Duration(c.metrics.PingCount)
	}
}

func (c *ClientConnection) recordSent() {
	c.metricsMu.Lock()
	c.metrics.MessagesSent++
	c.metricsMu.Unlock()
}

func (c *ClientConnection) recordReceived() {
	c.metricsMu.Lock()
	c.metrics.MessagesReceived++
	c.metricsMu.Unlock()
}

// Metrics returns a snapshot of this session's traffic counters.
func (c *ClientConnection) Metrics() ConnectionMetrics {
	c.metricsMu.Lock()
	defer c.metricsMu.Unlock()
	return c.metrics
}

func (c *ClientConnection) Pending() int {
	return len(c.outbound)
}

func (c *ClientConnection) Closed() bool {
	return atomic.LoadInt32(&c.state) != stateOpen
}

// Send enqueues a raw frame for delivery to this client, non-blocking. A
// write attempted on a closed session enqueues nothing and returns
// ErrorSessionClosed; a full outbound queue returns ErrorSessionBusy.
// The proxy's deliver path ignores both errors, so such writes are
// silently skipped there.
func (c *ClientConnection) Send(data []byte) error {
	if c.Closed() {
		return ErrorSessionClosed
	}

	select {
	case c.outbound <- data:
		return nil
	default:
		return ErrorSessionBusy
	}
}

func (c *ClientConnection) requestClose() {
	if atomic.CompareAndSwapInt32(&c.state, stateOpen, stateClosed) {
		close(c.shutdown)
		c.cancelTokenTimer()
	}
}

func (c *ClientConnection) scheduleTokenTimer(d time.Duration, fire func()) {
	c.tokenTimerMu.Lock()
	defer c.tokenTimerMu.Unlock()

	if c.tokenTimer != nil {
		c.tokenTimer.Stop()
	}

	if d <= 0 {
		c.tokenTimer = nil
		return
	}

	c.tokenTimer = time.AfterFunc(d, fire)
}

func (c *ClientConnection) cancelTokenTimer() {
	c.tokenTimerMu.Lock()
	defer c.tokenTimerMu.Unlock()

	if c.tokenTimer != nil {
		c.tokenTimer.Stop()
		c.tokenTimer = nil
	}
}
