// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brewbridge/relay/device"
	"github.com/brewbridge/relay/relaymsg"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// DefaultClientPingPeriod is how often the proxy pings every open client.
const DefaultClientPingPeriod = 30 * time.Second

// DefaultMissedPongThreshold is the number of consecutive keep-alive
// sweeps without a pong that a client may miss; the sweep that takes the
// count above it forces a disconnect.
const DefaultMissedPongThreshold = 2

// DefaultTokenExpiryWarning is how long before token expiry the one-shot
// warning frame is sent.
const DefaultTokenExpiryWarning = 5 * time.Minute

// ProxyStats is a point-in-time snapshot of Client Proxy activity.
type ProxyStats struct {
	ConnectedClients    int
	TotalConnections    uint64
	TotalMessages       uint64
	UptimeMs            int64
	QueuedMessagesTotal int
	ClientsByDevice     map[string]int
}

// ProxyOptions configures a Proxy.
type ProxyOptions struct {
	SessionStore      SessionStore
	Relay             device.Relay
	Logger            *zap.Logger
	Registerer        prometheus.Registerer
	ConnectionFactory device.ConnectionFactory

	PingPeriod          time.Duration
	MissedPongThreshold int32
	QueueSweepPeriod    time.Duration
	QueueTTL            time.Duration
	QueueCapacity       int
	TokenExpiryWarning  time.Duration
	QueueSize           int
}

// Proxy is the Client Proxy: it owns client sessions, binds each to a
// device, fans device publications out to bound clients, and forwards
// client traffic back to devices via the Device Relay.
type Proxy struct {
	logger            *zap.Logger
	sessionStore      SessionStore
	relay             device.Relay
	connectionFactory device.ConnectionFactory

	sessions *sessionRegistry
	cache    *stateCache
	queues   *pendingQueues
	measures *Measures

	pingPeriod          time.Duration
	missedPongThreshold int32
	queueSweepPeriod    time.Duration
	tokenExpiryWarning  time.Duration
	queueSize           int

	startedAt        time.Time
	totalConnections uint64
	totalMessages    uint64

	unsubscribeDeviceMessages func()

	shutdown chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewProxy constructs a Proxy from the given options, filling in defaults
// for anything left zero.
func NewProxy(o ProxyOptions) *Proxy {
	if o.Logger == nil {
		o.Logger = sallust.Default()
	}

	if o.Registerer == nil {
		o.Registerer = prometheus.NewRegistry()
	}

	if o.ConnectionFactory == nil {
		o.ConnectionFactory = device.NewConnectionFactory(device.ConnectionFactoryOptions{
			HandshakeTimeout: 10 * time.Second,
			IdlePeriod:       2 * DefaultClientPingPeriod,
			WriteTimeout:     5 * time.Second,
		})
	}

	if o.PingPeriod <= 0 {
		o.PingPeriod = DefaultClientPingPeriod
	}

	if o.MissedPongThreshold <= 0 {
		o.MissedPongThreshold = DefaultMissedPongThreshold
	}

	if o.QueueSweepPeriod <= 0 {
		o.QueueSweepPeriod = DefaultQueueTTL
	}

	if o.TokenExpiryWarning <= 0 {
		o.TokenExpiryWarning = DefaultTokenExpiryWarning
	}

	if o.QueueSize <= 0 {
		o.QueueSize = DefaultClientMessageQueueSize
	}

	return &Proxy{
		logger:              o.Logger,
		sessionStore:        o.SessionStore,
		relay:               o.Relay,
		connectionFactory:   o.ConnectionFactory,
		sessions:            newSessionRegistry(),
		cache:               newStateCache(),
		queues:              newPendingQueues(o.QueueCapacity, o.QueueTTL),
		measures:            NewMeasures(o.Registerer),
		pingPeriod:          o.PingPeriod,
		missedPongThreshold: o.MissedPongThreshold,
		queueSweepPeriod:    o.QueueSweepPeriod,
		tokenExpiryWarning:  o.TokenExpiryWarning,
		queueSize:           o.QueueSize,
		startedAt:           time.Now(),
		shutdown:            make(chan struct{}),
	}
}

// Start subscribes to device publications and launches the keep-alive and
// queue-sweep loops. It must be called once before any client connects.
func (p *Proxy) Start() {
	p.unsubscribeDeviceMessages = p.relay.OnDeviceMessage(p.handleDeviceMessage)

	p.wg.Add(2)
	go p.keepAliveLoop()
	go p.queueSweepLoop()
}

// Connect upgrades request to a WebSocket, authenticates the client, binds
// it to the requested device, and begins the read/write pumps.
func (p *Proxy) Connect(w http.ResponseWriter, r *http.Request, token, rawDeviceID string) (*ClientConnection, error) {
	conn, err := p.connectionFactory.NewConnection(w, r, nil)
	if err != nil {
		return nil, err
	}

	if token == "" || rawDeviceID == "" {
		conn.SendClose(CloseBadRequest, "bad request")
		conn.Close()
		return nil, ErrorMissingToken
	}

	deviceID, parseErr := device.ParseID(rawDeviceID)
	if parseErr != nil {
		conn.SendClose(CloseBadRequest, "bad request")
		conn.Close()
		return nil, ErrorMissingDevice
	}

	ctx := r.Context()
	session, verifyErr := p.sessionStore.VerifyAccessToken(ctx, token)
	if verifyErr != nil || session == nil {
		if verifyErr != nil {
			p.logger.Error("session store verify failed", zap.Error(verifyErr))
		}

		conn.SendClose(CloseBadToken, "bad token")
		conn.Close()
		return nil, ErrorInvalidToken
	}

	owns, ownsErr := p.sessionStore.UserOwnsDevice(ctx, session.UserID, deviceID)
	if ownsErr != nil {
		p.logger.Error("ownership check failed", zap.String("userId", session.UserID), zap.Error(ownsErr))
	}

	if ownsErr != nil || !owns {
		conn.SendClose(CloseOwnership, "forbidden")
		conn.Close()
		return nil, ErrorForbidden
	}

	c := newClientConnection(clientConnectionOptions{
		UserID:      session.UserID,
		DeviceID:    deviceID,
		TokenExpiry: session.AccessTokenExpiresAt,
		QueueSize:   p.queueSize,
		Logger:      p.logger,
	})
	c.conn = conn

	conn.SetPongCallback(func(string) {
		now := time.Now()
		c.touch(now)
		c.recordPong(now)
	})

	p.sessions.add(c)
	atomic.AddUint64(&p.totalConnections, 1)
	p.measures.Connects.Inc()
	p.measures.ClientCount.Set(float64(p.sessions.len()))

	now := time.Now()
	p.sendConnected(c, now)
	p.hydrate(c, now)
	p.scheduleTokenExpiry(c)

	closeOnce := new(sync.Once)
	go p.readPump(c, closeOnce)
	go p.writePump(c, closeOnce)

	return c, nil
}

func (p *Proxy) sendConnected(c *ClientConnection, now time.Time) {
	online := p.relay.IsDeviceConnected(c.deviceID)
	lastSeen, _ := p.relay.GetDeviceLastSeen(c.deviceID)

	msg := relaymsg.NewMessage("connected")
	msg.Set("sessionId", c.sessionID.String())
	msg.SetDeviceID(string(c.deviceID))
	msg.Set("deviceOnline", online)
	msg.Set("deviceLastSeen", lastSeen.UnixMilli())
	msg.Set("tokenExpiresAt", c.AccessTokenExpiresAt().UnixMilli())
	msg.Set("serverTime", now.UnixMilli())
	msg.SetTimestamp(now)

	p.deliver(c, msg)
}

// hydrate implements the accept path's cache-priming step: replay any
// cached telemetry immediately, and prompt the device for a fresh dump
// when the cache is empty or older than 10 seconds.
func (p *Proxy) hydrate(c *ClientConnection, now time.Time) {
	online := p.relay.IsDeviceConnected(c.deviceID)
	if !online {
		return
	}

	entry, ok := p.cache.Get(c.deviceID)
	if !ok || entry.Empty() {
		p.requestState(c.deviceID)
		return
	}

	for _, msg := range []*relaymsg.Message{entry.Status, entry.DeviceInfo, entry.ESPStatus, entry.PicoStatus} {
		if msg != nil {
			p.deliver(c, msg)
		}
	}

	if now.Sub(entry.LastUpdated) > 10*time.Second {
		p.requestState(c.deviceID)
	}
}

func (p *Proxy) requestState(id device.ID) {
	msg := relaymsg.NewMessage(relaymsg.TypeRequestState)
	msg.SetTimestamp(time.Now())
	p.relay.SendToDevice(id, msg)
}

// deliver serializes msg once and writes it to c, skipping silently if
// the session is already closed.
func (p *Proxy) deliver(c *ClientConnection, msg *relaymsg.Message) {
	data, err := relaymsg.EncodeJSON(msg)
	if err != nil {
		p.logger.Error("failed to encode client message", zap.Error(err))
		return
	}

	if err := c.Send(data); err == nil {
		c.recordSent()
	}
}

func (p *Proxy) scheduleTokenExpiry(c *ClientConnection) {
	d := time.Until(c.AccessTokenExpiresAt()) - p.tokenExpiryWarning
	c.scheduleTokenTimer(d, func() {
		if c.Closed() {
			return
		}

		expiresAt := c.AccessTokenExpiresAt()
		msg := relaymsg.NewMessage(relaymsg.TypeTokenExpiring)
		msg.Set("expiresAt", expiresAt.UnixMilli())
		msg.Set("expiresIn", int64(time.Until(expiresAt).Seconds()))
		msg.Set("refreshRequired", true)
		msg.SetTimestamp(time.Now())
		p.deliver(c, msg)
	})
}

// handleDeviceMessage is the Device Relay subscription handler: it
// updates the state cache, fans the message out to every client bound to
// the originating device, and handles the device_online/device_offline
// lifecycle specially.
func (p *Proxy) handleDeviceMessage(d device.Interface, msg *relaymsg.Message) {
	now := time.Now()
	id := d.ID()

	switch msg.Type() {
	case relaymsg.TypeStatus, relaymsg.TypeDeviceInfo, relaymsg.TypeESPStatus, relaymsg.TypePicoStatus, relaymsg.TypeStatusDelta:
		p.cache.Update(id, msg, now)
	case relaymsg.TypeDeviceOffline:
		p.cache.Clear(id)
	}

	atomic.AddUint64(&p.totalMessages, 1)

	p.sessions.visitDevice(id, func(c *ClientConnection) {
		p.deliver(c, msg)
	})

	if msg.Type() == relaymsg.TypeDeviceOnline {
		p.flushQueue(id, now)
	}
}

// flushQueue is single-shot: every surviving entry is attempted exactly
// once per call, regardless of individual outcome.
func (p *Proxy) flushQueue(id device.ID, now time.Time) {
	entries := p.queues.drain(id, now)

	for _, pending := range entries {
		if p.relay.SendToDevice(id, pending.Message) {
			p.notifyQueuedSent(id, pending)
			continue
		}

		pending.Retries++
		if pending.Retries < MaxPendingRetries {
			p.queues.enqueue(id, pending)
		} else {
			p.measures.QueueDropped.Inc()
		}
	}

	p.measures.QueueDepth.Set(float64(p.queues.totalDepth()))
}

func (p *Proxy) notifyQueuedSent(id device.ID, pending *PendingMessage) {
	c, ok := p.sessions.get(pending.OriginatingSessionID)
	if !ok || c.Closed() {
		return
	}

	originalTimestamp, _ := pending.Message.Timestamp()

	reply := relaymsg.NewMessage(relaymsg.TypeQueuedMessageSent)
	reply.Set("originalTimestamp", originalTimestamp)
	reply.Set("messageType", pending.Message.Type())
	reply.SetTimestamp(time.Now())
	p.deliver(c, reply)
	_ = id
}

// readPump decodes JSON frames from c's connection in a loop until an
// error occurs.
func (p *Proxy) readPump(c *ClientConnection, closeOnce *sync.Once) {
	defer closeOnce.Do(func() { p.closeSession(c, "read closed") })

	for {
		messageType, data, err := c.conn.ReadFrame()
		if err != nil {
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		now := time.Now()
		c.touch(now)

		msg, decodeErr := relaymsg.DecodeJSONFrame(data)
		if decodeErr != nil {
			p.logger.Warn("dropping unparseable client frame", zap.String("sessionId", c.sessionID.String()), zap.Error(decodeErr))
			continue
		}

		c.recordReceived()
		p.handleClientFrame(c, msg, now)
	}
}

func (p *Proxy) handleClientFrame(c *ClientConnection, msg *relaymsg.Message, now time.Time) {
	switch msg.Type() {
	case relaymsg.TypeRefreshAuth:
		p.handleRefreshAuth(c, msg)
	case relaymsg.TypePing:
		p.handlePing(c, msg, now)
	case relaymsg.TypeGetMetrics:
		p.handleGetMetrics(c)
	default:
		p.forwardToDevice(c, msg, now)
	}
}

func (p *Proxy) handleRefreshAuth(c *ClientConnection, msg *relaymsg.Message) {
	token, _ := msg.Get("token")
	tokenStr, _ := token.(string)

	reply := relaymsg.NewMessage(relaymsg.TypeAuthRefreshed)
	reply.SetTimestamp(time.Now())

	session, err := p.sessionStore.VerifyAccessToken(context.Background(), tokenStr)
	if err != nil || session == nil || session.UserID != c.userID {
		reply.Set("success", false)
		reply.Set("reason", "invalid token")
		p.deliver(c, reply)
		return
	}

	c.setAccessTokenExpiresAt(session.AccessTokenExpiresAt)
	p.scheduleTokenExpiry(c)

	reply.Set("success", true)
	reply.Set("tokenExpiresAt", session.AccessTokenExpiresAt.UnixMilli())
	p.deliver(c, reply)
}

func (p *Proxy) handlePing(c *ClientConnection, msg *relaymsg.Message, now time.Time) {
	reply := relaymsg.NewMessage(relaymsg.TypePong)
	reply.SetTimestamp(now)

	if ts, ok := msg.Timestamp(); ok {
		reply.Set("clientTimestamp", ts)
	}

	p.deliver(c, reply)
}

func (p *Proxy) handleGetMetrics(c *ClientConnection) {
	reply := relaymsg.NewMessage(relaymsg.TypeMetrics)
	reply.Set("connection", c.Metrics())
	reply.Set("deviceOnline", p.relay.IsDeviceConnected(c.deviceID))
	reply.Set("queuedMessages", p.queues.depth(c.deviceID))
	reply.SetTimestamp(time.Now())
	p.deliver(c, reply)
}

func (p *Proxy) forwardToDevice(c *ClientConnection, msg *relaymsg.Message, now time.Time) {
	msg.StampTimestampIfAbsent(now)

	if p.relay.SendToDevice(c.deviceID, msg) {
		c.recordSent()
		return
	}

	p.queues.enqueue(c.deviceID, &PendingMessage{
		Message:              msg,
		EnqueuedAt:           now,
		OriginatingSessionID: c.sessionID,
	})
	p.measures.QueueDepth.Set(float64(p.queues.totalDepth()))

	lastSeen, _ := p.relay.GetDeviceLastSeen(c.deviceID)

	status := relaymsg.NewMessage(relaymsg.TypeDeviceStatus)
	status.Set("online", false)
	status.Set("lastSeen", lastSeen.UnixMilli())
	status.Set("messageQueued", true)
	status.Set("queuedMessages", p.queues.depth(c.deviceID))
	status.Set("queueTTL", 10)
	status.SetTimestamp(now)
	p.deliver(c, status)
}

// writePump services c's outbound queue until shutdown or a write error.
func (p *Proxy) writePump(c *ClientConnection, closeOnce *sync.Once) {
	defer closeOnce.Do(func() { p.closeSession(c, "write closed") })

	for {
		select {
		case <-c.shutdown:
			c.conn.Close()
			return
		case data := <-c.outbound:
			if err := c.conn.WriteFrame(websocket.TextMessage, data); err != nil {
				p.logger.Error("client write failed", zap.String("sessionId", c.sessionID.String()), zap.Error(err))
				return
			}
		}
	}
}

func (p *Proxy) closeSession(c *ClientConnection, reason string) {
	p.sessions.remove(c)
	c.requestClose()
	c.conn.Close()

	p.measures.Disconnects.WithLabelValues(reason).Inc()
	p.measures.ClientCount.Set(float64(p.sessions.len()))
}

func (p *Proxy) keepAliveLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-p.shutdown:
			return
		case <-ticker.C:
			now := time.Now()
			p.sessions.visitAll(func(c *ClientConnection) {
				if c.incrementMissedPongs() > p.missedPongThreshold {
					c.conn.SendClose(websocket.CloseNormalClosure, "missed-pong-timeout")
					c.conn.Close()
					return
				}

				c.markPingSent(now)
				if err := c.conn.Ping([]byte(c.sessionID.String())); err != nil {
					p.logger.Warn("client ping failed", zap.String("sessionId", c.sessionID.String()), zap.Error(err))
				}
			})
		}
	}
}

func (p *Proxy) queueSweepLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.queueSweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-p.shutdown:
			return
		case <-ticker.C:
			purged := p.queues.sweep(time.Now())
			if purged > 0 {
				p.measures.QueueDropped.Add(float64(purged))
			}

			p.measures.QueueDepth.Set(float64(p.queues.totalDepth()))
		}
	}
}

// GetConnectedClientCount returns the current session registry size.
func (p *Proxy) GetConnectedClientCount() int {
	return p.sessions.len()
}

// GetStats returns a snapshot of Client Proxy activity.
func (p *Proxy) GetStats() ProxyStats {
	return ProxyStats{
		ConnectedClients:    p.sessions.len(),
		TotalConnections:    atomic.LoadUint64(&p.totalConnections),
		TotalMessages:       atomic.LoadUint64(&p.totalMessages),
		UptimeMs:            time.Since(p.startedAt).Milliseconds(),
		QueuedMessagesTotal: p.queues.totalDepth(),
		ClientsByDevice:     p.sessions.countsByDevice(),
	}
}

// Shutdown stops the keep-alive and queue-sweep sweeps and unsubscribes
// from device publications. Open sockets are left to close on process
// teardown.
func (p *Proxy) Shutdown() {
	p.stopOnce.Do(func() {
		close(p.shutdown)
		if p.unsubscribeDeviceMessages != nil {
			p.unsubscribeDeviceMessages()
		}
	})

	p.wg.Wait()
}
