package device

import (
	"sync"

	"github.com/brewbridge/relay/relaymsg"
)

// MessageHandler is notified of every message published by a connected
// device, after deviceId/timestamp stamping.
type MessageHandler func(Interface, *relaymsg.Message)

// ConnectHandler is notified whenever a device successfully connects.
type ConnectHandler func(Interface)

// DisconnectHandler is notified whenever a device disconnects, regardless
// of cause.
type DisconnectHandler func(Interface)

// Listeners is a dynamic pub/sub registry for device lifecycle and message
// events. Unlike a static aggregate, handlers may be added and removed at
// any time -- the Client Proxy subscribes to Device Relay publications
// when it starts and unsubscribes on shutdown.
type Listeners struct {
	mutex  sync.RWMutex
	nextID uint64

	messageHandlers    map[uint64]MessageHandler
	connectHandlers    map[uint64]ConnectHandler
	disconnectHandlers map[uint64]DisconnectHandler
}

// NewListeners creates an empty Listeners registry.
func NewListeners() *Listeners {
	return &Listeners{
		messageHandlers:    make(map[uint64]MessageHandler),
		connectHandlers:    make(map[uint64]ConnectHandler),
		disconnectHandlers: make(map[uint64]DisconnectHandler),
	}
}

// OnMessage registers a handler for device message publications. The
// returned function removes the handler; it is safe to call more than
// once and from any goroutine.
func (l *Listeners) OnMessage(h MessageHandler) (unsubscribe func()) {
	l.mutex.Lock()
	id := l.nextID
	l.nextID++
	l.messageHandlers[id] = h
	l.mutex.Unlock()

	return func() {
		l.mutex.Lock()
		delete(l.messageHandlers, id)
		l.mutex.Unlock()
	}
}

// OnConnect registers a handler for device connect events.
func (l *Listeners) OnConnect(h ConnectHandler) (unsubscribe func()) {
	l.mutex.Lock()
	id := l.nextID
	l.nextID++
	l.connectHandlers[id] = h
	l.mutex.Unlock()

	return func() {
		l.mutex.Lock()
		delete(l.connectHandlers, id)
		l.mutex.Unlock()
	}
}

// OnDisconnect registers a handler for device disconnect events.
func (l *Listeners) OnDisconnect(h DisconnectHandler) (unsubscribe func()) {
	l.mutex.Lock()
	id := l.nextID
	l.nextID++
	l.disconnectHandlers[id] = h
	l.mutex.Unlock()

	return func() {
		l.mutex.Lock()
		delete(l.disconnectHandlers, id)
		l.mutex.Unlock()
	}
}

func (l *Listeners) notifyMessage(d Interface, m *relaymsg.Message) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for _, h := range l.messageHandlers {
		h(d, m)
	}
}

func (l *Listeners) notifyConnect(d Interface) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for _, h := range l.connectHandlers {
		h(d)
	}
}

func (l *Listeners) notifyDisconnect(d Interface) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for _, h := range l.disconnectHandlers {
		h(d)
	}
}
