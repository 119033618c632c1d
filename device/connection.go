package device

import (
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Connection represents a websocket connection to a device. Connection
// implementations abstract the idle and deadline policy around the raw
// socket; message decoding is the caller's responsibility, since a single
// frame may carry more than one message.
type Connection interface {
	io.Closer

	// ReadFrame returns the next frame's websocket message type and raw
	// bytes. If this method returns an error, the connection should be
	// abandoned and closed. Not safe for concurrent invocation, and must
	// not be invoked concurrently with WriteFrame.
	ReadFrame() (messageType int, data []byte, err error)

	// WriteFrame sends a single frame to the device. Not safe for
	// concurrent invocation, and must not be invoked concurrently with
	// ReadFrame.
	WriteFrame(messageType int, data []byte) error

	// Ping sends a ping control frame. May be invoked concurrently with
	// any other method, including itself.
	Ping([]byte) error

	// SetPongCallback registers a function invoked whenever a pong is
	// received. A nil callback reverts to the internal default handler,
	// which only refreshes the read deadline.
	SetPongCallback(func(string))

	// SendClose transmits a close frame with the given code and text.
	// After this is invoked, the only method that should be invoked is
	// Close.
	SendClose(code int, text string) error
}

// connection is the internal Connection implementation.
type connection struct {
	webSocket    *websocket.Conn
	idlePeriod   time.Duration
	writeTimeout time.Duration
}

func (c *connection) updateReadDeadline() error {
	return c.webSocket.SetReadDeadline(time.Now().Add(c.idlePeriod))
}

func (c *connection) nextWriteDeadline() time.Time {
	var deadline time.Time
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}

	return deadline
}

func (c *connection) updateWriteDeadline() error {
	if c.writeTimeout > 0 {
		return c.webSocket.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}

	return nil
}

func (c *connection) defaultPongHandler(data string) error {
	return c.updateReadDeadline()
}

func (c *connection) pongHandler(callback func(string)) func(string) error {
	return func(data string) error {
		err := c.updateReadDeadline()
		callback(data)
		return err
	}
}

func (c *connection) SetPongCallback(callback func(string)) {
	if callback != nil {
		c.webSocket.SetPongHandler(c.pongHandler(callback))
	} else {
		c.webSocket.SetPongHandler(c.defaultPongHandler)
	}
}

func (c *connection) ReadFrame() (int, []byte, error) {
	if err := c.updateReadDeadline(); err != nil {
		return 0, nil, err
	}

	return c.webSocket.ReadMessage()
}

func (c *connection) WriteFrame(messageType int, data []byte) error {
	if err := c.updateWriteDeadline(); err != nil {
		return err
	}

	return c.webSocket.WriteMessage(messageType, data)
}

func (c *connection) Close() error {
	return c.webSocket.Close()
}

func (c *connection) SendClose(code int, text string) error {
	return c.webSocket.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		c.nextWriteDeadline(),
	)
}

func (c *connection) Ping(data []byte) error {
	return c.webSocket.WriteControl(websocket.PingMessage, data, c.nextWriteDeadline())
}

// ConnectionFactory provides the instantiation logic for Connections.
type ConnectionFactory interface {
	NewConnection(http.ResponseWriter, *http.Request, http.Header) (Connection, error)
}

// ConnectionFactoryOptions configures a ConnectionFactory.
type ConnectionFactoryOptions struct {
	HandshakeTimeout time.Duration
	ReadBufferSize   int
	WriteBufferSize  int
	Subprotocols     []string
	IdlePeriod       time.Duration
	WriteTimeout     time.Duration
}

// NewConnectionFactory produces a ConnectionFactory from the given options.
func NewConnectionFactory(o ConnectionFactoryOptions) ConnectionFactory {
	return &connectionFactory{
		upgrader: websocket.Upgrader{
			HandshakeTimeout: o.HandshakeTimeout,
			ReadBufferSize:   o.ReadBufferSize,
			WriteBufferSize:  o.WriteBufferSize,
			Subprotocols:     o.Subprotocols,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		idlePeriod:   o.IdlePeriod,
		writeTimeout: o.WriteTimeout,
	}
}

// connectionFactory is the default ConnectionFactory implementation.
type connectionFactory struct {
	upgrader     websocket.Upgrader
	idlePeriod   time.Duration
	writeTimeout time.Duration
}

func (cf *connectionFactory) NewConnection(response http.ResponseWriter, request *http.Request, responseHeader http.Header) (Connection, error) {
	webSocket, err := cf.upgrader.Upgrade(response, request, responseHeader)
	if err != nil {
		return nil, err
	}

	c := &connection{
		webSocket:    webSocket,
		idlePeriod:   cf.idlePeriod,
		writeTimeout: cf.writeTimeout,
	}

	// initialize the pong callback to the default, which also registers
	// the handler that enforces the idle policy
	c.SetPongCallback(nil)

	return c, nil
}
