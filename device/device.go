package device

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

const (
	stateOpen int32 = iota
	stateClosed
)

// DefaultDeviceMessageQueueSize is the default capacity of a device's
// outbound message channel.
const DefaultDeviceMessageQueueSize = 100

// Interface is the core type for this package. It provides access to
// public device metadata and the ability to send messages to a device.
//
// Instances are mostly immutable and have a strict lifecycle: devices are
// initially open, and once closed cannot be reused. A new device instance
// is required if further communication is needed.
//
// Each device has a pair of goroutines within the enclosing Manager: a
// read and a write pump. The write pump services the outbound channel
// used by Send.
type Interface interface {
	fmt.Stringer
	json.Marshaler

	// ID returns the canonicalized identifier for this device.
	ID() ID

	// ConnectedAt returns the time this device connected.
	ConnectedAt() time.Time

	// LastSeen returns the last time any frame was read from this device,
	// including pongs.
	LastSeen() time.Time

	// Pending returns the count of messages queued for delivery to this
	// device but not yet written to the socket.
	Pending() int

	// Closed tests if this device is closed. Once closed, a device cannot
	// be reopened; a new connection produces a new device instance.
	Closed() bool

	// Send enqueues a raw frame for delivery to this device. The write
	// pump in the enclosing Manager services this queue; the call
	// returns without waiting for the frame to actually reach the wire.
	// It returns ErrorDeviceClosed if the device has been closed, and
	// ErrorDeviceBusy if the outbound queue is full.
	Send(data []byte) error

	// CloseReason returns the metadata explaining why a device was
	// closed. Undefined if the device is not closed.
	CloseReason() CloseReason
}

// device is the internal Interface implementation.
type device struct {
	id ID

	logger *zap.Logger

	connectedAt time.Time
	lastSeen    atomic.Value // time.Time

	missedPings int32

	state int32

	shutdown chan struct{}
	outbound chan []byte

	conn Connection

	closeReason atomic.Value
}

type deviceOptions struct {
	ID          ID
	QueueSize   int
	ConnectedAt time.Time
	Logger      *zap.Logger
}

// newDevice is an internal factory function for devices.
func newDevice(o deviceOptions) *device {
	if o.ConnectedAt.IsZero() {
		o.ConnectedAt = time.Now()
	}

	if o.Logger == nil {
		o.Logger = sallust.Default()
	}

	if o.QueueSize < 1 {
		o.QueueSize = DefaultDeviceMessageQueueSize
	}

	d := &device{
		id:          o.ID,
		logger:      o.Logger.With(zap.String("deviceId", string(o.ID))),
		connectedAt: o.ConnectedAt,
		state:       stateOpen,
		shutdown:    make(chan struct{}),
		outbound:    make(chan []byte, o.QueueSize),
	}

	d.lastSeen.Store(o.ConnectedAt)
	return d
}

// String returns the device id.
func (d *device) String() string {
	return string(d.id)
}

func (d *device) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          string    `json:"id"`
		ConnectedAt time.Time `json:"connectedAt"`
		LastSeen    time.Time `json:"lastSeen"`
		MissedPings int32     `json:"missedPings"`
		Pending     int       `json:"pending"`
	}{
		ID:          string(d.id),
		ConnectedAt: d.connectedAt,
		LastSeen:    d.LastSeen(),
		MissedPings: atomic.LoadInt32(&d.missedPings),
		Pending:     d.Pending(),
	})
}

func (d *device) requestClose(reason CloseReason) {
	if atomic.CompareAndSwapInt32(&d.state, stateOpen, stateClosed) {
		close(d.shutdown)

		if len(reason.Text) == 0 {
			reason.Text = "unknown"
		}

		d.closeReason.Store(reason)
	}
}

func (d *device) ID() ID {
	return d.id
}

func (d *device) ConnectedAt() time.Time {
	return d.connectedAt
}

func (d *device) LastSeen() time.Time {
	return d.lastSeen.Load().(time.Time)
}

func (d *device) touch(t time.Time) {
	d.lastSeen.Store(t)
	atomic.StoreInt32(&d.missedPings, 0)
}

func (d *device) incrementMissedPings() int32 {
	return atomic.AddInt32(&d.missedPings, 1)
}

func (d *device) MissedPings() int32 {
	return atomic.LoadInt32(&d.missedPings)
}

func (d *device) Pending() int {
	return len(d.outbound)
}

func (d *device) Closed() bool {
	return atomic.LoadInt32(&d.state) != stateOpen
}

func (d *device) Send(data []byte) error {
	if d.Closed() {
		return ErrorDeviceClosed
	}

	select {
	case d.outbound <- data:
		return nil
	default:
		return ErrorDeviceBusy
	}
}

func (d *device) CloseReason() CloseReason {
	if v, ok := d.closeReason.Load().(CloseReason); ok {
		return v
	}

	return CloseReason{}
}
