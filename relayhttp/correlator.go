// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package relayhttp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/brewbridge/relay/device"
	"github.com/brewbridge/relay/relaymsg"
	"github.com/google/uuid"
)

// DefaultRequestTimeout is how long a correlated request waits for its
// device response before Send gives up with ErrorRequestTimeout.
const DefaultRequestTimeout = 10 * time.Second

// ErrorRequestTimeout is returned when a device never answers a
// correlated request within its deadline.
var ErrorRequestTimeout = errors.New("relayhttp: request timed out waiting for device response")

// ErrorRequestCanceled is returned when the caller's context is canceled
// before a device answers.
var ErrorRequestCanceled = errors.New("relayhttp: request canceled")

type pendingRequest struct {
	done chan *relaymsg.Message
}

// correlator adapts the Device Relay's fire-and-forget publish/subscribe
// model into a request/response call usable from an HTTP handler. It is
// the generalized form of the teacher's transaction table: a map keyed by
// (deviceID, requestID) instead of a single WRP transaction UUID, because
// a device may have more than one correlated request outstanding at once.
type correlator struct {
	relay device.Relay

	mutex   sync.Mutex
	pending map[string]*pendingRequest
	timeout time.Duration
	unsubFn func()
}

func newCorrelator(relay device.Relay, timeout time.Duration) *correlator {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	c := &correlator{
		relay:   relay,
		pending: make(map[string]*pendingRequest),
		timeout: timeout,
	}

	c.unsubFn = relay.OnDeviceMessage(c.onDeviceMessage)
	return c
}

func correlationKey(id device.ID, requestID string) string {
	return string(id) + "\x00" + requestID
}

// Close unsubscribes the correlator from device publications. Requests
// still awaiting a response are not woken; each ends at its own timeout
// or when its caller's context is canceled.
func (c *correlator) Close() {
	if c.unsubFn != nil {
		c.unsubFn()
	}
}

func (c *correlator) onDeviceMessage(d device.Interface, msg *relaymsg.Message) {
	requestID := msg.RequestID()
	if requestID == "" {
		return
	}

	key := correlationKey(d.ID(), requestID)

	c.mutex.Lock()
	req, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mutex.Unlock()

	if ok {
		req.done <- msg
	}
}

// Send publishes message to id, stamping a fresh requestId if absent, and
// blocks until either a response carrying that requestId arrives, ctx is
// canceled, or the correlator's timeout elapses.
func (c *correlator) Send(ctx context.Context, id device.ID, message *relaymsg.Message) (*relaymsg.Message, error) {
	if message.RequestID() == "" {
		message.SetRequestID(uuid.New().String())
	}

	key := correlationKey(id, message.RequestID())
	req := &pendingRequest{done: make(chan *relaymsg.Message, 1)}

	c.mutex.Lock()
	c.pending[key] = req
	c.mutex.Unlock()

	cleanup := func() {
		c.mutex.Lock()
		delete(c.pending, key)
		c.mutex.Unlock()
	}

	if !c.relay.SendToDevice(id, message) {
		cleanup()
		return nil, device.ErrorDeviceClosed
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case resp := <-req.done:
		return resp, nil
	case <-timeoutCtx.Done():
		cleanup()
		if ctx.Err() != nil {
			return nil, ErrorRequestCanceled
		}
		return nil, ErrorRequestTimeout
	}
}
