// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import (
	"testing"
	"time"

	"github.com/brewbridge/relay/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConnectionTouchResetsMissedPongs(t *testing.T) {
	assert := assert.New(t)

	c := newClientConnection(clientConnectionOptions{
		UserID:   "user-1",
		DeviceID: device.ID("BRW-01ABCDEF"),
	})

	c.incrementMissedPongs()
	c.incrementMissedPongs()
	assert.Equal(int32(2), c.MissedPongs())

	c.touch(time.Now())
	assert.Equal(int32(0), c.MissedPongs())
}

func TestClientConnectionRecordPongAveragesRTT(t *testing.T) {
	assert := assert.New(t)

	c := newClientConnection(clientConnectionOptions{
		UserID:   "user-1",
		DeviceID: device.ID("BRW-01ABCDEF"),
	})

	start := time.Now()
	c.markPingSent(start)
	c.recordPong(start.Add(100 * time.Millisecond))

	metrics := c.Metrics()
	assert.Equal(uint64(1), metrics.PingCount)
	assert.Equal(100*time.Millisecond, metrics.LastPingRTT)
	assert.Equal(100*time.Millisecond, metrics.AvgPingRTT)

	c.markPingSent(start)
	c.recordPong(start.Add(300 * time.Millisecond))

	metrics = c.Metrics()
	assert.Equal(uint64(2), metrics.PingCount)
	assert.Equal(200*time.Millisecond, metrics.AvgPingRTT)
}

func TestClientConnectionSendAfterClose(t *testing.T) {
	require := require.New(t)

	c := newClientConnection(clientConnectionOptions{
		UserID:   "user-1",
		DeviceID: device.ID("BRW-01ABCDEF"),
	})

	require.NoError(c.Send([]byte("hello")))

	c.requestClose()
	require.True(c.Closed())
	require.ErrorIs(c.Send([]byte("too-late")), ErrorSessionClosed)
}

func TestClientConnectionSendBusyWhenQueueFull(t *testing.T) {
	require := require.New(t)

	c := newClientConnection(clientConnectionOptions{
		UserID:    "user-1",
		DeviceID:  device.ID("BRW-01ABCDEF"),
		QueueSize: 1,
	})

	require.NoError(c.Send([]byte("first")))
	require.ErrorIs(c.Send([]byte("second")), ErrorSessionBusy)
}

func TestClientConnectionTokenTimerFires(t *testing.T) {
	require := require.New(t)

	c := newClientConnection(clientConnectionOptions{
		UserID:   "user-1",
		DeviceID: device.ID("BRW-01ABCDEF"),
	})

	fired := make(chan struct{})
	c.scheduleTokenTimer(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		require.Fail("token timer never fired")
	}
}

func TestClientConnectionCancelTokenTimer(t *testing.T) {
	require := require.New(t)

	c := newClientConnection(clientConnectionOptions{
		UserID:   "user-1",
		DeviceID: device.ID("BRW-01ABCDEF"),
	})

	fired := make(chan struct{}, 1)
	c.scheduleTokenTimer(20*time.Millisecond, func() { fired <- struct{}{} })
	c.cancelTokenTimer()

	select {
	case <-fired:
		require.Fail("token timer fired after cancellation")
	case <-time.After(50 * time.Millisecond):
	}
}
