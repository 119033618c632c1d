// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import (
	"testing"

	"github.com/brewbridge/relay/device"
	"github.com/stretchr/testify/assert"
)

func TestSessionRegistryAddGetRemove(t *testing.T) {
	assert := assert.New(t)

	r := newSessionRegistry()
	c := newClientConnection(clientConnectionOptions{UserID: "user-1", DeviceID: device.ID("BRW-01ABCDEF")})

	r.add(c)
	assert.Equal(1, r.len())

	got, ok := r.get(c.SessionID())
	assert.True(ok)
	assert.Same(c, got)

	r.remove(c)
	assert.Equal(0, r.len())

	_, ok = r.get(c.SessionID())
	assert.False(ok)
}

func TestSessionRegistryVisitDevice(t *testing.T) {
	assert := assert.New(t)

	r := newSessionRegistry()
	deviceA := device.ID("BRW-01ABCDEF")
	deviceB := device.ID("BRW-FEDCBA98")

	a1 := newClientConnection(clientConnectionOptions{UserID: "user-1", DeviceID: deviceA})
	a2 := newClientConnection(clientConnectionOptions{UserID: "user-2", DeviceID: deviceA})
	b1 := newClientConnection(clientConnectionOptions{UserID: "user-3", DeviceID: deviceB})

	r.add(a1)
	r.add(a2)
	r.add(b1)

	var visited []string
	r.visitDevice(deviceA, func(c *ClientConnection) { visited = append(visited, c.UserID()) })
	assert.ElementsMatch([]string{"user-1", "user-2"}, visited)

	counts := r.countsByDevice()
	assert.Equal(2, counts[string(deviceA)])
	assert.Equal(1, counts[string(deviceB)])
}

func TestSessionRegistryVisitAll(t *testing.T) {
	assert := assert.New(t)

	r := newSessionRegistry()
	r.add(newClientConnection(clientConnectionOptions{UserID: "user-1", DeviceID: device.ID("BRW-01ABCDEF")}))
	r.add(newClientConnection(clientConnectionOptions{UserID: "user-2", DeviceID: device.ID("BRW-FEDCBA98")}))

	count := 0
	r.visitAll(func(*ClientConnection) { count++ })
	assert.Equal(2, count)
}

func TestSessionRegistryRemoveLastForDeviceDropsIndex(t *testing.T) {
	assert := assert.New(t)

	r := newSessionRegistry()
	id := device.ID("BRW-01ABCDEF")
	c := newClientConnection(clientConnectionOptions{UserID: "user-1", DeviceID: id})

	r.add(c)
	r.remove(c)

	counts := r.countsByDevice()
	_, ok := counts[string(id)]
	assert.False(ok)
}
