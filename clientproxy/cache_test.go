// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import (
	"testing"
	"time"

	"github.com/brewbridge/relay/device"
	"github.com/brewbridge/relay/relaymsg"
	"github.com/stretchr/testify/assert"
)

func TestStateCacheUpdateReplacesByType(t *testing.T) {
	assert := assert.New(t)

	c := newStateCache()
	id := device.ID("BRW-01ABCDEF")
	now := time.Now()

	status := relaymsg.NewMessage(relaymsg.TypeStatus)
	c.Update(id, status, now)

	entry, ok := c.Get(id)
	assert.True(ok)
	assert.Same(status, entry.Status)
	assert.Nil(entry.DeviceInfo)
	assert.Equal(now, entry.LastUpdated)

	info := relaymsg.NewMessage(relaymsg.TypeDeviceInfo)
	later := now.Add(time.Second)
	c.Update(id, info, later)

	entry, ok = c.Get(id)
	assert.True(ok)
	assert.Same(status, entry.Status)
	assert.Same(info, entry.DeviceInfo)
	assert.Equal(later, entry.LastUpdated)
}

func TestStateCacheStatusDeltaLeavesStatusUntouched(t *testing.T) {
	assert := assert.New(t)

	c := newStateCache()
	id := device.ID("BRW-01ABCDEF")
	now := time.Now()

	status := relaymsg.NewMessage(relaymsg.TypeStatus)
	c.Update(id, status, now)

	delta := relaymsg.NewMessage(relaymsg.TypeStatusDelta)
	later := now.Add(time.Second)
	c.Update(id, delta, later)

	entry, ok := c.Get(id)
	assert.True(ok)
	assert.Same(status, entry.Status)
	assert.Equal(later, entry.LastUpdated)
}

func TestStateCacheIgnoresUncacheableType(t *testing.T) {
	assert := assert.New(t)

	c := newStateCache()
	id := device.ID("BRW-01ABCDEF")

	c.Update(id, relaymsg.NewMessage(relaymsg.TypePing), time.Now())

	_, ok := c.Get(id)
	assert.False(ok)
}

func TestStateCacheClear(t *testing.T) {
	assert := assert.New(t)

	c := newStateCache()
	id := device.ID("BRW-01ABCDEF")

	c.Update(id, relaymsg.NewMessage(relaymsg.TypeStatus), time.Now())
	c.Clear(id)

	_, ok := c.Get(id)
	assert.False(ok)
}

func TestDeviceStateCacheEmpty(t *testing.T) {
	assert := assert.New(t)

	var empty DeviceStateCache
	assert.True(empty.Empty())

	empty.Status = relaymsg.NewMessage(relaymsg.TypeStatus)
	assert.False(empty.Empty())
}
