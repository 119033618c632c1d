// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import (
	"sync"
	"time"

	"github.com/brewbridge/relay/device"
	"github.com/brewbridge/relay/relaymsg"
)

// DeviceStateCache holds the last known value of each cached telemetry
// type for one device. A nil field means that type has never been seen
// since the device last came online.
type DeviceStateCache struct {
	Status     *relaymsg.Message
	DeviceInfo *relaymsg.Message
	ESPStatus  *relaymsg.Message
	PicoStatus *relaymsg.Message
	LastUpdated time.Time
}

// Empty reports whether the cache holds no entries at all.
func (c *DeviceStateCache) Empty() bool {
	return c.Status == nil && c.DeviceInfo == nil && c.ESPStatus == nil && c.PicoStatus == nil
}

// stateCache is the Client Proxy's per-device cache of the most recent
// cacheable telemetry, keyed by deviceId. Writers are the Device Relay
// subscription handler; readers are the client accept path.
type stateCache struct {
	mutex   sync.RWMutex
	entries map[device.ID]*DeviceStateCache
}

func newStateCache() *stateCache {
	return &stateCache{entries: make(map[device.ID]*DeviceStateCache)}
}

// Update applies a device publication to the cache according to its type.
// status/device_info/esp_status/pico_status fully replace their slot and
// advance lastUpdated; status_delta advances lastUpdated only, since
// deltas are applied client-side against the client's own copy of status.
// Any other type is not cacheable and is ignored.
func (c *stateCache) Update(id device.ID, msg *relaymsg.Message, now time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		entry = &DeviceStateCache{}
		c.entries[id] = entry
	}

	switch msg.Type() {
	case relaymsg.TypeStatus:
		entry.Status = msg
	case relaymsg.TypeDeviceInfo:
		entry.DeviceInfo = msg
	case relaymsg.TypeESPStatus:
		entry.ESPStatus = msg
	case relaymsg.TypePicoStatus:
		entry.PicoStatus = msg
	case relaymsg.TypeStatusDelta:
		// stored status is intentionally left untouched
	default:
		return
	}

	entry.LastUpdated = now
}

// Get returns a copy of id's cache entry, if any.
func (c *stateCache) Get(id device.ID) (DeviceStateCache, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, ok := c.entries[id]
	if !ok {
		return DeviceStateCache{}, false
	}

	return *entry, true
}

// Clear erases id's cache entry, invoked the moment a device_offline
// publication is observed.
func (c *stateCache) Clear(id device.ID) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, id)
}
