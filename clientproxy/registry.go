// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import (
	"sync"

	"github.com/brewbridge/relay/device"
	"github.com/google/uuid"
)

// sessionRegistry holds every connected ClientConnection in a primary
// table plus a per-device index, both mutated together under a single
// lock so that add/remove stay atomic with respect to fan-out -- exactly
// the invariant the spec calls out for the primary table and per-device
// index.
type sessionRegistry struct {
	mutex sync.RWMutex

	byID     map[uuid.UUID]*ClientConnection
	byDevice map[device.ID]map[uuid.UUID]*ClientConnection
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{
		byID:     make(map[uuid.UUID]*ClientConnection),
		byDevice: make(map[device.ID]map[uuid.UUID]*ClientConnection),
	}
}

func (r *sessionRegistry) add(c *ClientConnection) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.byID[c.sessionID] = c

	byDevice, ok := r.byDevice[c.deviceID]
	if !ok {
		byDevice = make(map[uuid.UUID]*ClientConnection)
		r.byDevice[c.deviceID] = byDevice
	}

	byDevice[c.sessionID] = c
}

func (r *sessionRegistry) remove(c *ClientConnection) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.byID, c.sessionID)

	if byDevice, ok := r.byDevice[c.deviceID]; ok {
		delete(byDevice, c.sessionID)
		if len(byDevice) == 0 {
			delete(r.byDevice, c.deviceID)
		}
	}
}

func (r *sessionRegistry) get(id uuid.UUID) (*ClientConnection, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	c, ok := r.byID[id]
	return c, ok
}

// visitDevice invokes visitor for every session currently bound to id.
func (r *sessionRegistry) visitDevice(id device.ID, visitor func(*ClientConnection)) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, c := range r.byDevice[id] {
		visitor(c)
	}
}

func (r *sessionRegistry) visitAll(visitor func(*ClientConnection)) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, c := range r.byID {
		visitor(c)
	}
}

func (r *sessionRegistry) len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.byID)
}

// countsByDevice returns the number of bound sessions per device, for the
// clientsByDevice stats field.
func (r *sessionRegistry) countsByDevice() map[string]int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	counts := make(map[string]int, len(r.byDevice))
	for id, sessions := range r.byDevice {
		counts[string(id)] = len(sessions)
	}

	return counts
}
