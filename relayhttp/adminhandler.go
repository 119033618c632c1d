// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package relayhttp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/brewbridge/relay/clientproxy"
	"github.com/brewbridge/relay/device"
	"github.com/gorilla/mux"
)

var timeNow = time.Now

// deviceSummary is the admin surface's per-device projection, shaped like
// the teacher's device.ListHandler entries: identity plus liveness, never
// the raw socket or pending queue.
type deviceSummary struct {
	ID       string `json:"id"`
	Online   bool   `json:"online"`
	LastSeen int64  `json:"lastSeen"`
}

// ListHandler serves GET /admin/devices, a snapshot of every device
// currently registered with the Device Relay.
type ListHandler struct {
	Relay device.Relay
}

func (h *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ids := h.Relay.GetConnectedDevices()

	summaries := make([]deviceSummary, 0, len(ids))
	for _, id := range ids {
		lastSeen, _ := h.Relay.GetDeviceLastSeen(id)
		summaries = append(summaries, deviceSummary{
			ID:       string(id),
			Online:   h.Relay.IsDeviceConnected(id),
			LastSeen: lastSeen.UnixMilli(),
		})
	}

	writeJSON(w, summaries)
}

// DeviceHandlerAdmin serves GET /admin/devices/{id}, a single device's
// detail, 404ing if it is not currently registered.
type DeviceHandlerAdmin struct {
	Relay device.Relay
}

func (h *DeviceHandlerAdmin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rawID := mux.Vars(r)["id"]

	id, err := device.ParseID(rawID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}

	if !h.Relay.IsDeviceConnected(id) {
		WriteError(w, http.StatusNotFound, device.ErrorDeviceNotFound)
		return
	}

	lastSeen, _ := h.Relay.GetDeviceLastSeen(id)
	writeJSON(w, deviceSummary{ID: string(id), Online: true, LastSeen: lastSeen.UnixMilli()})
}

// statsResponse combines Device Relay and Client Proxy counters into the
// single payload GET /admin/stats returns.
type statsResponse struct {
	Relay device.RelayStats      `json:"relay"`
	Proxy clientproxy.ProxyStats `json:"proxy"`
	Time  int64                  `json:"time"`
}

// StatHandler serves GET /admin/stats.
type StatHandler struct {
	Relay device.Relay
	Proxy *clientproxy.Proxy
}

func (h *StatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statsResponse{
		Relay: h.Relay.GetStats(),
		Proxy: h.Proxy.GetStats(),
		Time:  timeNow().UnixMilli(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
