// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package relayhttp

import (
	"net/http"

	"github.com/brewbridge/relay/device"
	"go.uber.org/zap"
)

// DeviceHandler upgrades inbound requests on the device endpoint to
// websockets and hands them to the Device Relay, the HTTP-layer
// equivalent of the teacher's device.ConnectHandler.
type DeviceHandler struct {
	Relay  *device.Manager
	Logger *zap.Logger
}

func (h *DeviceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q, err := decodeDeviceConnectQuery(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}

	if _, err := h.Relay.Connect(w, r, q.ID, q.Key); err != nil {
		h.Logger.Info("device connect rejected", zap.String("deviceId", q.ID), zap.Error(err))
	}
}
