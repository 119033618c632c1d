// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package relayhttp

import (
	"net/http"

	"github.com/brewbridge/relay/clientproxy"
	"go.uber.org/zap"
)

// ClientHandler upgrades inbound requests on the client endpoint to
// websockets and hands them to the Client Proxy.
type ClientHandler struct {
	Proxy  *clientproxy.Proxy
	Logger *zap.Logger
}

func (h *ClientHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q, err := decodeClientConnectQuery(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}

	if _, err := h.Proxy.Connect(w, r, q.Token, q.DeviceID); err != nil {
		h.Logger.Info("client connect rejected", zap.String("deviceId", q.DeviceID), zap.Error(err))
	}
}
