// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package relayhttp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/brewbridge/relay/device"
	"github.com/brewbridge/relay/relaymsg"
	"github.com/gorilla/mux"
)

// commandRequest is the admin surface's synchronous command payload: a
// message type plus arbitrary type-specific fields, forwarded to the
// device and awaited via the correlator.
type commandRequest struct {
	Type   string                 `json:"type"`
	Fields map[string]interface{} `json:"fields"`
}

// CommandHandler serves POST /admin/devices/{id}/command: it forwards a
// message to a device and blocks for its correlated response, the
// request/response-over-WebSocket pattern spec.md describes for
// HTTP-originated requests.
type CommandHandler struct {
	correlator *correlator
}

// NewCommandHandler builds a CommandHandler bound to relay. Callers own
// the returned correlator's lifecycle via Close.
func NewCommandHandler(relay device.Relay, timeout time.Duration) *CommandHandler {
	return &CommandHandler{correlator: newCorrelator(relay, timeout)}
}

func (h *CommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rawID := mux.Vars(r)["id"]

	id, err := device.ParseID(rawID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}

	if req.Type == "" {
		WriteError(w, http.StatusBadRequest, ErrorMissingCommandType)
		return
	}

	msg := relaymsg.NewMessage(req.Type)
	for k, v := range req.Fields {
		msg.Set(k, v)
	}

	resp, err := h.correlator.Send(r.Context(), id, msg)
	if err != nil {
		if err == ErrorRequestTimeout {
			WriteError(w, http.StatusGatewayTimeout, err)
		} else {
			WriteError(w, http.StatusBadGateway, err)
		}
		return
	}

	writeJSON(w, resp.Fields())
}

// Close releases the handler's correlator subscription.
func (h *CommandHandler) Close() {
	h.correlator.Close()
}
