// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package relayhttp

import (
	"encoding/json"
	"net/http"
)

// Error is a JSON-serializable HTTP error, modeled on the teacher's
// xhttp.Error: a status code plus a message, written as the response body
// when a handler can't proceed.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// WriteError writes err as a JSON body with the given status code.
func WriteError(w http.ResponseWriter, statusCode int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	_ = json.NewEncoder(w).Encode(&Error{Code: statusCode, Message: err.Error()})
}
