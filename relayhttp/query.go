// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package relayhttp

import (
	"net/http"

	"github.com/gorilla/schema"
)

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// deviceConnectQuery is the query string a device presents to the device
// endpoint: its identifier and pre-shared key.
type deviceConnectQuery struct {
	ID  string `schema:"id"`
	Key string `schema:"key"`
}

// clientConnectQuery is the query string an end-user client presents to
// the client endpoint: its access token and the device it wants to bind
// to.
type clientConnectQuery struct {
	Token    string `schema:"token"`
	DeviceID string `schema:"deviceId"`
}

func decodeDeviceConnectQuery(r *http.Request) (deviceConnectQuery, error) {
	var q deviceConnectQuery
	err := queryDecoder.Decode(&q, r.URL.Query())
	return q, err
}

func decodeClientConnectQuery(r *http.Request) (clientConnectQuery, error) {
	var q clientConnectQuery
	err := queryDecoder.Decode(&q, r.URL.Query())
	return q, err
}
