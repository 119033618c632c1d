// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package relayhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/brewbridge/relay/clientproxy"
	"github.com/brewbridge/relay/device"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const validKey = "0123456789abcdef0123456789abcdef"

func newTestRouter(t *testing.T) (*httptest.Server, *device.Manager, *clientproxy.Proxy) {
	credStore := new(device.MockCredentialStore)
	credStore.On("VerifyDeviceKey", mock.Anything, device.ID("BRW-01ABCDEF"), validKey).Return(true, nil)
	credStore.On("UpdateDeviceStatus", mock.Anything, device.ID("BRW-01ABCDEF"), mock.Anything).Return(nil)

	registerer := prometheus.NewRegistry()

	relay := device.NewManager(device.ManagerOptions{
		CredentialStore: credStore,
		Registerer:      registerer,
		PingPeriod:      time.Hour,
		ReconcilePeriod: time.Hour,
	})
	relay.Start()
	t.Cleanup(relay.Shutdown)

	sessionStore := new(clientproxy.MockSessionStore)

	proxyRegisterer := prometheus.NewRegistry()
	proxy := clientproxy.NewProxy(clientproxy.ProxyOptions{
		SessionStore: sessionStore,
		Relay:        relay,
		Registerer:   proxyRegisterer,
		PingPeriod:   time.Hour,
	})
	proxy.Start()
	t.Cleanup(proxy.Shutdown)

	router := NewRouter(RouterOptions{
		Relay:      relay,
		Proxy:      proxy,
		Registerer: registerer,
		Logger:     zap.NewNop(),
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server, relay, proxy
}

func TestRouterDeviceConnect(t *testing.T) {
	require := require.New(t)

	server, relay, _ := newTestRouter(t)

	u, err := url.Parse(server.URL)
	require.NoError(err)
	u.Scheme = "ws"
	u.Path = "/api/v1/device"
	q := u.Query()
	q.Set("id", "BRW-01ABCDEF")
	q.Set("key", validKey)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(err)
	defer conn.Close()

	_, _, err = conn.ReadMessage() // connected
	require.NoError(err)

	assert.Eventually(t, func() bool { return relay.GetConnectedDeviceCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestRouterAdminDevicesList(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	server, relay, _ := newTestRouter(t)
	_ = relay

	resp, err := http.Get(server.URL + "/admin/devices")
	require.NoError(err)
	defer resp.Body.Close()

	assert.Equal(http.StatusOK, resp.StatusCode)

	var devices []deviceSummary
	require.NoError(json.NewDecoder(resp.Body).Decode(&devices))
	assert.Empty(devices)
}

func TestRouterAdminDeviceNotFound(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	server, _, _ := newTestRouter(t)

	resp, err := http.Get(server.URL + "/admin/devices/BRW-DEADBEEF")
	require.NoError(err)
	defer resp.Body.Close()

	assert.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestRouterAdminStats(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	server, _, _ := newTestRouter(t)

	resp, err := http.Get(server.URL + "/admin/stats")
	require.NoError(err)
	defer resp.Body.Close()

	assert.Equal(http.StatusOK, resp.StatusCode)

	var stats statsResponse
	require.NoError(json.NewDecoder(resp.Body).Decode(&stats))
	assert.Zero(stats.Relay.DeviceCount)
	assert.Zero(stats.Proxy.ConnectedClients)
}

func TestRouterMetrics(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	server, _, _ := newTestRouter(t)

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(err)
	defer resp.Body.Close()

	assert.Equal(http.StatusOK, resp.StatusCode)
}

func TestRouterCommandHandlerRoundTrip(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	credStore := new(device.MockCredentialStore)
	credStore.On("VerifyDeviceKey", mock.Anything, device.ID("BRW-01ABCDEF"), validKey).Return(true, nil)
	credStore.On("UpdateDeviceStatus", mock.Anything, device.ID("BRW-01ABCDEF"), mock.Anything).Return(nil)

	relay := device.NewManager(device.ManagerOptions{
		CredentialStore: credStore,
		PingPeriod:      time.Hour,
		ReconcilePeriod: time.Hour,
	})
	relay.Start()
	defer relay.Shutdown()

	command := NewCommandHandler(relay, time.Second)
	defer command.Close()

	router := NewRouter(RouterOptions{
		Relay:   relay,
		Proxy:   clientproxy.NewProxy(clientproxy.ProxyOptions{SessionStore: new(clientproxy.MockSessionStore), Relay: relay, PingPeriod: time.Hour}),
		Command: command,
		Logger:  zap.NewNop(),
	})

	server := httptest.NewServer(router)
	defer server.Close()

	u, err := url.Parse(server.URL)
	require.NoError(err)
	u.Scheme = "ws"
	u.Path = "/api/v1/device"
	q := u.Query()
	q.Set("id", "BRW-01ABCDEF")
	q.Set("key", validKey)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(err)
	defer conn.Close()

	_, _, err = conn.ReadMessage() // connected
	require.NoError(err)
	_, _, err = conn.ReadMessage() // request_state
	require.NoError(err)

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var req map[string]interface{}
			if json.Unmarshal(data, &req) != nil {
				continue
			}

			if req["type"] == "get_config" {
				req["type"] = "get_config_response"
				reply, _ := json.Marshal(req)
				_ = conn.WriteMessage(websocket.TextMessage, reply)
			}
		}
	}()

	body := []byte(`{"type":"get_config","fields":{}}`)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server.URL+"/admin/devices/BRW-01ABCDEF/command", bytes.NewReader(body))
	require.NoError(err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(err)
	defer resp.Body.Close()

	assert.Equal(http.StatusOK, resp.StatusCode)
}
