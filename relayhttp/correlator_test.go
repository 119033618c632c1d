// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package relayhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/brewbridge/relay/device"
	"github.com/brewbridge/relay/relaymsg"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func dialCorrelatorTestDevice(t *testing.T, relay *device.Manager) *websocket.Conn {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		_, _ = relay.Connect(w, r, q.Get("id"), q.Get("key"))
	}))
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	q := u.Query()
	q.Set("id", "BRW-01ABCDEF")
	q.Set("key", validKey)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func newCorrelatorTestRelay(t *testing.T) *device.Manager {
	store := new(device.MockCredentialStore)
	store.On("VerifyDeviceKey", mock.Anything, device.ID("BRW-01ABCDEF"), validKey).Return(true, nil)
	store.On("UpdateDeviceStatus", mock.Anything, device.ID("BRW-01ABCDEF"), mock.Anything).Return(nil)

	relay := device.NewManager(device.ManagerOptions{
		CredentialStore: store,
		PingPeriod:      time.Hour,
		ReconcilePeriod: time.Hour,
	})
	relay.Start()
	t.Cleanup(relay.Shutdown)

	return relay
}

func TestCorrelatorSendRoundTrip(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	relay := newCorrelatorTestRelay(t)
	conn := dialCorrelatorTestDevice(t, relay)

	_, _, err := conn.ReadMessage() // connected
	require.NoError(err)
	_, _, err = conn.ReadMessage() // request_state
	require.NoError(err)

	c := newCorrelator(relay, time.Second)
	defer c.Close()

	go func() {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		req, err := relaymsg.DecodeJSONFrame(data)
		if err != nil {
			return
		}

		reply := relaymsg.NewMessage("get_config_response")
		reply.SetRequestID(req.RequestID())
		encoded, _ := relaymsg.EncodeJSON(reply)
		_ = conn.WriteMessage(websocket.TextMessage, encoded)
	}()

	resp, err := c.Send(context.Background(), device.ID("BRW-01ABCDEF"), relaymsg.NewMessage("get_config"))
	require.NoError(err)
	assert.Equal("get_config_response", resp.Type())
}

func TestCorrelatorSendTimeout(t *testing.T) {
	require := require.New(t)

	relay := newCorrelatorTestRelay(t)
	dialCorrelatorTestDevice(t, relay)

	c := newCorrelator(relay, 20*time.Millisecond)
	defer c.Close()

	_, err := c.Send(context.Background(), device.ID("BRW-01ABCDEF"), relaymsg.NewMessage("get_config"))
	require.ErrorIs(err, ErrorRequestTimeout)
}

func TestCorrelatorSendCanceled(t *testing.T) {
	require := require.New(t)

	relay := newCorrelatorTestRelay(t)
	dialCorrelatorTestDevice(t, relay)

	c := newCorrelator(relay, time.Second)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Send(ctx, device.ID("BRW-01ABCDEF"), relaymsg.NewMessage("get_config"))
	require.ErrorIs(err, ErrorRequestCanceled)
}

func TestCorrelatorSendDeviceOffline(t *testing.T) {
	require := require.New(t)

	relay := newCorrelatorTestRelay(t)

	c := newCorrelator(relay, time.Second)
	defer c.Close()

	_, err := c.Send(context.Background(), device.ID("BRW-01ABCDEF"), relaymsg.NewMessage("get_config"))
	require.ErrorIs(err, device.ErrorDeviceClosed)
}
