// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package relayhttp wires the Device Relay and Client Proxy to the
// outside world over HTTP: the device and client WebSocket upgrade
// endpoints, and an admin surface of read-only endpoints plus a device
// command endpoint.
package relayhttp

import (
	"net/http"
	"time"

	"github.com/brewbridge/relay/clientproxy"
	"github.com/brewbridge/relay/device"
	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// RouterOptions configures the relay's HTTP surface.
type RouterOptions struct {
	Relay      *device.Manager
	Proxy      *clientproxy.Proxy
	Command    *CommandHandler
	Registerer *prometheus.Registry
	Logger     *zap.Logger

	DevicePath  string
	ClientPath  string
	AdminPrefix string
	MetricsPath string
}

// NewRouter builds the relay's top-level mux.Router: the device and
// client upgrade endpoints, the admin surface, and the metrics scrape
// endpoint. All but the metrics endpoint are wrapped in the same alice
// chain the teacher's xhttp package builds for its own servers (request
// logging plus otelhttp instrumentation); the metrics endpoint is mounted
// bare.
func NewRouter(o RouterOptions) *mux.Router {
	if o.DevicePath == "" {
		o.DevicePath = "/api/v1/device"
	}

	if o.ClientPath == "" {
		o.ClientPath = "/api/v1/connect"
	}

	if o.AdminPrefix == "" {
		o.AdminPrefix = "/admin"
	}

	if o.MetricsPath == "" {
		o.MetricsPath = "/metrics"
	}

	router := mux.NewRouter()

	chain := alice.New(
		func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "relay")
		},
		requestLoggingMiddleware(o.Logger),
	)

	router.Handle(o.DevicePath, chain.Then(&DeviceHandler{Relay: o.Relay, Logger: o.Logger}))
	router.Handle(o.ClientPath, chain.Then(&ClientHandler{Proxy: o.Proxy, Logger: o.Logger}))

	admin := router.PathPrefix(o.AdminPrefix).Subrouter()
	admin.Handle("/devices", chain.Then(&ListHandler{Relay: o.Relay})).Methods(http.MethodGet)
	admin.Handle("/devices/{id}", chain.Then(&DeviceHandlerAdmin{Relay: o.Relay})).Methods(http.MethodGet)
	admin.Handle("/stats", chain.Then(&StatHandler{Relay: o.Relay, Proxy: o.Proxy})).Methods(http.MethodGet)

	if o.Command != nil {
		admin.Handle("/devices/{id}/command", chain.Then(o.Command)).Methods(http.MethodPost)
	}

	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if o.Registerer != nil {
		gatherer = o.Registerer
	}

	router.Handle(o.MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return router
}

// requestLoggingMiddleware logs each request's method, path, and latency
// at debug level, matching the teacher's xhttp server logging.
func requestLoggingMiddleware(logger *zap.Logger) alice.Constructor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("handled request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("latency", time.Since(start)),
			)
		})
	}
}
