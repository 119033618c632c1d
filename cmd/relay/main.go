// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Command relay runs the cloud relay: the Device Relay, the Client
// Proxy, and the HTTP surface that fronts them, composed with
// go.uber.org/fx.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/brewbridge/relay/clientproxy"
	"github.com/brewbridge/relay/config"
	"github.com/brewbridge/relay/device"
	"github.com/brewbridge/relay/relayhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func newListener(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

const applicationName = "relay"

func newConfig() (*config.Config, error) {
	f := pflag.NewFlagSet(applicationName, pflag.ContinueOnError)
	return config.New(applicationName, os.Args[1:], f, viper.New())
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return config.NewLogger(cfg)
}

func newRegisterer() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func newCredentialStore() device.CredentialStore {
	// The credential store is an external collaborator per the relay's
	// scope boundary; this stub satisfies the dependency graph until a
	// real implementation (backed by the device-provisioning service) is
	// wired in.
	return &unimplementedCredentialStore{}
}

func newSessionStore() clientproxy.SessionStore {
	// Same boundary as newCredentialStore, for the session/ownership
	// collaborator.
	return &unimplementedSessionStore{}
}

func newDeviceRelay(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger, registerer *prometheus.Registry, store device.CredentialStore) *device.Manager {
	manager := device.NewManager(device.ManagerOptions{
		CredentialStore:     store,
		Logger:              logger.Named("device"),
		Registerer:          registerer,
		PingPeriod:          cfg.Device.PingPeriod,
		MissedPingThreshold: cfg.Device.MissedPingThreshold,
		ReconcilePeriod:     cfg.Device.ReconcilePeriod,
		QueueSize:           cfg.Device.QueueSize,
	})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			manager.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			manager.Shutdown()
			return nil
		},
	})

	return manager
}

func newClientProxy(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger, registerer *prometheus.Registry, relay *device.Manager, store clientproxy.SessionStore) *clientproxy.Proxy {
	proxy := clientproxy.NewProxy(clientproxy.ProxyOptions{
		SessionStore:        store,
		Relay:               relay,
		Logger:              logger.Named("clientproxy"),
		Registerer:          registerer,
		PingPeriod:          cfg.Client.PingPeriod,
		MissedPongThreshold: cfg.Client.MissedPongThreshold,
		QueueTTL:            cfg.Client.QueueTTL,
		QueueCapacity:       cfg.Client.QueueCapacity,
		TokenExpiryWarning:  cfg.Client.TokenExpiryWarning,
		QueueSize:           cfg.Client.QueueSize,
	})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			proxy.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			proxy.Shutdown()
			return nil
		},
	})

	return proxy
}

func newCommandHandler(lc fx.Lifecycle, relay *device.Manager) *relayhttp.CommandHandler {
	h := relayhttp.NewCommandHandler(relay, relayhttp.DefaultRequestTimeout)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			h.Close()
			return nil
		},
	})

	return h
}

func newHTTPServer(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger, relay *device.Manager, proxy *clientproxy.Proxy, command *relayhttp.CommandHandler, registerer *prometheus.Registry) *http.Server {
	router := relayhttp.NewRouter(relayhttp.RouterOptions{
		Relay:       relay,
		Proxy:       proxy,
		Command:     command,
		Registerer:  registerer,
		Logger:      logger,
		DevicePath:  cfg.HTTP.DevicePath,
		ClientPath:  cfg.HTTP.ClientPath,
		AdminPrefix: cfg.HTTP.AdminPrefix,
		MetricsPath: cfg.HTTP.MetricsPath,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := newListener(server.Addr)
			if err != nil {
				return err
			}

			go func() {
				if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("http server exited", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})

	return server
}

func main() {
	fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newRegisterer,
			newCredentialStore,
			newSessionStore,
			newDeviceRelay,
			newClientProxy,
			newCommandHandler,
			newHTTPServer,
		),
		fx.Invoke(func(*http.Server) {}),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
	).Run()
}
