// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"

	"github.com/brewbridge/relay/clientproxy"
	"github.com/brewbridge/relay/device"
)

// errNotImplemented is returned by the placeholder collaborators below,
// which stand in for the device-provisioning and session services until
// this binary is wired to them.
var errNotImplemented = errors.New("relay: external collaborator not configured")

type unimplementedCredentialStore struct{}

func (unimplementedCredentialStore) VerifyDeviceKey(context.Context, device.ID, string) (bool, error) {
	return false, errNotImplemented
}

func (unimplementedCredentialStore) UpdateDeviceStatus(context.Context, device.ID, bool) error {
	return errNotImplemented
}

func (unimplementedCredentialStore) SyncOnlineDevicesWithConnections(context.Context, []device.ID) (int, error) {
	return 0, errNotImplemented
}

type unimplementedSessionStore struct{}

func (unimplementedSessionStore) VerifyAccessToken(context.Context, string) (*clientproxy.Session, error) {
	return nil, errNotImplemented
}

func (unimplementedSessionStore) UserOwnsDevice(context.Context, string, device.ID) (bool, error) {
	return false, errNotImplemented
}
