// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCredentialStore is a testify mock of CredentialStore for use in
// Device Relay tests.
type MockCredentialStore struct {
	mock.Mock
}

var _ CredentialStore = (*MockCredentialStore)(nil)

func (m *MockCredentialStore) VerifyDeviceKey(ctx context.Context, id ID, key string) (bool, error) {
	// nolint: typecheck
	arguments := m.Called(ctx, id, key)
	return arguments.Bool(0), arguments.Error(1)
}

func (m *MockCredentialStore) UpdateDeviceStatus(ctx context.Context, id ID, online bool) error {
	// nolint: typecheck
	return m.Called(ctx, id, online).Error(0)
}

func (m *MockCredentialStore) SyncOnlineDevicesWithConnections(ctx context.Context, connectedIDs []ID) (int, error) {
	// nolint: typecheck
	arguments := m.Called(ctx, connectedIDs)
	return arguments.Int(0), arguments.Error(1)
}
