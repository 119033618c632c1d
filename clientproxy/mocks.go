// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import (
	"context"

	"github.com/brewbridge/relay/device"
	"github.com/stretchr/testify/mock"
)

// MockSessionStore is a testify mock of SessionStore, grounded on
// device.MockCredentialStore's shape.
type MockSessionStore struct {
	mock.Mock
}

var _ SessionStore = (*MockSessionStore)(nil)

func (m *MockSessionStore) VerifyAccessToken(ctx context.Context, token string) (*Session, error) {
	arguments := m.Called(ctx, token)

	session, _ := arguments.Get(0).(*Session)
	return session, arguments.Error(1)
}

func (m *MockSessionStore) UserOwnsDevice(ctx context.Context, userID string, deviceID device.ID) (bool, error) {
	arguments := m.Called(ctx, userID, deviceID)
	return arguments.Bool(0), arguments.Error(1)
}
