// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import (
	"context"
	"time"

	"github.com/brewbridge/relay/device"
)

// Session is the outcome of a successful access-token verification.
type Session struct {
	UserID               string
	Email                string
	AccessTokenExpiresAt time.Time
}

// SessionStore is the external collaborator the Client Proxy consults to
// authenticate connecting clients and enforce device ownership. It is
// implemented outside this package; the proxy only depends on this
// interface.
type SessionStore interface {
	// VerifyAccessToken resolves token to the session it grants, or a nil
	// Session (with a nil error) if the token does not resolve to one. An
	// error return indicates the store itself failed, not that the token
	// was rejected.
	VerifyAccessToken(ctx context.Context, token string) (*Session, error)

	// UserOwnsDevice reports whether userID is permitted to access
	// deviceID.
	UserOwnsDevice(ctx context.Context, userID string, deviceID device.ID) (bool, error)
}
