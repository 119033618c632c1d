// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import "errors"

var (
	ErrorMissingToken    = errors.New("missing access token")
	ErrorMissingDevice   = errors.New("missing target device id")
	ErrorInvalidToken    = errors.New("access token rejected")
	ErrorForbidden       = errors.New("user does not own the target device")
	ErrorSessionNotFound = errors.New("the session does not exist")
	ErrorSessionClosed   = errors.New("that session has been closed")
	ErrorSessionBusy     = errors.New("that session is busy")
)
