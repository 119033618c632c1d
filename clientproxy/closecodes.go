// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package clientproxy

// Close codes used on the client-facing socket. These sit in the
// 4000-4999 application range reserved by RFC 6455. They are distinct
// constants from the device package's close codes even where the numeric
// value happens to coincide, since the two sockets carry independent
// accept-path semantics.
const (
	// CloseForceDisconnect is the code for an operator forcibly
	// disconnecting a client. The proxy has no forced-disconnect path and
	// never sends it.
	CloseForceDisconnect = 4000

	// CloseBadRequest is sent when the token or device query parameter is
	// missing, or the device id is malformed.
	CloseBadRequest = 4001

	// CloseBadToken is sent when the session store rejects the access
	// token outright.
	CloseBadToken = 4002

	// CloseOwnership is sent when the token's user does not own the
	// requested device.
	CloseOwnership = 4003
)
