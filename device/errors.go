// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"errors"
)

var (
	ErrorMissingID        = errors.New("missing device id")
	ErrorMissingKey       = errors.New("missing device key")
	ErrorInvalidID        = errors.New("invalid device id")
	ErrorInvalidKey       = errors.New("invalid device key")
	ErrorDeviceNotFound   = errors.New("the device does not exist")
	ErrorDeviceClosed     = errors.New("that device has been closed")
	ErrorDeviceBusy       = errors.New("that device is busy")
	ErrorInvalidFrame     = errors.New("could not decode message frame")
	ErrorListenerNotFound = errors.New("that listener is not registered")
	ErrorAuthFailed       = errors.New("device authentication failed")
)
