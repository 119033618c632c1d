// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package relayhttp

import "errors"

var ErrorMissingCommandType = errors.New("missing command type")
