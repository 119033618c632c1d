// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package clientproxy

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMeasuresRegistersInstruments(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	registry := prometheus.NewRegistry()
	measures := NewMeasures(registry)
	require.NotNil(measures)

	measures.ClientCount.Set(3)
	measures.Connects.Inc()
	measures.Disconnects.WithLabelValues("read closed").Inc()
	measures.QueueDepth.Set(2)
	measures.QueueDropped.Inc()

	families, err := registry.Gather()
	require.NoError(err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}

	assert.True(names[ClientCountGauge])
	assert.True(names[ClientConnectCounter])
	assert.True(names[ClientDisconnectCounter])
	assert.True(names[QueueDepthGauge])
	assert.True(names[QueueDroppedCounter])
}
