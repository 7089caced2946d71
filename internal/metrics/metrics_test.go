// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	require := require.New(t)
	reg := prometheus.NewRegistry()

	m, err := New(reg)
	require.NoError(err)
	require.NotNil(m)

	m.PacketsProcessed.WithLabelValues("Sync").Inc()
	m.PacketsDropped.WithLabelValues("MalformedPacket").Inc()
	m.MACFailures.Inc()
	m.RegistrySize.Set(3)

	families, err := reg.Gather()
	require.NoError(err)
	require.NotEmpty(families)
}

func TestNewRejectsDoubleRegistration(t *testing.T) {
	require := require.New(t)
	reg := prometheus.NewRegistry()

	_, err := New(reg)
	require.NoError(err)

	_, err = New(reg)
	require.Error(err)
}
