package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thewriterben/wildcam-mesh/state"
)

func TestPrioritizeWildlifeRoute(t *testing.T) {
	h := newHarness(t, 0xaaaaaaaa)
	table := Get[*RouteTable](h.s)
	priority := Get[*Priority](h.s)

	// No route yet.
	assert.ErrorIs(t, priority.PrioritizeWildlifeRoute(h.s, 0x11111111), ErrRouteNotFound)

	h.addNeighbour(t, 0x22222222, 0.9, 0.1, -70)
	require.NoError(t, table.AddRoute(h.s, state.RouteEntry{
		Destination: 0x11111111, NextHop: 0x22222222, HopCount: 2, Metric: 2,
	}))

	require.NoError(t, priority.PrioritizeWildlifeRoute(h.s, 0x11111111))
	assert.True(t, table.FindRoute(0x11111111).WildlifePriority)

	// Idempotent.
	require.NoError(t, priority.PrioritizeWildlifeRoute(h.s, 0x11111111))
	assert.True(t, table.FindRoute(0x11111111).WildlifePriority)
}

func TestImageTransmissionAdmission(t *testing.T) {
	h := newHarness(t, 0xaaaaaaaa)
	table := Get[*RouteTable](h.s)
	priority := Get[*Priority](h.s)
	h.addNeighbour(t, 0x22222222, 0.95, 0.05, -65)

	// No route at all.
	assert.False(t, priority.OptimizeForImageTransmission(h.s, 0x11111111, 2000))

	require.NoError(t, table.AddRoute(h.s, state.RouteEntry{
		Destination: 0x11111111, NextHop: 0x22222222, HopCount: 2,
		Metric: 2, Reliability: 0.95,
	}))

	// A reliable route carries a moderate image within the failure bound.
	assert.True(t, priority.OptimizeForImageTransmission(h.s, 0x11111111, 2000))

	// Nonsense sizes are rejected outright.
	assert.False(t, priority.OptimizeForImageTransmission(h.s, 0x11111111, 0))
	assert.False(t, priority.OptimizeForImageTransmission(h.s, 0x11111111, -5))

	// A congested route cannot absorb a bulk transfer.
	table.FindRoute(0x11111111).Utilization = 0.95
	assert.False(t, priority.OptimizeForImageTransmission(h.s, 0x11111111, 2000))
	table.FindRoute(0x11111111).Utilization = 0

	// A flaky route fails the admission check for the same image.
	table.FindRoute(0x11111111).Reliability = 0.5
	assert.False(t, priority.OptimizeForImageTransmission(h.s, 0x11111111, 2000))
}
