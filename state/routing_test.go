package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeId(t *testing.T) {
	assert.Equal(t, "11111111", NodeId(0x11111111).String())
	assert.Equal(t, "0000002a", NodeId(42).String())
	assert.True(t, NodeId(1).Valid())
	assert.False(t, NodeId(0).Valid())
}

func TestNeighbourSet(t *testing.T) {
	s := &State{Env: &Env{}}
	assert.Nil(t, s.GetNeighbour(0x11111111))

	n := &Neighbour{Id: 0x11111111, Routes: map[NodeId]AdvRoute{}}
	s.Neighbours = append(s.Neighbours, n)
	assert.Same(t, n, s.GetNeighbour(0x11111111))

	s.RemoveNeighbour(0x11111111)
	assert.Nil(t, s.GetNeighbour(0x11111111))
	assert.Empty(t, s.Neighbours)
}
