package state

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// NodeId identifies a camera node across the whole mesh. Ids are assigned at
// provisioning time and are unique network-wide. Zero is not a valid id.
type NodeId uint32

func (n NodeId) String() string {
	return fmt.Sprintf("%08x", uint32(n))
}

func (n NodeId) Valid() bool {
	return n != 0
}

// Inf is the sentinel metric for an unreachable destination.
const Inf = float32(math.MaxFloat32)

// LinkQuality holds the smoothed radio statistics for one direct neighbour.
// It is owned by the link tracker; everything else reads it through the
// neighbour record.
type LinkQuality struct {
	Reliability    float64 // exponentially smoothed delivery ratio, [0,1]
	PacketLoss     float64 // [0,1]
	SignalStrength int16   // dBm, signed
	LastUpdated    time.Time
}

// AdvRoute is a destination a neighbour claims it can reach, as heard in its
// periodic announcements.
type AdvRoute struct {
	Metric      float32
	HopCount    uint8
	Reliability float32
	Expire      time.Time
}

type Neighbour struct {
	Id        NodeId
	Link      LinkQuality
	Routes    map[NodeId]AdvRoute
	LastHeard time.Time
}

// RouteEntry is one row of the routing table. Invariants: HopCount == 1 iff
// NextHop == Destination; Metric is Inf only while a retraction is pending.
type RouteEntry struct {
	Destination      NodeId
	NextHop          NodeId
	HopCount         uint8
	Metric           float32
	Reliability      float32
	Utilization      float32 // fraction of the route's send budget in use, [0,1]
	WildlifePriority bool
	LastUsed         time.Time
}

// RouteWatcher observes committed routing table mutations. Callbacks run
// synchronously on the core goroutine, in table-mutation order.
type RouteWatcher interface {
	OnRouteChanged(destination, nextHop NodeId, hopCount uint8)
	OnRouteRemoved(destination NodeId)
}

func (s *State) GetNeighbour(node NodeId) *Neighbour {
	nIdx := slices.IndexFunc(s.Neighbours, func(neighbour *Neighbour) bool {
		return neighbour.Id == node
	})
	if nIdx == -1 {
		return nil
	}
	return s.Neighbours[nIdx]
}

func (s *State) RemoveNeighbour(node NodeId) {
	s.Neighbours = slices.DeleteFunc(s.Neighbours, func(neighbour *Neighbour) bool {
		return neighbour.Id == node
	})
}

// AddMetric sums two path costs, saturating at Inf.
func AddMetric(a, b float32) float32 {
	if a == Inf || b == Inf {
		return Inf
	}
	return a + b
}
