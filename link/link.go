// Package link is the boundary between the routing core and the radio MAC
// layer. The core exchanges typed frames; marshalling them onto the air is
// the transport implementation's concern.
package link

import (
	"github.com/thewriterben/wildcam-mesh/state"
)

// Frame is a message the routing core exchanges with its direct neighbours.
type Frame interface {
	frame()
}

// Receiver is the inbound callback the core registers. rssi is the received
// signal strength the radio measured for this frame, in dBm.
type Receiver func(from state.NodeId, rssi int16, f Frame)

// Transport is implemented by the MAC layer (LoRa/WiFi on hardware, memlink
// in tests). Broadcast delivers to all direct neighbours; relaying beyond
// one hop is the routing core's job.
type Transport interface {
	SendToNeighbor(node state.NodeId, f Frame) error
	Broadcast(f Frame, maxHops uint8) error
	SetReceiver(r Receiver)
	Close() error
}

// DiscoveryRequest floods toward Target, accumulating path cost on the way.
type DiscoveryRequest struct {
	RequestID   uint32
	Origin      state.NodeId
	Target      state.NodeId
	HopsLeft    uint8
	HopCount    uint8   // hops traversed so far
	Metric      float32 // accumulated path cost
	Reliability float32 // accumulated path reliability product
}

// DiscoveryReply travels hop-by-hop back to Origin along the reverse path.
type DiscoveryReply struct {
	RequestID   uint32
	Origin      state.NodeId
	Target      state.NodeId
	HopCount    uint8
	Metric      float32
	Reliability float32
}

// Advert is one row of a neighbour's published reachability.
type Advert struct {
	Destination state.NodeId
	Metric      float32
	HopCount    uint8
	Reliability float32
}

// RouteAnnounce is the periodic table gossip every node sends its
// neighbours.
type RouteAnnounce struct {
	Adverts []Advert
}

// LinkProbe and LinkProbeAck measure per-neighbour delivery and signal.
type LinkProbe struct {
	Seq uint32
}

type LinkProbeAck struct {
	Seq uint32
}

func (DiscoveryRequest) frame() {}
func (DiscoveryReply) frame()   {}
func (RouteAnnounce) frame()    {}
func (LinkProbe) frame()        {}
func (LinkProbeAck) frame()     {}
