package core

import (
	"github.com/thewriterben/wildcam-mesh/link"
	"github.com/thewriterben/wildcam-mesh/state"
)

// Radio owns the MAC transport handle and turns inbound frames into
// messages on the core loop. No other module touches the transport
// directly from the radio's execution context.
type Radio struct {
	transport link.Transport
}

func (r *Radio) Init(s *state.State) error {
	r.transport.SetReceiver(func(from state.NodeId, rssi int16, f link.Frame) {
		s.Dispatch(func(s *state.State) error {
			return handleFrame(s, from, rssi, f)
		})
	})
	return nil
}

func (r *Radio) Cleanup(s *state.State) error {
	return r.transport.Close()
}

func (r *Radio) Send(s *state.State, node state.NodeId, f link.Frame) error {
	return r.transport.SendToNeighbor(node, f)
}

func (r *Radio) Broadcast(s *state.State, f link.Frame, maxHops uint8) error {
	return r.transport.Broadcast(f, maxHops)
}

// handleFrame runs on the core goroutine. Frame handler errors are local to
// the frame and never fatal, so they are logged rather than returned.
func handleFrame(s *state.State, from state.NodeId, rssi int16, f link.Frame) error {
	switch f := f.(type) {
	case link.LinkProbe:
		Get[*LinkTracker](s).handleProbe(s, from, rssi, f)
	case link.LinkProbeAck:
		Get[*LinkTracker](s).handleProbeAck(s, from, rssi, f)
	case link.RouteAnnounce:
		Get[*Engine](s).handleAnnounce(s, from, rssi, f)
	case link.DiscoveryRequest:
		Get[*Discovery](s).handleRequest(s, from, rssi, f)
	case link.DiscoveryReply:
		Get[*Discovery](s).handleReply(s, from, rssi, f)
	default:
		s.Log.Debug("unknown frame type", "from", from)
	}
	return nil
}
