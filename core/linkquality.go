package core

import (
	"math"

	"github.com/thewriterben/wildcam-mesh/link"
	"github.com/thewriterben/wildcam-mesh/state"
)

// LinkTracker owns per-neighbour link statistics. It probes every neighbour
// on a fixed cadence, folds ack ratios and radio signal reports into an
// exponential moving average, and converts the result into the link cost the
// engine routes on.
type LinkTracker struct {
	probes map[state.NodeId]*probeState
	seq    uint32
}

type probeState struct {
	sent    uint32
	acked   uint32
	rssiEMA float64
	sigInit bool
}

func (l *LinkTracker) Init(s *state.State) error {
	l.probes = make(map[state.NodeId]*probeState)
	s.RepeatTask(probeNeighbours, state.ProbeDelay)
	s.RepeatTask(gcNeighbours, state.NeighbourDeadThreshold)
	return nil
}

func (l *LinkTracker) Cleanup(s *state.State) error {
	return nil
}

// ObserveNeighbour records that we heard from a node directly, creating the
// neighbour record if this is the first contact.
func (l *LinkTracker) ObserveNeighbour(s *state.State, id state.NodeId, rssi int16) *state.Neighbour {
	n := s.GetNeighbour(id)
	if n == nil {
		s.Log.Info("new neighbour heard", "id", id, "rssi", rssi)
		n = &state.Neighbour{
			Id:     id,
			Routes: make(map[state.NodeId]state.AdvRoute),
		}
		s.Neighbours = append(s.Neighbours, n)
		l.probes[id] = &probeState{}
	}
	n.LastHeard = s.Clock.Now()
	if ps := l.probes[id]; ps != nil && rssi != 0 {
		if !ps.sigInit {
			ps.rssiEMA = float64(rssi)
			ps.sigInit = true
		}
	}
	return n
}

// ReportLinkQuality folds one measurement into the neighbour's smoothed
// statistics. A move in reliability beyond the delta threshold re-evaluates
// every route using this neighbour as next hop; a drop below the low-water
// mark is reported to the congestion manager as advisory.
func (l *LinkTracker) ReportLinkQuality(s *state.State, id state.NodeId, reliability, packetLoss float64, signalStrength int16) {
	n := l.ObserveNeighbour(s, id, signalStrength)
	now := s.Clock.Now()

	alpha := state.LinkSmoothing
	lq := &n.Link
	prev := lq.Reliability
	if lq.LastUpdated.IsZero() {
		lq.Reliability = clamp01f(reliability)
		lq.PacketLoss = clamp01f(packetLoss)
		lq.SignalStrength = signalStrength
	} else {
		lq.Reliability = clamp01f(alpha*reliability + (1-alpha)*lq.Reliability)
		lq.PacketLoss = clamp01f(alpha*packetLoss + (1-alpha)*lq.PacketLoss)
		lq.SignalStrength = int16(alpha*float64(signalStrength) + (1-alpha)*float64(lq.SignalStrength))
	}
	lq.LastUpdated = now

	if state.DBG_log_probes {
		s.Log.Debug("link quality", "neigh", id, "rel", lq.Reliability, "loss", lq.PacketLoss, "dbm", lq.SignalStrength)
	}

	if lq.Reliability < state.LinkLowWater {
		s.Log.Warn("link below reliability low-water mark", "neigh", id, "rel", lq.Reliability, "err", ErrLinkUnreliable)
		Get[*Congestion](s).FlagUnreliableLink(s, id)
	}

	if math.Abs(lq.Reliability-prev) > state.LinkDeltaThreshold {
		Get[*Engine](s).RefreshViaNextHop(s, id)
	}
}

// LinkCost is the composite edge cost for one direct neighbour. It grows
// with loss and unreliability and shrinks with signal strength. Unknown or
// never-measured neighbours cost Inf.
func (l *LinkTracker) LinkCost(s *state.State, id state.NodeId) float32 {
	n := s.GetNeighbour(id)
	if n == nil || n.Link.LastUpdated.IsZero() {
		return state.Inf
	}
	lq := n.Link
	span := float64(state.SignalCeil - state.SignalFloor)
	sigNorm := clamp01f(float64(lq.SignalStrength-state.SignalFloor) / span)
	cost := 1 + 4*(1-lq.Reliability) + 4*lq.PacketLoss + 2*(1-sigNorm)
	return float32(cost)
}

// LinkReliability returns the smoothed delivery ratio, or 0 for unknown
// neighbours.
func (l *LinkTracker) LinkReliability(s *state.State, id state.NodeId) float32 {
	n := s.GetNeighbour(id)
	if n == nil || n.Link.LastUpdated.IsZero() {
		return 0
	}
	return float32(n.Link.Reliability)
}

func (l *LinkTracker) handleProbe(s *state.State, from state.NodeId, rssi int16, p link.LinkProbe) {
	l.ObserveNeighbour(s, from, rssi)
	err := Get[*Radio](s).Send(s, from, link.LinkProbeAck{Seq: p.Seq})
	if err != nil {
		s.Log.Debug("probe ack send failed", "neigh", from, "error", err)
	}
}

func (l *LinkTracker) handleProbeAck(s *state.State, from state.NodeId, rssi int16, _ link.LinkProbeAck) {
	l.ObserveNeighbour(s, from, rssi)
	ps := l.probes[from]
	if ps == nil {
		return
	}
	ps.acked++
	if !ps.sigInit {
		ps.rssiEMA = float64(rssi)
		ps.sigInit = true
	} else {
		ps.rssiEMA = state.LinkSmoothing*float64(rssi) + (1-state.LinkSmoothing)*ps.rssiEMA
	}
}

// probeNeighbours closes out the previous probe window for every neighbour,
// reports the measured delivery ratio, and sends the next probe.
func probeNeighbours(s *state.State) error {
	l := Get[*LinkTracker](s)
	for _, n := range s.Neighbours {
		ps := l.probes[n.Id]
		if ps == nil {
			ps = &probeState{}
			l.probes[n.Id] = ps
		}
		if ps.sent > 0 {
			ratio := float64(ps.acked) / float64(ps.sent)
			l.ReportLinkQuality(s, n.Id, ratio, 1-ratio, int16(ps.rssiEMA))
		}
		ps.sent, ps.acked = 0, 0

		l.seq++
		if err := Get[*Radio](s).Send(s, n.Id, link.LinkProbe{Seq: l.seq}); err != nil {
			s.Log.Debug("probe send failed", "neigh", n.Id, "error", err)
			continue
		}
		ps.sent++
	}
	return nil
}

// gcNeighbours drops neighbours that have gone silent and the routes that
// depended on them.
func gcNeighbours(s *state.State) error {
	l := Get[*LinkTracker](s)
	now := s.Clock.Now()
	dead := make([]state.NodeId, 0)
	for _, n := range s.Neighbours {
		if now.Sub(n.LastHeard) > state.NeighbourDeadThreshold {
			dead = append(dead, n.Id)
		}
	}
	for _, id := range dead {
		s.Log.Info("neighbour went silent, dropping", "id", id)
		s.RemoveNeighbour(id)
		delete(l.probes, id)
	}
	if len(dead) > 0 {
		pruned := Get[*RouteTable](s).Prune(s)
		Get[*Coordinator](s).Stats.RoutesPruned += uint64(pruned)
	}
	return nil
}
