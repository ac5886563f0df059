package core

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jellydator/ttlcache/v3"

	"github.com/thewriterben/wildcam-mesh/link"
	"github.com/thewriterben/wildcam-mesh/state"
)

// DiscoveryState is the lifecycle of one on-demand route search.
type DiscoveryState int

const (
	DiscoveryIdle DiscoveryState = iota
	Discovering
	DiscoveryResolved
	DiscoveryTimedOut
)

type dedupKey struct {
	Origin    state.NodeId
	RequestID uint32
}

type pendingDiscovery struct {
	id        uint32
	deadline  time.Time
	attempt   int
	resolved  bool
	bestMetric float32
	callbacks []func(error)
}

// Discovery runs the hop-limited broadcast search for destinations the table
// does not know. It never blocks: suspension is pending state plus a clock
// deadline checked on the sweep tick.
type Discovery struct {
	pending map[state.NodeId]*pendingDiscovery
	// seen deduplicates request floods and remembers the reverse hop every
	// reply retraces.
	seen *ttlcache.Cache[dedupKey, state.NodeId]
	// failed rate-limits rediscovery of destinations that just timed out.
	// Fixed capacity keeps memory bounded on the camera hardware.
	failed  *lru.Cache[state.NodeId, time.Time]
	nextReq uint32
}

func (d *Discovery) Init(s *state.State) error {
	d.pending = make(map[state.NodeId]*pendingDiscovery)
	d.seen = ttlcache.New[dedupKey, state.NodeId](
		ttlcache.WithTTL[dedupKey, state.NodeId](state.DiscoveryDedupTTL),
		ttlcache.WithDisableTouchOnHit[dedupKey, state.NodeId](),
	)
	go d.seen.Start()
	var err error
	d.failed, err = lru.New[state.NodeId, time.Time](128)
	if err != nil {
		return err
	}
	s.RepeatTask(sweepDiscoveries, state.DiscoverySweep)
	return nil
}

func (d *Discovery) Cleanup(s *state.State) error {
	d.seen.Stop()
	for dest := range d.pending {
		d.finish(s, dest, ErrDiscoveryCancelled)
	}
	return nil
}

// State reports the machine state for a destination.
func (d *Discovery) State(dest state.NodeId) DiscoveryState {
	p, ok := d.pending[dest]
	if !ok {
		return DiscoveryIdle
	}
	if p.resolved {
		return DiscoveryResolved
	}
	return Discovering
}

// Discover starts (or restarts) a route search for dest. cb fires exactly
// once, on the core goroutine: nil when a route was installed, otherwise
// ErrDiscoveryTimeout or ErrDiscoveryCancelled. A fresh table entry
// short-circuits without touching the radio. A newer discovery for the same
// destination supersedes the previous attempt and invalidates its callback.
func (d *Discovery) Discover(s *state.State, dest state.NodeId, cb func(error)) {
	if cb == nil {
		cb = func(error) {}
	}
	if dest == s.Id || !dest.Valid() {
		cb(ErrInvalidRoute)
		return
	}

	table := Get[*RouteTable](s)
	if entry := table.FindRoute(dest); entry != nil && entry.Metric != state.Inf &&
		s.Clock.Now().Sub(entry.LastUsed) <= state.RouteStaleTTL {
		cb(nil)
		return
	}

	if when, ok := d.failed.Get(dest); ok {
		if s.Clock.Now().Sub(when) < state.DiscoveryFailBackoff {
			cb(ErrDiscoveryTimeout)
			return
		}
		d.failed.Remove(dest)
	}

	if prev, ok := d.pending[dest]; ok {
		// Superseded: the earlier caller's callback is invalidated.
		for _, old := range prev.callbacks {
			old(ErrDiscoveryCancelled)
		}
	}

	d.nextReq++
	p := &pendingDiscovery{
		id:         d.nextReq,
		attempt:    0,
		bestMetric: state.Inf,
		callbacks:  []func(error){cb},
	}
	d.pending[dest] = p
	Get[*Coordinator](s).Stats.RouteDiscoveries++
	d.flood(s, dest, p)
}

// Cancel aborts a pending discovery. Returns false if none was pending.
func (d *Discovery) Cancel(s *state.State, dest state.NodeId) bool {
	if _, ok := d.pending[dest]; !ok {
		return false
	}
	d.finish(s, dest, ErrDiscoveryCancelled)
	return true
}

func (d *Discovery) flood(s *state.State, dest state.NodeId, p *pendingDiscovery) {
	timeout := s.MeshCfg.DiscoveryTimeout << uint(p.attempt)
	p.deadline = s.Clock.Now().Add(timeout)

	req := link.DiscoveryRequest{
		RequestID:   p.id,
		Origin:      s.Id,
		Target:      dest,
		HopsLeft:    s.MeshCfg.MaxHops,
		HopCount:    0,
		Metric:      0,
		Reliability: 1,
	}
	// Mark our own flood as seen so echoes are dropped.
	d.seen.Set(dedupKey{Origin: s.Id, RequestID: p.id}, s.Id, ttlcache.DefaultTTL)

	s.Log.Debug("discovery flood", "dest", dest, "attempt", p.attempt, "deadline", timeout)
	if err := Get[*Radio](s).Broadcast(s, req, s.MeshCfg.MaxHops); err != nil {
		s.Log.Warn("discovery broadcast failed", "dest", dest, "error", err)
	}
}

func (d *Discovery) finish(s *state.State, dest state.NodeId, err error) {
	p, ok := d.pending[dest]
	if !ok {
		return
	}
	delete(d.pending, dest)
	for _, cb := range p.callbacks {
		cb(err)
	}
}

// sweepDiscoveries advances every pending machine past its deadline:
// resolved windows are closed, timed-out attempts retry with backoff until
// the retry budget is spent.
func sweepDiscoveries(s *state.State) error {
	d := Get[*Discovery](s)
	now := s.Clock.Now()
	for dest, p := range d.pending {
		if now.Before(p.deadline) {
			continue
		}
		if p.resolved {
			// Improvement window over; discovery is complete.
			delete(d.pending, dest)
			continue
		}
		p.attempt++
		if p.attempt >= s.MeshCfg.MaxRetries {
			s.Log.Info("discovery exhausted retries", "dest", dest)
			Get[*Coordinator](s).Stats.DiscoveryTimeouts++
			d.failed.Add(dest, now)
			d.finish(s, dest, ErrDiscoveryTimeout)
			continue
		}
		d.flood(s, dest, p)
	}
	return nil
}

// handleRequest processes an inbound discovery flood: answer it if we are
// the target or hold a fresh route to it, otherwise relay with a decremented
// hop budget. Duplicate floods are dropped, and the first sender is
// remembered as the reverse hop for the reply.
func (d *Discovery) handleRequest(s *state.State, from state.NodeId, rssi int16, req link.DiscoveryRequest) {
	tracker := Get[*LinkTracker](s)
	tracker.ObserveNeighbour(s, from, rssi)

	if req.Origin == s.Id {
		return
	}
	key := dedupKey{Origin: req.Origin, RequestID: req.RequestID}
	if d.seen.Has(key) {
		return
	}
	d.seen.Set(key, from, ttlcache.DefaultTTL)

	edge := tracker.LinkCost(s, from)
	rel := tracker.LinkReliability(s, from)
	if edge == state.Inf {
		// The link exists but has not been measured yet; assume a
		// conservative cost rather than stalling the whole search.
		edge = state.UnknownLinkCost
		rel = state.UnknownLinkReliability
	}
	hops := req.HopCount + 1
	if hops > s.MeshCfg.MaxHops {
		return
	}
	metric := state.AddMetric(req.Metric, state.AddMetric(edge, state.HopCost))
	pathRel := req.Reliability * rel

	reply := func(extraHops uint8, extraMetric, extraRel float32) {
		rep := link.DiscoveryReply{
			RequestID:   req.RequestID,
			Origin:      req.Origin,
			Target:      req.Target,
			HopCount:    hops + extraHops,
			Metric:      state.AddMetric(metric, extraMetric),
			Reliability: pathRel * extraRel,
		}
		if err := Get[*Radio](s).Send(s, from, rep); err != nil {
			s.Log.Debug("discovery reply send failed", "to", from, "error", err)
		}
	}

	if req.Target == s.Id {
		reply(0, 0, 1)
		return
	}

	if entry := Get[*RouteTable](s).FindRoute(req.Target); entry != nil &&
		entry.Metric != state.Inf &&
		s.Clock.Now().Sub(entry.LastUsed) <= state.RouteStaleTTL &&
		hops+entry.HopCount <= s.MeshCfg.MaxHops {
		// Answer from the table on the destination's behalf.
		reply(entry.HopCount, entry.Metric, entry.Reliability)
		return
	}

	if req.HopsLeft <= 1 {
		return
	}
	fwd := req
	fwd.HopsLeft--
	fwd.HopCount = hops
	fwd.Metric = metric
	fwd.Reliability = pathRel
	if err := Get[*Radio](s).Broadcast(s, fwd, fwd.HopsLeft); err != nil {
		s.Log.Debug("discovery relay failed", "error", err)
	}
}

// handleReply either resolves our own pending discovery or relays the reply
// one hop further along the recorded reverse path.
func (d *Discovery) handleReply(s *state.State, from state.NodeId, rssi int16, rep link.DiscoveryReply) {
	Get[*LinkTracker](s).ObserveNeighbour(s, from, rssi)

	if rep.Origin != s.Id {
		prev := d.seen.Get(dedupKey{Origin: rep.Origin, RequestID: rep.RequestID})
		if prev == nil || prev.Value() == s.Id {
			return // reverse path expired or loops back to us
		}
		if err := Get[*Radio](s).Send(s, prev.Value(), rep); err != nil {
			s.Log.Debug("reply relay failed", "to", prev.Value(), "error", err)
		}
		return
	}

	p, ok := d.pending[rep.Target]
	if !ok || p.id != rep.RequestID {
		return // no longer pending, or an older attempt's reply
	}
	if rep.Metric == state.Inf || rep.HopCount > s.MeshCfg.MaxHops {
		return
	}
	if p.resolved && rep.Metric >= p.bestMetric {
		return // not an improvement within the window
	}

	entry := state.RouteEntry{
		Destination: rep.Target,
		NextHop:     from,
		HopCount:    rep.HopCount,
		Metric:      rep.Metric,
		Reliability: rep.Reliability,
		LastUsed:    s.Clock.Now(),
	}
	if prev := Get[*RouteTable](s).FindRoute(rep.Target); prev != nil {
		entry.Utilization = prev.Utilization
		entry.WildlifePriority = prev.WildlifePriority
	}
	if err := Get[*RouteTable](s).AddRoute(s, entry); err != nil {
		s.Log.Warn("discovered route rejected", "dest", rep.Target, "error", err)
		return
	}
	p.bestMetric = rep.Metric

	if !p.resolved {
		// First valid reply wins; later, strictly better replies within the
		// same window may still upgrade the installed route.
		p.resolved = true
		for _, cb := range p.callbacks {
			cb(nil)
		}
		p.callbacks = nil
	}
}
