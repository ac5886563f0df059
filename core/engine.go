package core

import (
	"github.com/thewriterben/wildcam-mesh/link"
	"github.com/thewriterben/wildcam-mesh/state"
)

// Engine computes and ranks candidate paths from the neighbour set and their
// advertised reachability, and keeps the routing table converged without
// flapping. It also publishes the local table to neighbours on a gossip
// cadence, which is where every node's adverts come from.
type Engine struct{}

func (e *Engine) Init(s *state.State) error {
	s.RepeatTask(announceRoutes, state.AnnounceDelay)
	return nil
}

func (e *Engine) Cleanup(s *state.State) error {
	return nil
}

func (e *Engine) view(s *state.State) engineView {
	tracker := Get[*LinkTracker](s)
	table := Get[*RouteTable](s)
	return engineView{
		Self:       s.Id,
		MaxHops:    s.MeshCfg.MaxHops,
		Now:        s.Clock.Now(),
		Neighbours: s.Neighbours,
		LinkCost: func(id state.NodeId) float32 {
			return tracker.LinkCost(s, id)
		},
		LinkReliability: func(id state.NodeId) float32 {
			return tracker.LinkReliability(s, id)
		},
		Utilization: func(nh state.NodeId) float32 {
			var u float32
			for _, e := range table.Routes() {
				if e.NextHop == nh && e.Utilization > u {
					u = e.Utilization
				}
			}
			return u
		},
	}
}

// BestCandidate runs the path search for one destination. It never consults
// the table, so it cannot return a stale entry.
func (e *Engine) BestCandidate(s *state.State, dest state.NodeId) (pathCandidate, bool) {
	Get[*Coordinator](s).Stats.RoutesCalculated++
	priority := false
	if entry := Get[*RouteTable](s).FindRoute(dest); entry != nil {
		priority = entry.WildlifePriority
	}
	cand, ok := selectBest(candidatesFor(e.view(s), dest), priority)
	if state.DBG_log_engine {
		s.Log.Debug("path search", "dest", dest, "found", ok, "cand", cand)
	}
	return cand, ok
}

// ComputeRoute is the public shortest-path entry point. It reports
// ErrRouteNotFound when the destination is unreachable within the hop bound.
func (e *Engine) ComputeRoute(s *state.State, dest state.NodeId) (state.RouteEntry, error) {
	cand, ok := e.BestCandidate(s, dest)
	if !ok {
		return state.RouteEntry{}, ErrRouteNotFound
	}
	return state.RouteEntry{
		Destination: dest,
		NextHop:     cand.NextHop,
		HopCount:    cand.HopCount,
		Metric:      cand.Metric,
		Reliability: cand.Reliability,
		LastUsed:    s.Clock.Now(),
	}, nil
}

// AlternateCandidate searches for a path that avoids the given next hop.
// Used by congestion rebalancing.
func (e *Engine) AlternateCandidate(s *state.State, dest, avoid state.NodeId) (pathCandidate, bool) {
	Get[*Coordinator](s).Stats.RoutesCalculated++
	cands := candidatesFor(e.view(s), dest)
	filtered := cands[:0]
	for _, c := range cands {
		if c.NextHop != avoid {
			filtered = append(filtered, c)
		}
	}
	priority := false
	if entry := Get[*RouteTable](s).FindRoute(dest); entry != nil {
		priority = entry.WildlifePriority
	}
	return selectBest(filtered, priority)
}

// Refresh recomputes the path for an already-tracked destination and
// installs the result if it should replace what is there. An existing usable
// route is never dropped until a strictly better one is confirmed.
func (e *Engine) Refresh(s *state.State, dest state.NodeId) {
	table := Get[*RouteTable](s)
	existing := table.FindRoute(dest)
	if existing == nil {
		return // table is demand-filled; nothing to refresh
	}

	cand, ok := e.BestCandidate(s, dest)
	if !ok {
		return // keep the current route until something better is confirmed
	}

	usable := existing.Metric != state.Inf &&
		Get[*LinkTracker](s).LinkCost(s, existing.NextHop) != state.Inf
	if !shouldSwitch(existing, cand, usable) {
		if cand.NextHop == existing.NextHop {
			existing.Metric = cand.Metric
			existing.HopCount = cand.HopCount
			existing.Reliability = cand.Reliability
		}
		return
	}

	if cand.NextHop != existing.NextHop && state.DBG_log_changes {
		s.Log.Debug("route switch", "dest", dest, "old_nh", existing.NextHop, "new_nh", cand.NextHop, "metric", cand.Metric)
	}
	entry := *existing
	entry.NextHop = cand.NextHop
	entry.HopCount = cand.HopCount
	entry.Metric = cand.Metric
	entry.Reliability = cand.Reliability
	if err := table.AddRoute(s, entry); err != nil {
		s.Log.Warn("refresh produced an invalid route", "dest", dest, "error", err)
	}
}

// RefreshViaNextHop re-evaluates every installed route that relays through
// the given neighbour. Called when that link's quality moves materially.
func (e *Engine) RefreshViaNextHop(s *state.State, nh state.NodeId) {
	for _, entry := range Get[*RouteTable](s).Routes() {
		if entry.NextHop == nh {
			e.Refresh(s, entry.Destination)
		}
	}
}

func (e *Engine) RefreshAll(s *state.State) {
	for _, entry := range Get[*RouteTable](s).Routes() {
		e.Refresh(s, entry.Destination)
	}
}

// handleAnnounce ingests a neighbour's table gossip: it refreshes the
// neighbour's advert set, keeps the direct route to that neighbour current,
// and re-evaluates any installed route the announcement could improve.
func (e *Engine) handleAnnounce(s *state.State, from state.NodeId, rssi int16, f link.RouteAnnounce) {
	tracker := Get[*LinkTracker](s)
	n := tracker.ObserveNeighbour(s, from, rssi)

	expire := s.Clock.Now().Add(state.AdvertExpiry)
	for _, adv := range f.Adverts {
		if adv.Destination == s.Id {
			continue
		}
		n.Routes[adv.Destination] = state.AdvRoute{
			Metric:      adv.Metric,
			HopCount:    adv.HopCount,
			Reliability: adv.Reliability,
			Expire:      expire,
		}
	}

	// Direct 1-hop route to the announcing neighbour.
	edge := tracker.LinkCost(s, from)
	if edge != state.Inf {
		table := Get[*RouteTable](s)
		entry := state.RouteEntry{
			Destination: from,
			NextHop:     from,
			HopCount:    1,
			Metric:      state.AddMetric(edge, state.HopCost),
			Reliability: tracker.LinkReliability(s, from),
		}
		if prev := table.FindRoute(from); prev != nil {
			entry.Utilization = prev.Utilization
			entry.WildlifePriority = prev.WildlifePriority
			entry.LastUsed = prev.LastUsed
		}
		if err := table.AddRoute(s, entry); err != nil {
			s.Log.Warn("direct route rejected", "neigh", from, "error", err)
		}
	}

	for _, adv := range f.Adverts {
		if Get[*RouteTable](s).FindRoute(adv.Destination) != nil && adv.Destination != from {
			e.Refresh(s, adv.Destination)
		}
	}
}

// announceRoutes is the periodic table gossip tick.
func announceRoutes(s *state.State) error {
	adverts := []link.Advert{{
		Destination: s.Id,
		Metric:      0,
		HopCount:    0,
		Reliability: 1,
	}}
	for _, entry := range Get[*RouteTable](s).Routes() {
		if entry.Metric == state.Inf {
			continue
		}
		adverts = append(adverts, link.Advert{
			Destination: entry.Destination,
			Metric:      entry.Metric,
			HopCount:    entry.HopCount,
			Reliability: entry.Reliability,
		})
	}
	return Get[*Radio](s).Broadcast(s, link.RouteAnnounce{Adverts: adverts}, 1)
}
