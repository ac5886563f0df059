package core

import (
	"slices"

	"github.com/thewriterben/wildcam-mesh/state"
)

// Congestion watches route utilization and moves load off overloaded relays
// when an acceptable alternative exists. It also owns the periodic table
// maintenance tick.
type Congestion struct {
	// monitored holds congested destinations that had no acceptable
	// alternative; they are re-checked on every tick.
	monitored map[state.NodeId]struct{}
	// unreliable collects advisory link reports from the tracker.
	unreliable map[state.NodeId]struct{}
}

func (c *Congestion) Init(s *state.State) error {
	c.monitored = make(map[state.NodeId]struct{})
	c.unreliable = make(map[state.NodeId]struct{})
	s.RepeatTask(maintainRoutes, state.MaintenanceDelay)
	return nil
}

func (c *Congestion) Cleanup(s *state.State) error {
	return nil
}

// FlagUnreliableLink records an advisory ErrLinkUnreliable report. The next
// maintenance tick re-evaluates routes relaying through that neighbour.
func (c *Congestion) FlagUnreliableLink(s *state.State, id state.NodeId) {
	c.unreliable[id] = struct{}{}
}

// RecordTraffic accounts bytes sent toward dest against the route's send
// budget. Utilization decays on the maintenance tick, so sustained traffic
// is what pushes a route over the congestion threshold.
func (c *Congestion) RecordTraffic(s *state.State, dest state.NodeId, bytes int) {
	table := Get[*RouteTable](s)
	entry := table.FindRoute(dest)
	if entry == nil {
		return
	}
	entry.Utilization = clamp01(entry.Utilization + float32(bytes)/float32(s.MeshCfg.LinkBudget))
	entry.LastUsed = s.Clock.Now()
}

// CongestedRoutes returns the destinations whose utilization exceeds the
// configured threshold, sorted for deterministic iteration.
func (c *Congestion) CongestedRoutes(s *state.State) []state.NodeId {
	out := make([]state.NodeId, 0)
	for _, entry := range Get[*RouteTable](s).Routes() {
		if entry.Utilization > s.MeshCfg.CongestionThreshold {
			out = append(out, entry.Destination)
		}
	}
	slices.Sort(out)
	return out
}

// OptimizeRoutes tries to shift each congested route onto a less loaded
// next hop within the metric tolerance. Routes with no acceptable
// alternative stay put and are flagged for monitoring.
func (c *Congestion) OptimizeRoutes(s *state.State) {
	engine := Get[*Engine](s)
	table := Get[*RouteTable](s)
	coord := Get[*Coordinator](s)

	for _, dest := range c.CongestedRoutes(s) {
		entry := table.FindRoute(dest)
		if entry == nil {
			continue
		}
		alt, ok := engine.AlternateCandidate(s, dest, entry.NextHop)
		if !ok || alt.Metric > entry.Metric*(1+s.MeshCfg.RebalanceTolerance) {
			c.monitored[dest] = struct{}{}
			continue
		}
		altUtil := nextHopUtilization(table, alt.NextHop)
		if altUtil >= entry.Utilization {
			c.monitored[dest] = struct{}{}
			continue
		}

		moved := *entry
		moved.NextHop = alt.NextHop
		moved.HopCount = alt.HopCount
		moved.Metric = alt.Metric
		moved.Reliability = alt.Reliability
		moved.Utilization = altUtil
		if err := table.AddRoute(s, moved); err != nil {
			s.Log.Warn("rebalance produced an invalid route", "dest", dest, "error", err)
			continue
		}
		delete(c.monitored, dest)
		coord.Stats.LoadBalanceOperations++
		s.Log.Info("rebalanced congested route", "dest", dest, "old_nh", entry.NextHop, "new_nh", alt.NextHop)
	}
}

func nextHopUtilization(table *RouteTable, nh state.NodeId) float32 {
	var u float32
	for _, e := range table.Routes() {
		if e.NextHop == nh && e.Utilization > u {
			u = e.Utilization
		}
	}
	return u
}

// maintainRoutes is the periodic maintenance tick: decay utilization, prune
// stale entries, refresh metrics, then rebalance.
func maintainRoutes(s *state.State) error {
	c := Get[*Congestion](s)
	table := Get[*RouteTable](s)

	for _, entry := range table.Routes() {
		e := table.FindRoute(entry.Destination)
		e.Utilization *= state.UtilizationDecay
	}

	pruned := table.Prune(s)
	Get[*Coordinator](s).Stats.RoutesPruned += uint64(pruned)

	engine := Get[*Engine](s)
	for id := range c.unreliable {
		engine.RefreshViaNextHop(s, id)
		delete(c.unreliable, id)
	}
	engine.RefreshAll(s)
	c.OptimizeRoutes(s)
	return nil
}
