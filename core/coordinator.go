package core

import (
	"fmt"

	"github.com/thewriterben/wildcam-mesh/state"
)

// Coordinator is the top-level orchestrator and the façade the rest of the
// firmware calls. Its exported methods are safe from any goroutine; they
// dispatch onto the core loop. It also runs coordinator election and the
// periodic network health check.
type Coordinator struct {
	env         *state.Env
	Stats       state.MeshStatistics
	coordinator state.NodeId
}

func (c *Coordinator) Init(s *state.State) error {
	c.env = s.Env
	c.Stats.StartTime = s.Clock.Now()
	c.coordinator = c.elect(s)
	s.RepeatTask(checkNetworkHealth, state.HealthCheckDelay)
	return nil
}

func (c *Coordinator) Cleanup(s *state.State) error {
	return nil
}

// reachable is the node set election and health work from: ourselves, every
// live neighbour, and every destination the table can currently deliver to.
func (c *Coordinator) reachable(s *state.State) map[state.NodeId]bool {
	now := s.Clock.Now()
	set := map[state.NodeId]bool{s.Id: true}
	for _, n := range s.Neighbours {
		if now.Sub(n.LastHeard) <= state.NeighbourDeadThreshold {
			set[n.Id] = true
		}
	}
	for _, entry := range Get[*RouteTable](s).Routes() {
		if entry.Metric != state.Inf && now.Sub(entry.LastUsed) <= state.RouteStaleTTL {
			set[entry.Destination] = true
		}
	}
	return set
}

// elect picks the coordinator deterministically: the configured override if
// it is reachable, otherwise the lowest reachable NodeId. Ids are unique, so
// ties are impossible.
func (c *Coordinator) elect(s *state.State) state.NodeId {
	reachable := c.reachable(s)
	if o := s.MeshCfg.CoordinatorOverride; o.Valid() && reachable[o] {
		return o
	}
	best := s.Id
	for id := range reachable {
		if id < best {
			best = id
		}
	}
	return best
}

// ElectCoordinator re-runs election immediately and returns the result.
func (c *Coordinator) ElectCoordinator(s *state.State) state.NodeId {
	prev := c.coordinator
	c.coordinator = c.elect(s)
	if c.coordinator != prev {
		s.Log.Info("coordinator changed", "was", prev, "now", c.coordinator, "self", c.coordinator == s.Id)
	}
	return c.coordinator
}

// checkNetworkHealth is the periodic aggregate check: reachability ratio and
// mean link reliability, plus re-election when the sitting coordinator has
// dropped out of reach.
func checkNetworkHealth(s *state.State) error {
	c := Get[*Coordinator](s)
	reachable := c.reachable(s)

	ratio := 1.0
	if len(s.MeshCfg.Nodes) > 0 {
		ratio = float64(len(reachable)) / float64(len(s.MeshCfg.Nodes))
	}
	var relSum float64
	var relN int
	for _, n := range s.Neighbours {
		if !n.Link.LastUpdated.IsZero() {
			relSum += n.Link.Reliability
			relN++
		}
	}
	avgRel := 0.0
	if relN > 0 {
		avgRel = relSum / float64(relN)
	}
	s.Log.Debug("network health", "reachable", len(reachable), "ratio", ratio,
		"avg_link_rel", avgRel, "routes", Get[*RouteTable](s).Size())

	if !reachable[c.coordinator] {
		s.Log.Warn("coordinator unreachable, re-electing", "coordinator", c.coordinator)
	}
	// Election is deterministic on the reachable set, so re-running it every
	// tick converges all nodes onto the same coordinator as the topology
	// settles.
	c.ElectCoordinator(s)
	return nil
}

// --- façade, callable from any goroutine ---

// Route resolves the next hop toward dest, triggering discovery on a table
// miss. ErrRouteNotFound and ErrDiscoveryTimeout let the caller fall back to
// broadcast-only transmission.
func (c *Coordinator) Route(dest state.NodeId) (state.NodeId, error) {
	nh, err := c.env.DispatchWait(func(s *state.State) (any, error) {
		table := Get[*RouteTable](s)
		if entry := table.FindRoute(dest); entry != nil && entry.Metric != state.Inf &&
			s.Clock.Now().Sub(entry.LastUsed) <= state.RouteStaleTTL {
			table.Touch(s, dest)
			return entry.NextHop, nil
		}
		return state.NodeId(0), nil
	})
	if err != nil {
		return 0, err
	}
	if hop := nh.(state.NodeId); hop.Valid() {
		return hop, nil
	}

	done := make(chan error, 1)
	c.env.Dispatch(func(s *state.State) error {
		Get[*Discovery](s).Discover(s, dest, func(err error) {
			done <- err
		})
		return nil
	})
	select {
	case err := <-done:
		if err != nil {
			return 0, fmt.Errorf("routing to %s: %w", dest, err)
		}
	case <-c.env.Context.Done():
		return 0, c.env.Context.Err()
	}

	nh, err = c.env.DispatchWait(func(s *state.State) (any, error) {
		table := Get[*RouteTable](s)
		hop, ok := table.NextHop(dest)
		if !ok {
			return state.NodeId(0), ErrRouteNotFound
		}
		table.Touch(s, dest)
		return hop, nil
	})
	if err != nil {
		return 0, err
	}
	return nh.(state.NodeId), nil
}

// ReportLinkQuality feeds an externally measured link sample (for example
// from the MAC's own delivery accounting) into the tracker.
func (c *Coordinator) ReportLinkQuality(neighbor state.NodeId, reliability, packetLoss float64, signalStrength int16) {
	c.env.Dispatch(func(s *state.State) error {
		Get[*LinkTracker](s).ReportLinkQuality(s, neighbor, reliability, packetLoss, signalStrength)
		return nil
	})
}

func (c *Coordinator) PrioritizeWildlifeRoute(dest state.NodeId) error {
	_, err := c.env.DispatchWait(func(s *state.State) (any, error) {
		return nil, Get[*Priority](s).PrioritizeWildlifeRoute(s, dest)
	})
	return err
}

func (c *Coordinator) OptimizeForImageTransmission(dest state.NodeId, imageSizeBytes int) (bool, error) {
	res, err := c.env.DispatchWait(func(s *state.State) (any, error) {
		return Get[*Priority](s).OptimizeForImageTransmission(s, dest, imageSizeBytes), nil
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

// RecordTraffic accounts payload bytes the upper layer sent toward dest.
func (c *Coordinator) RecordTraffic(dest state.NodeId, bytes int) {
	c.env.Dispatch(func(s *state.State) error {
		Get[*Congestion](s).RecordTraffic(s, dest, bytes)
		return nil
	})
}

// RegisterWatcher subscribes to route-change events. Callbacks run on the
// core goroutine in table-mutation order; implementations must not block.
func (c *Coordinator) RegisterWatcher(w state.RouteWatcher) error {
	_, err := c.env.DispatchWait(func(s *state.State) (any, error) {
		Get[*RouteTable](s).Watch(w)
		return nil, nil
	})
	return err
}

func (c *Coordinator) Statistics() (state.MeshStatistics, error) {
	res, err := c.env.DispatchWait(func(s *state.State) (any, error) {
		return Get[*Coordinator](s).Stats, nil
	})
	if err != nil {
		return state.MeshStatistics{}, err
	}
	return res.(state.MeshStatistics), nil
}

func (c *Coordinator) ResetStatistics() error {
	_, err := c.env.DispatchWait(func(s *state.State) (any, error) {
		Get[*Coordinator](s).Stats.Reset(s.Clock.Now())
		return nil, nil
	})
	return err
}

// CoordinatorNode returns the currently elected coordinator.
func (c *Coordinator) CoordinatorNode() (state.NodeId, error) {
	res, err := c.env.DispatchWait(func(s *state.State) (any, error) {
		return Get[*Coordinator](s).coordinator, nil
	})
	if err != nil {
		return 0, err
	}
	return res.(state.NodeId), nil
}
