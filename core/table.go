package core

import (
	"github.com/thewriterben/wildcam-mesh/state"
)

// RouteTable keeps at most one entry per destination in a fixed-capacity
// arena sized at startup. The slot map avoids per-route heap churn, which
// matters on the camera hardware where the table lives for months.
type RouteTable struct {
	slots    []state.RouteEntry
	used     []bool
	index    map[state.NodeId]int
	free     []int
	watchers []state.RouteWatcher
}

func (t *RouteTable) Init(s *state.State) error {
	cap := s.MeshCfg.MaxRoutes
	t.slots = make([]state.RouteEntry, cap)
	t.used = make([]bool, cap)
	t.index = make(map[state.NodeId]int, cap)
	t.free = make([]int, 0, cap)
	for i := cap - 1; i >= 0; i-- {
		t.free = append(t.free, i)
	}
	return nil
}

func (t *RouteTable) Cleanup(s *state.State) error {
	return nil
}

func (t *RouteTable) Watch(w state.RouteWatcher) {
	t.watchers = append(t.watchers, w)
}

func validateEntry(s *state.State, e state.RouteEntry) error {
	if !e.Destination.Valid() || e.Destination == s.Id {
		return ErrInvalidRoute
	}
	if s.GetNeighbour(e.NextHop) == nil {
		return ErrInvalidRoute
	}
	if (e.HopCount == 1) != (e.NextHop == e.Destination) {
		return ErrInvalidRoute
	}
	return nil
}

// AddRoute installs e, overwriting any prior entry for the same destination.
// The replace is atomic with respect to the core loop: no reader ever
// observes a partially written entry.
func (t *RouteTable) AddRoute(s *state.State, e state.RouteEntry) error {
	if err := validateEntry(s, e); err != nil {
		return err
	}
	if e.LastUsed.IsZero() {
		e.LastUsed = s.Clock.Now()
	}

	idx, exists := t.index[e.Destination]
	if !exists {
		idx = t.allocSlot(s)
		t.index[e.Destination] = idx
	}
	t.slots[idx] = e
	t.used[idx] = true

	if state.DBG_log_table {
		s.Log.Debug("route installed", "dest", e.Destination, "nh", e.NextHop, "hops", e.HopCount, "metric", e.Metric)
	}
	for _, w := range t.watchers {
		w.OnRouteChanged(e.Destination, e.NextHop, e.HopCount)
	}
	return nil
}

// allocSlot returns a free slot, evicting the least recently used entry when
// the arena is full.
func (t *RouteTable) allocSlot(s *state.State) int {
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		return idx
	}
	victim := -1
	for i := range t.slots {
		if !t.used[i] {
			continue
		}
		if victim == -1 || t.slots[i].LastUsed.Before(t.slots[victim].LastUsed) {
			victim = i
		}
	}
	evicted := t.slots[victim].Destination
	delete(t.index, evicted)
	s.Log.Warn("route table full, evicting coldest entry", "dest", evicted)
	for _, w := range t.watchers {
		w.OnRouteRemoved(evicted)
	}
	return victim
}

// FindRoute returns the stored entry for destination, or nil. The pointer is
// only valid on the core goroutine and until the next table mutation.
func (t *RouteTable) FindRoute(destination state.NodeId) *state.RouteEntry {
	idx, ok := t.index[destination]
	if !ok {
		return nil
	}
	return &t.slots[idx]
}

func (t *RouteTable) NextHop(destination state.NodeId) (state.NodeId, bool) {
	if e := t.FindRoute(destination); e != nil {
		return e.NextHop, true
	}
	return 0, false
}

func (t *RouteTable) RemoveRoute(destination state.NodeId) bool {
	idx, ok := t.index[destination]
	if !ok {
		return false
	}
	delete(t.index, destination)
	t.used[idx] = false
	t.free = append(t.free, idx)
	for _, w := range t.watchers {
		w.OnRouteRemoved(destination)
	}
	return true
}

// Routes copies out every live entry. Order is not significant.
func (t *RouteTable) Routes() []state.RouteEntry {
	out := make([]state.RouteEntry, 0, len(t.index))
	for _, idx := range t.index {
		out = append(out, t.slots[idx])
	}
	return out
}

func (t *RouteTable) Size() int {
	return len(t.index)
}

// Touch refreshes LastUsed so active routes survive pruning.
func (t *RouteTable) Touch(s *state.State, destination state.NodeId) {
	if e := t.FindRoute(destination); e != nil {
		e.LastUsed = s.Clock.Now()
	}
}

// Prune drops entries that have not been used within the staleness TTL and
// entries whose next hop is no longer a known neighbour. Returns the number
// of routes dropped.
func (t *RouteTable) Prune(s *state.State) int {
	now := s.Clock.Now()
	doomed := make([]state.NodeId, 0)
	for dest, idx := range t.index {
		e := &t.slots[idx]
		if now.Sub(e.LastUsed) > state.RouteStaleTTL || s.GetNeighbour(e.NextHop) == nil {
			doomed = append(doomed, dest)
		}
	}
	for _, dest := range doomed {
		if state.DBG_log_table {
			s.Log.Debug("pruning route", "dest", dest)
		}
		t.RemoveRoute(dest)
	}
	return len(doomed)
}
