package core

import (
	"time"

	"github.com/thewriterben/wildcam-mesh/state"
)

// engineView is the snapshot the path search runs against. Keeping it as
// plain data + closures lets the algorithm be exercised without a runtime.
type engineView struct {
	Self            state.NodeId
	MaxHops         uint8
	Now             time.Time
	Neighbours      []*state.Neighbour
	LinkCost        func(state.NodeId) float32
	LinkReliability func(state.NodeId) float32
	// Utilization reports the current load on a next hop, feeding the
	// congestion penalty.
	Utilization func(state.NodeId) float32
}

type pathCandidate struct {
	NextHop     state.NodeId
	HopCount    uint8
	Metric      float32
	Reliability float32
}

func congestionPenalty(utilization float32) float32 {
	return state.CongestionPenaltyWeight * clamp01(utilization)
}

// candidatesFor enumerates every loop-free path to dest implied by the
// neighbour set: the direct link, plus one candidate per neighbour advert.
func candidatesFor(v engineView, dest state.NodeId) []pathCandidate {
	out := make([]pathCandidate, 0, len(v.Neighbours))
	for _, n := range v.Neighbours {
		edge := v.LinkCost(n.Id)
		if edge == state.Inf {
			continue
		}
		edge = state.AddMetric(edge, congestionPenalty(v.Utilization(n.Id)))
		edge = state.AddMetric(edge, state.HopCost)
		linkRel := v.LinkReliability(n.Id)

		if n.Id == dest {
			out = append(out, pathCandidate{
				NextHop:     n.Id,
				HopCount:    1,
				Metric:      edge,
				Reliability: linkRel,
			})
			continue
		}

		adv, ok := n.Routes[dest]
		if !ok || v.Now.After(adv.Expire) || adv.Metric == state.Inf {
			continue
		}
		hops := adv.HopCount + 1
		if hops > v.MaxHops {
			continue
		}
		out = append(out, pathCandidate{
			NextHop:     n.Id,
			HopCount:    hops,
			Metric:      state.AddMetric(edge, adv.Metric),
			Reliability: linkRel * adv.Reliability,
		})
	}
	return out
}

// betterCandidate orders candidates: lower metric wins; ties break on fewer
// hops, then higher aggregate reliability, then lowest next-hop id, so
// identical inputs always select identically.
func betterCandidate(a, b pathCandidate) bool {
	if a.Metric != b.Metric {
		return a.Metric < b.Metric
	}
	if a.HopCount != b.HopCount {
		return a.HopCount < b.HopCount
	}
	if a.Reliability != b.Reliability {
		return a.Reliability > b.Reliability
	}
	return a.NextHop < b.NextHop
}

// selectBest picks the winning candidate. For wildlife-priority
// destinations it will pay up to PriorityCostFactor times the best metric
// for a materially more reliable path.
func selectBest(cands []pathCandidate, priority bool) (pathCandidate, bool) {
	var best pathCandidate
	found := false
	for _, c := range cands {
		if c.Metric == state.Inf {
			continue
		}
		if !found || betterCandidate(c, best) {
			best = c
			found = true
		}
	}
	if !found || !priority {
		return best, found
	}

	// Reliability-biased pass within the bounded cost multiplier.
	chosen := best
	for _, c := range cands {
		if c.Metric == state.Inf || c.Metric > best.Metric*state.PriorityCostFactor {
			continue
		}
		if c.Reliability >= chosen.Reliability+state.PriorityReliabilityGain ||
			(c.Reliability > chosen.Reliability && c.NextHop == chosen.NextHop) {
			chosen = c
		}
	}
	if chosen.Reliability < best.Reliability+state.PriorityReliabilityGain {
		return best, true
	}
	return chosen, true
}

// shouldSwitch guards against route flapping: an installed usable route is
// only replaced by a different next hop when the candidate is strictly
// better beyond the switch threshold.
func shouldSwitch(existing *state.RouteEntry, cand pathCandidate, usable bool) bool {
	if existing == nil || !usable {
		return true
	}
	if cand.NextHop == existing.NextHop {
		return true
	}
	return cand.Metric < existing.Metric*state.SwitchThreshold
}
