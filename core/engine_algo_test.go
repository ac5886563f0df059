package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thewriterben/wildcam-mesh/state"
)

// algoView builds an engineView over plain maps so the path search can be
// exercised without a runtime.
func algoView(now time.Time, neighbours []*state.Neighbour, costs map[state.NodeId]float32, rels map[state.NodeId]float32, utils map[state.NodeId]float32) engineView {
	return engineView{
		Self:       0xaaaaaaaa,
		MaxHops:    5,
		Now:        now,
		Neighbours: neighbours,
		LinkCost: func(id state.NodeId) float32 {
			if c, ok := costs[id]; ok {
				return c
			}
			return state.Inf
		},
		LinkReliability: func(id state.NodeId) float32 {
			return rels[id]
		},
		Utilization: func(id state.NodeId) float32 {
			return utils[id]
		},
	}
}

func neighbourWith(id state.NodeId, adverts map[state.NodeId]state.AdvRoute) *state.Neighbour {
	if adverts == nil {
		adverts = map[state.NodeId]state.AdvRoute{}
	}
	return &state.Neighbour{Id: id, Routes: adverts}
}

func TestCandidatesDirectAndAdvertised(t *testing.T) {
	now := time.Unix(1000, 0)
	dest := state.NodeId(0x11111111)
	relay := state.NodeId(0x22222222)

	v := algoView(now,
		[]*state.Neighbour{
			neighbourWith(dest, nil),
			neighbourWith(relay, map[state.NodeId]state.AdvRoute{
				dest: {Metric: 2, HopCount: 1, Reliability: 0.9, Expire: now.Add(time.Minute)},
			}),
		},
		map[state.NodeId]float32{dest: 4, relay: 1.5},
		map[state.NodeId]float32{dest: 0.7, relay: 0.95},
		nil,
	)

	cands := candidatesFor(v, dest)
	require.Len(t, cands, 2)

	byNH := map[state.NodeId]pathCandidate{}
	for _, c := range cands {
		byNH[c.NextHop] = c
	}

	direct := byNH[dest]
	assert.Equal(t, uint8(1), direct.HopCount)
	assert.InDelta(t, 4+state.HopCost, direct.Metric, 1e-6)
	assert.InDelta(t, 0.7, direct.Reliability, 1e-6)

	relayed := byNH[relay]
	assert.Equal(t, uint8(2), relayed.HopCount)
	assert.InDelta(t, 1.5+state.HopCost+2, relayed.Metric, 1e-6)
	assert.InDelta(t, 0.95*0.9, relayed.Reliability, 1e-6)
}

func TestCandidatesFiltering(t *testing.T) {
	now := time.Unix(1000, 0)
	dest := state.NodeId(0x11111111)

	expired := neighbourWith(0x02, map[state.NodeId]state.AdvRoute{
		dest: {Metric: 1, HopCount: 1, Reliability: 1, Expire: now.Add(-time.Second)},
	})
	tooFar := neighbourWith(0x03, map[state.NodeId]state.AdvRoute{
		dest: {Metric: 1, HopCount: 5, Reliability: 1, Expire: now.Add(time.Minute)},
	})
	unmeasured := neighbourWith(0x04, map[state.NodeId]state.AdvRoute{
		dest: {Metric: 1, HopCount: 1, Reliability: 1, Expire: now.Add(time.Minute)},
	})
	poisoned := neighbourWith(0x05, map[state.NodeId]state.AdvRoute{
		dest: {Metric: state.Inf, HopCount: 1, Reliability: 1, Expire: now.Add(time.Minute)},
	})

	v := algoView(now,
		[]*state.Neighbour{expired, tooFar, unmeasured, poisoned},
		map[state.NodeId]float32{0x02: 1, 0x03: 1, 0x05: 1},
		map[state.NodeId]float32{0x02: 1, 0x03: 1, 0x05: 1},
		nil,
	)

	assert.Empty(t, candidatesFor(v, dest))
}

func TestCongestionPenaltyRaisesEdgeCost(t *testing.T) {
	now := time.Unix(1000, 0)
	dest := state.NodeId(0x11111111)

	v := algoView(now,
		[]*state.Neighbour{neighbourWith(dest, nil)},
		map[state.NodeId]float32{dest: 2},
		map[state.NodeId]float32{dest: 0.9},
		map[state.NodeId]float32{dest: 0.5},
	)

	cands := candidatesFor(v, dest)
	require.Len(t, cands, 1)
	assert.InDelta(t, 2+state.CongestionPenaltyWeight*0.5+state.HopCost, cands[0].Metric, 1e-6)
}

func TestBetterCandidateOrdering(t *testing.T) {
	lowMetric := pathCandidate{NextHop: 0x05, Metric: 1, HopCount: 3, Reliability: 0.5}
	highMetric := pathCandidate{NextHop: 0x01, Metric: 2, HopCount: 1, Reliability: 0.9}
	assert.True(t, betterCandidate(lowMetric, highMetric))
	assert.False(t, betterCandidate(highMetric, lowMetric))

	fewHops := pathCandidate{NextHop: 0x05, Metric: 1, HopCount: 2, Reliability: 0.5}
	manyHops := pathCandidate{NextHop: 0x01, Metric: 1, HopCount: 3, Reliability: 0.9}
	assert.True(t, betterCandidate(fewHops, manyHops))

	reliable := pathCandidate{NextHop: 0x05, Metric: 1, HopCount: 2, Reliability: 0.9}
	flaky := pathCandidate{NextHop: 0x01, Metric: 1, HopCount: 2, Reliability: 0.5}
	assert.True(t, betterCandidate(reliable, flaky))

	lowId := pathCandidate{NextHop: 0x01, Metric: 1, HopCount: 2, Reliability: 0.9}
	highId := pathCandidate{NextHop: 0x05, Metric: 1, HopCount: 2, Reliability: 0.9}
	assert.True(t, betterCandidate(lowId, highId))
}

func TestSelectBestPriorityBias(t *testing.T) {
	cheap := pathCandidate{NextHop: 0x01, Metric: 10, HopCount: 2, Reliability: 0.7}
	reliable := pathCandidate{NextHop: 0x02, Metric: 12, HopCount: 3, Reliability: 0.9}
	cands := []pathCandidate{cheap, reliable}

	// Without priority the cheaper path wins.
	got, ok := selectBest(cands, false)
	require.True(t, ok)
	assert.Equal(t, cheap.NextHop, got.NextHop)

	// With priority the reliability gain justifies the bounded extra cost.
	got, ok = selectBest(cands, true)
	require.True(t, ok)
	assert.Equal(t, reliable.NextHop, got.NextHop)

	// A path past the cost multiplier is never taken, however reliable.
	tooDear := pathCandidate{NextHop: 0x03, Metric: 10 * state.PriorityCostFactor * 2, HopCount: 2, Reliability: 0.99}
	got, ok = selectBest([]pathCandidate{cheap, tooDear}, true)
	require.True(t, ok)
	assert.Equal(t, cheap.NextHop, got.NextHop)

	// A marginal reliability gain is not worth paying extra metric for.
	marginal := pathCandidate{NextHop: 0x04, Metric: 12, HopCount: 2, Reliability: 0.7 + state.PriorityReliabilityGain/2}
	got, ok = selectBest([]pathCandidate{cheap, marginal}, true)
	require.True(t, ok)
	assert.Equal(t, cheap.NextHop, got.NextHop)

	_, ok = selectBest(nil, true)
	assert.False(t, ok)
}

func TestShouldSwitchHysteresis(t *testing.T) {
	existing := &state.RouteEntry{NextHop: 0x01, Metric: 10}

	// Same next hop always updates in place.
	assert.True(t, shouldSwitch(existing, pathCandidate{NextHop: 0x01, Metric: 11}, true))

	// A marginally better alternative does not displace a usable route.
	assert.False(t, shouldSwitch(existing, pathCandidate{NextHop: 0x02, Metric: 9.5}, true))

	// A decisively better one does.
	assert.True(t, shouldSwitch(existing, pathCandidate{NextHop: 0x02, Metric: 10*state.SwitchThreshold - 1}, true))

	// An unusable route is replaced unconditionally.
	assert.True(t, shouldSwitch(existing, pathCandidate{NextHop: 0x02, Metric: 50}, false))
}

func TestAddMetricSaturates(t *testing.T) {
	assert.Equal(t, state.Inf, state.AddMetric(state.Inf, 1))
	assert.Equal(t, state.Inf, state.AddMetric(1, state.Inf))
	assert.InDelta(t, 3, state.AddMetric(1, 2), 1e-6)
}
