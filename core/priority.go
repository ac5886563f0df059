package core

import (
	"math"

	"github.com/thewriterben/wildcam-mesh/state"
)

// Priority implements the wildlife-traffic policy: marked destinations trade
// some path cost for reliability, and large image transfers are admission
// checked against the route's measured quality before the upper layer
// commits radio time to them.
type Priority struct{}

func (p *Priority) Init(s *state.State) error {
	return nil
}

func (p *Priority) Cleanup(s *state.State) error {
	return nil
}

// PrioritizeWildlifeRoute flags the stored route for dest. Idempotent. The
// flag does not recompute the path; it biases every future engine
// evaluation for this destination toward reliability.
func (p *Priority) PrioritizeWildlifeRoute(s *state.State, dest state.NodeId) error {
	entry := Get[*RouteTable](s).FindRoute(dest)
	if entry == nil {
		return ErrRouteNotFound
	}
	if !entry.WildlifePriority {
		entry.WildlifePriority = true
		s.Log.Info("wildlife priority set", "dest", dest)
	}
	return nil
}

// OptimizeForImageTransmission decides whether the current route can carry a
// multi-chunk image of the given size within the configured failure bound.
// It is an admission check only; the transfer itself belongs to the upper
// layer.
func (p *Priority) OptimizeForImageTransmission(s *state.State, dest state.NodeId, imageSizeBytes int) bool {
	if imageSizeBytes <= 0 {
		return false
	}
	entry := Get[*RouteTable](s).FindRoute(dest)
	if entry == nil || entry.Metric == state.Inf {
		return false
	}

	// A congested route cannot absorb a bulk transfer regardless of
	// reliability.
	if entry.Utilization > s.MeshCfg.CongestionThreshold {
		return false
	}

	chunks := (imageSizeBytes + s.MeshCfg.ChunkSize - 1) / s.MeshCfg.ChunkSize
	rel := float64(entry.Reliability)
	if rel <= 0 {
		return false
	}

	// Each chunk gets its retry budget; the transfer fails if any chunk
	// exhausts it.
	chunkFail := math.Pow(1-rel, float64(1+s.MeshCfg.ChunkRetries))
	transferFail := 1 - math.Pow(1-chunkFail, float64(chunks))

	admitted := transferFail <= s.MeshCfg.ImageFailureBound
	s.Log.Debug("image admission", "dest", dest, "bytes", imageSizeBytes,
		"chunks", chunks, "p_fail", transferFail, "admitted", admitted)
	return admitted
}
