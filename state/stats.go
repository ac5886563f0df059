package state

import "time"

// MeshStatistics are process-wide counters kept for the lifetime of the
// coordinator. They are only reset by an explicit ResetStatistics call.
type MeshStatistics struct {
	RoutesCalculated      uint64
	RouteDiscoveries      uint64
	DiscoveryTimeouts     uint64
	LoadBalanceOperations uint64
	RoutesPruned          uint64
	StartTime             time.Time
}

func (m *MeshStatistics) Reset(now time.Time) {
	*m = MeshStatistics{StartTime: now}
}
