package state

import "time"

var (
	// HopCost is added per hop so that a zero-cost link can never form a loop.
	HopCost = float32(1.0)

	// LinkSmoothing is the EMA weight given to a new link-quality sample.
	LinkSmoothing = 0.3
	// LinkDeltaThreshold is the reliability change that forces an immediate
	// route re-evaluation instead of waiting for the maintenance tick.
	LinkDeltaThreshold = 0.1
	// LinkLowWater is the reliability below which a link is reported as
	// unreliable. Advisory only, routing continues.
	LinkLowWater = 0.2

	AnnounceDelay    = time.Second * 5
	ProbeDelay       = time.Second * 2
	MaintenanceDelay = time.Second * 5
	HealthCheckDelay = time.Second * 15
	DiscoverySweep   = time.Millisecond * 250

	// UnknownLinkCost stands in for a neighbour the probe loop has not
	// measured yet, so a discovery can cross it without stalling.
	UnknownLinkCost        = float32(6.0)
	UnknownLinkReliability = float32(0.5)
	// DiscoveryFailBackoff suppresses rediscovery storms toward a
	// destination that just exhausted its retries.
	DiscoveryFailBackoff = time.Second * 10

	RouteStaleTTL          = time.Minute * 5
	AdvertExpiry           = 3 * AnnounceDelay
	NeighbourDeadThreshold = 4 * AnnounceDelay
	DiscoveryDedupTTL      = time.Second * 30

	// CongestionPenaltyWeight scales next-hop utilization into an additive
	// edge cost, steering new paths away from loaded relays.
	CongestionPenaltyWeight = float32(4.0)

	// SwitchThreshold is the relative improvement a candidate route must
	// show before it replaces a usable one, to prevent flapping.
	SwitchThreshold = float32(0.9)

	// PriorityCostFactor bounds how much extra cost a wildlife-priority
	// route will pay for better reliability.
	PriorityCostFactor = float32(1.3)
	// PriorityReliabilityGain is the minimum reliability improvement that
	// justifies paying that extra cost.
	PriorityReliabilityGain = float32(0.05)

	// UtilizationDecay drains utilization each maintenance tick so stale
	// load estimates do not pin a route as congested forever.
	UtilizationDecay = float32(0.85)

	// SignalFloor / SignalCeil normalize dBm into [0,1] for link cost.
	SignalFloor = int16(-120)
	SignalCeil  = int16(-30)
)

var (
	DBG_log_engine  = false
	DBG_log_table   = false
	DBG_log_probes  = false
	DBG_log_changes = false
)
