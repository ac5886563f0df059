package state

import (
	"time"
)

// NodeCfg is the network-wide description of one camera node.
type NodeCfg struct {
	Id   NodeId `yaml:"id"`
	Name string `yaml:"name,omitempty"`
}

// MeshCfg is the network-global configuration, shared by every node in the
// deployment.
type MeshCfg struct {
	Nodes []NodeCfg `yaml:"nodes"`

	// MaxHops bounds both route discovery floods and accepted path lengths.
	MaxHops uint8 `yaml:"max_hops,omitempty"`
	// MaxRetries is the number of discovery attempts before giving up.
	MaxRetries int `yaml:"max_retries,omitempty"`
	// DiscoveryTimeout is the reply deadline for a single discovery attempt.
	// Retries back off by doubling.
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout,omitempty"`

	// CongestionThreshold is the utilization above which a route is
	// considered congested.
	CongestionThreshold float32 `yaml:"congestion_threshold,omitempty"`
	// RebalanceTolerance is the relative metric penalty accepted when moving
	// traffic off a congested route. 0.2 means up to 20% worse.
	RebalanceTolerance float32 `yaml:"rebalance_tolerance,omitempty"`

	// MaxRoutes caps the routing table arena. Memory for the table is
	// allocated once at startup.
	MaxRoutes int `yaml:"max_routes,omitempty"`

	// CoordinatorOverride pins the coordinator role to a specific node,
	// bypassing lowest-id election while that node is reachable.
	CoordinatorOverride NodeId `yaml:"coordinator_override,omitempty"`

	// ChunkSize is the image fragment size used for transfer admission
	// estimates. Matches the radio payload budget.
	ChunkSize int `yaml:"chunk_size,omitempty"`
	// ChunkRetries is the per-chunk retransmission budget assumed by the
	// admission check.
	ChunkRetries int `yaml:"chunk_retries,omitempty"`
	// ImageFailureBound is the acceptable whole-transfer failure
	// probability for image admission.
	ImageFailureBound float64 `yaml:"image_failure_bound,omitempty"`
	// LinkBudget is the per-route bytes-per-tick capacity used to convert
	// recorded traffic into utilization.
	LinkBudget int `yaml:"link_budget,omitempty"`

	// SimLinks describes the radio topology for the in-memory simulator.
	// Ignored on hardware, where the MAC layer decides who can hear whom.
	SimLinks []SimLink `yaml:"sim_links,omitempty"`
}

// SimLink is one simulated radio edge.
type SimLink struct {
	A       NodeId        `yaml:"a"`
	B       NodeId        `yaml:"b"`
	Latency time.Duration `yaml:"latency,omitempty"`
	Jitter  time.Duration `yaml:"jitter,omitempty"`
	Loss    float64       `yaml:"loss,omitempty"`
	RSSI    int16         `yaml:"rssi,omitempty"`
}

// LocalCfg is the node-local configuration.
type LocalCfg struct {
	Id      NodeId `yaml:"id"`
	LogPath string `yaml:"log_path,omitempty"` // if not empty, logs are also written to this file
}

// ExpandMeshConfig fills in defaults for fields the operator left unset.
func ExpandMeshConfig(cfg *MeshCfg) {
	if cfg.MaxHops == 0 {
		cfg.MaxHops = 5
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.DiscoveryTimeout == 0 {
		cfg.DiscoveryTimeout = 2 * time.Second
	}
	if cfg.CongestionThreshold == 0 {
		cfg.CongestionThreshold = 0.8
	}
	if cfg.RebalanceTolerance == 0 {
		cfg.RebalanceTolerance = 0.2
	}
	if cfg.MaxRoutes == 0 {
		cfg.MaxRoutes = 64
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 200
	}
	if cfg.ChunkRetries == 0 {
		cfg.ChunkRetries = 2
	}
	if cfg.ImageFailureBound == 0 {
		cfg.ImageFailureBound = 0.05
	}
	if cfg.LinkBudget == 0 {
		cfg.LinkBudget = 4096
	}
}

func (c *MeshCfg) GetNode(id NodeId) *NodeCfg {
	for i := range c.Nodes {
		if c.Nodes[i].Id == id {
			return &c.Nodes[i]
		}
	}
	return nil
}
