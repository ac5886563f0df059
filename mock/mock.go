// Package mock provides canned mesh deployments for tests and the
// simulator.
package mock

import (
	"time"

	"github.com/thewriterben/wildcam-mesh/state"
)

// MockCfg returns a five-camera deployment with a ring-and-chord topology:
//
//	ridge ---- creek ---- burrow
//	  |       /    \        |
//	meadow --      -- hollow
//
// Edge loss/latency values are shaped like a real LoRa deployment in
// moderate terrain.
func MockCfg() (state.MeshCfg, []state.LocalCfg) {
	cfg := state.MeshCfg{
		Nodes: []state.NodeCfg{
			{Id: 0x11111111, Name: "ridge"},
			{Id: 0x22222222, Name: "creek"},
			{Id: 0x33333333, Name: "meadow"},
			{Id: 0x44444444, Name: "burrow"},
			{Id: 0x55555555, Name: "hollow"},
		},
		SimLinks: []state.SimLink{
			{A: 0x11111111, B: 0x22222222, Latency: 5 * time.Millisecond, Loss: 0.02, RSSI: -62},
			{A: 0x11111111, B: 0x33333333, Latency: 8 * time.Millisecond, Loss: 0.05, RSSI: -78},
			{A: 0x22222222, B: 0x33333333, Latency: 6 * time.Millisecond, Loss: 0.03, RSSI: -70},
			{A: 0x22222222, B: 0x44444444, Latency: 9 * time.Millisecond, Loss: 0.04, RSSI: -81},
			{A: 0x22222222, B: 0x55555555, Latency: 7 * time.Millisecond, Loss: 0.03, RSSI: -74},
			{A: 0x44444444, B: 0x55555555, Latency: 5 * time.Millisecond, Loss: 0.02, RSSI: -66},
		},
	}
	state.ExpandMeshConfig(&cfg)

	locals := make([]state.LocalCfg, 0, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		locals = append(locals, state.LocalCfg{Id: n.Id})
	}
	return cfg, locals
}
