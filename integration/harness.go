//go:build integration

package integration

import (
	"errors"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/thewriterben/wildcam-mesh/core"
	"github.com/thewriterben/wildcam-mesh/link"
	"github.com/thewriterben/wildcam-mesh/state"
)

// VirtualHarness runs one routing core per node over an in-memory radio. A
// shared mock clock is driven at roughly 100x wall time so gossip and probe
// cadences play out in test-friendly time.
type VirtualHarness struct {
	Mesh   state.MeshCfg
	Net    *link.MemNetwork
	States []*state.State

	clk     *clock.Mock
	stopClk chan struct{}
	errs    chan error
}

func (v *VirtualHarness) NewNode(id state.NodeId, name string) {
	v.Mesh.Nodes = append(v.Mesh.Nodes, state.NodeCfg{Id: id, Name: name})
}

func (v *VirtualHarness) AddLink(a, b state.NodeId, edge link.MemEdge) {
	if v.Net == nil {
		v.Net = link.NewMemNetwork()
	}
	v.Net.Connect(a, b, edge)
}

// Start launches every node and blocks until all cores answer a dispatch.
func (v *VirtualHarness) Start() chan error {
	state.ExpandMeshConfig(&v.Mesh)
	if v.Net == nil {
		v.Net = link.NewMemNetwork()
	}

	v.clk = clock.NewMock()
	v.clk.Add(time.Hour)
	v.stopClk = make(chan struct{})
	v.States = make([]*state.State, len(v.Mesh.Nodes))
	v.errs = make(chan error, len(v.Mesh.Nodes))

	for i, n := range v.Mesh.Nodes {
		opts := core.Options{
			Transport: v.Net.Attach(n.Id),
			Clock:     v.clk,
			LogLevel:  slog.LevelWarn,
			InitState: &v.States[i],
		}
		ncfg := state.LocalCfg{Id: n.Id}
		go func() {
			v.errs <- core.Start(v.Mesh, ncfg, opts)
		}()
	}

	// Wait until every core loop answers.
	for i := range v.Mesh.Nodes {
		for {
			if s := v.States[i]; s != nil {
				if _, err := s.DispatchWait(func(*state.State) (any, error) {
					return nil, nil
				}); err == nil {
					break
				}
			}
			time.Sleep(time.Millisecond)
		}
	}

	// Clock driver: ~100x wall time.
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-v.stopClk:
				return
			case <-ticker.C:
				v.clk.Add(100 * time.Millisecond)
			}
		}
	}()

	return v.errs
}

func (v *VirtualHarness) Stop() {
	close(v.stopClk)
	for _, s := range v.States {
		if s != nil {
			s.Cancel(errors.New("stopping harness"))
		}
	}
	for range v.States {
		<-v.errs
	}
	v.Net.Shutdown()
}

func (v *VirtualHarness) stateOf(id state.NodeId) *state.State {
	for _, s := range v.States {
		if s != nil && s.Id == id {
			return s
		}
	}
	return nil
}

// routeOf reads one node's table entry for dest from outside the core loop.
func (v *VirtualHarness) routeOf(node, dest state.NodeId) (state.RouteEntry, bool) {
	s := v.stateOf(node)
	if s == nil {
		return state.RouteEntry{}, false
	}
	res, err := s.DispatchWait(func(s *state.State) (any, error) {
		if e := core.Get[*core.RouteTable](s).FindRoute(dest); e != nil {
			return *e, nil
		}
		return nil, nil
	})
	if err != nil || res == nil {
		return state.RouteEntry{}, false
	}
	return res.(state.RouteEntry), true
}
