package core

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/thewriterben/wildcam-mesh/link"
	"github.com/thewriterben/wildcam-mesh/state"
)

type sentFrame struct {
	To    state.NodeId // zero for broadcast
	Frame link.Frame
}

// recordingTransport captures outbound frames and lets tests inject inbound
// ones, standing in for the radio MAC.
type recordingTransport struct {
	mu   sync.Mutex
	sent []sentFrame
	recv link.Receiver
}

func (r *recordingTransport) SendToNeighbor(node state.NodeId, f link.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentFrame{To: node, Frame: f})
	return nil
}

func (r *recordingTransport) Broadcast(f link.Frame, maxHops uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentFrame{Frame: f})
	return nil
}

func (r *recordingTransport) SetReceiver(rcv link.Receiver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recv = rcv
}

func (r *recordingTransport) Close() error {
	return nil
}

// take pops everything sent so far.
func (r *recordingTransport) take() []sentFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sent
	r.sent = nil
	return out
}

// inject delivers an inbound frame as the radio would.
func (r *recordingTransport) inject(from state.NodeId, rssi int16, f link.Frame) {
	r.mu.Lock()
	recv := r.recv
	r.mu.Unlock()
	recv(from, rssi, f)
}

type harness struct {
	s         *state.State
	transport *recordingTransport
	clk       *clock.Mock
	dispatch  chan func(*state.State) error
}

func newHarness(t *testing.T, id state.NodeId) *harness {
	t.Helper()
	ctx, cancel := context.WithCancelCause(context.Background())
	dispatch := make(chan func(s *state.State) error, 1024)

	clk := clock.NewMock()
	clk.Add(time.Hour) // move off the epoch so zero-time checks stay meaningful

	s := &state.State{
		Modules: make(map[string]state.MeshModule),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			MeshCfg: func() state.MeshCfg {
				cfg := state.MeshCfg{}
				state.ExpandMeshConfig(&cfg)
				return cfg
			}(),
			LocalCfg: state.LocalCfg{Id: id},
			Clock:    clk,
			Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
	}

	transport := &recordingTransport{}
	if err := initModules(s, transport); err != nil {
		t.Fatalf("initModules: %v", err)
	}
	t.Cleanup(func() {
		cancel(context.Canceled)
		cleanup(s)
	})

	return &harness{s: s, transport: transport, clk: clk, dispatch: dispatch}
}

// drain runs everything queued on the dispatch channel. Tests own the core
// goroutine, so this is how injected frames and ticks get applied.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	for {
		select {
		case f := <-h.dispatch:
			if err := f(h.s); err != nil {
				t.Fatalf("dispatch: %v", err)
			}
		default:
			return
		}
	}
}

// advance moves the mock clock and applies whatever that dispatched.
func (h *harness) advance(t *testing.T, d time.Duration) {
	t.Helper()
	h.clk.Add(d)
	h.drain(t)
}

// addNeighbour seeds a measured neighbour so the engine can route through
// it.
func (h *harness) addNeighbour(t *testing.T, id state.NodeId, reliability, loss float64, rssi int16) *state.Neighbour {
	t.Helper()
	tracker := Get[*LinkTracker](h.s)
	tracker.ReportLinkQuality(h.s, id, reliability, loss, rssi)
	h.drain(t)
	return h.s.GetNeighbour(id)
}

// addAdvert records that neigh claims reachability to dest.
func (h *harness) addAdvert(t *testing.T, neigh, dest state.NodeId, metric float32, hops uint8, rel float32) {
	t.Helper()
	n := h.s.GetNeighbour(neigh)
	if n == nil {
		t.Fatalf("neighbour %s not seeded", neigh)
	}
	n.Routes[dest] = state.AdvRoute{
		Metric:      metric,
		HopCount:    hops,
		Reliability: rel,
		Expire:      h.clk.Now().Add(state.AdvertExpiry),
	}
}
