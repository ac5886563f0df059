package link

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/thewriterben/wildcam-mesh/state"
)

// MemNetwork is an in-memory radio used by tests and the sim command. Edges
// are symmetric and carry latency, jitter, loss and a fixed RSSI, mirroring
// what the real MAC reports.
type MemNetwork struct {
	mu    sync.Mutex
	nodes map[state.NodeId]*memTransport
	edges map[state.Pair[state.NodeId, state.NodeId]]*MemEdge
	done  chan struct{}
}

type MemEdge struct {
	Latency    time.Duration
	Jitter     time.Duration
	PacketLoss float64
	RSSI       int16
}

func NewMemNetwork() *MemNetwork {
	return &MemNetwork{
		nodes: make(map[state.NodeId]*memTransport),
		edges: make(map[state.Pair[state.NodeId, state.NodeId]]*MemEdge),
		done:  make(chan struct{}),
	}
}

func edgeKey(a, b state.NodeId) state.Pair[state.NodeId, state.NodeId] {
	if a > b {
		a, b = b, a
	}
	return state.Pair[state.NodeId, state.NodeId]{V1: a, V2: b}
}

// Connect adds a symmetric edge between a and b.
func (n *MemNetwork) Connect(a, b state.NodeId, edge MemEdge) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if edge.RSSI == 0 {
		edge.RSSI = -70
	}
	n.edges[edgeKey(a, b)] = &edge
}

// Disconnect removes the edge between a and b, simulating a link going dark.
func (n *MemNetwork) Disconnect(a, b state.NodeId) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.edges, edgeKey(a, b))
}

// SetLoss adjusts the loss rate of an existing edge.
func (n *MemNetwork) SetLoss(a, b state.NodeId, loss float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if e, ok := n.edges[edgeKey(a, b)]; ok {
		e.PacketLoss = loss
	}
}

// Attach registers a node and returns its transport.
func (n *MemNetwork) Attach(id state.NodeId) Transport {
	n.mu.Lock()
	defer n.mu.Unlock()
	t := &memTransport{net: n, id: id}
	n.nodes[id] = t
	return t
}

func (n *MemNetwork) Shutdown() {
	n.mu.Lock()
	defer n.mu.Unlock()
	select {
	case <-n.done:
	default:
		close(n.done)
	}
}

func (n *MemNetwork) neighboursOf(id state.NodeId) []state.NodeId {
	out := make([]state.NodeId, 0)
	for key := range n.edges {
		if key.V1 == id {
			out = append(out, key.V2)
		}
		if key.V2 == id {
			out = append(out, key.V1)
		}
	}
	return out
}

func (n *MemNetwork) deliver(from, to state.NodeId, f Frame) {
	n.mu.Lock()
	edge, ok := n.edges[edgeKey(from, to)]
	dst := n.nodes[to]
	n.mu.Unlock()
	if !ok || dst == nil {
		return
	}
	if rand.Float64() < edge.PacketLoss {
		return // dropped on the air
	}
	lat := edge.Latency
	if edge.Jitter > 0 {
		lat += time.Duration(rand.Float64() * float64(edge.Jitter))
	}
	run := func() {
		dst.mu.Lock()
		recv := dst.recv
		dst.mu.Unlock()
		if recv != nil {
			recv(from, edge.RSSI, f)
		}
	}
	if lat == 0 {
		go run()
		return
	}
	go func() {
		select {
		case <-n.done:
		case <-time.After(lat):
			run()
		}
	}()
}

type memTransport struct {
	net  *MemNetwork
	id   state.NodeId
	mu   sync.Mutex
	recv Receiver
}

func (t *memTransport) SendToNeighbor(node state.NodeId, f Frame) error {
	t.net.mu.Lock()
	_, ok := t.net.edges[edgeKey(t.id, node)]
	t.net.mu.Unlock()
	if !ok {
		return fmt.Errorf("no link from %s to %s", t.id, node)
	}
	t.net.deliver(t.id, node, f)
	return nil
}

func (t *memTransport) Broadcast(f Frame, maxHops uint8) error {
	t.net.mu.Lock()
	neighbours := t.net.neighboursOf(t.id)
	t.net.mu.Unlock()
	for _, n := range neighbours {
		t.net.deliver(t.id, n, f)
	}
	return nil
}

func (t *memTransport) SetReceiver(r Receiver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recv = r
}

func (t *memTransport) Close() error {
	t.net.mu.Lock()
	defer t.net.mu.Unlock()
	delete(t.net.nodes, t.id)
	return nil
}
