package core

import "errors"

var (
	// ErrRouteNotFound means no path to the destination exists within the
	// configured hop bound.
	ErrRouteNotFound = errors.New("route not found")
	// ErrDiscoveryTimeout means discovery exhausted its retries without a
	// valid reply. Callers may fall back to broadcast-only transmission.
	ErrDiscoveryTimeout = errors.New("route discovery timed out")
	// ErrDiscoveryCancelled means a pending discovery was cancelled by the
	// caller or superseded before it could resolve.
	ErrDiscoveryCancelled = errors.New("route discovery cancelled")
	// ErrInvalidRoute rejects malformed entries: self-routes, unknown next
	// hops, or hop counts that contradict the next hop.
	ErrInvalidRoute = errors.New("invalid route")
	// ErrLinkUnreliable is advisory: a link dropped below the reliability
	// low-water mark. It never blocks routing.
	ErrLinkUnreliable = errors.New("link unreliable")
)
