package state

import (
	"context"
	"log/slog"

	"github.com/benbjohnson/clock"
)

type MeshModule interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// State access must be done only on the core goroutine.
type State struct {
	*Env
	Modules    map[string]MeshModule
	Neighbours []*Neighbour
}

// Env can be read from any goroutine.
type Env struct {
	DispatchChannel chan<- func(s *State) error
	MeshCfg
	LocalCfg
	Context context.Context
	Cancel  context.CancelCauseFunc
	Clock   clock.Clock
	Log     *slog.Logger
}
