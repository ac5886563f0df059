package core

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"reflect"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/encodeous/tint"
	slogmulti "github.com/samber/slog-multi"

	"github.com/thewriterben/wildcam-mesh/link"
	"github.com/thewriterben/wildcam-mesh/state"
)

// Options carries everything Start needs beyond the two config files.
type Options struct {
	Transport link.Transport
	Clock     clock.Clock // nil means wall clock
	LogLevel  slog.Level
	// InitState, when non-nil, receives the constructed state before the
	// main loop starts. Used by tests and the sim harness.
	InitState **state.State
}

func buildLogger(ncfg state.LocalCfg, level slog.Level) (*slog.Logger, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        level,
			AddSource:    false,
			CustomPrefix: ncfg.Id.String(),
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	if ncfg.LogPath != "" {
		err := os.MkdirAll(path.Dir(ncfg.LogPath), 0700)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(ncfg.LogPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0700)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	}

	return slog.New(slogmulti.Fanout(handlers...)), nil
}

// Start builds the runtime state, initializes the mesh modules and runs the
// core loop until the context is cancelled.
func Start(mcfg state.MeshCfg, ncfg state.LocalCfg, opts Options) error {
	ctx, cancel := context.WithCancelCause(context.Background())

	dispatch := make(chan func(s *state.State) error, 128)

	logger, err := buildLogger(ncfg, opts.LogLevel)
	if err != nil {
		cancel(err)
		return err
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	s := state.State{
		Modules: make(map[string]state.MeshModule),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			MeshCfg:         mcfg,
			LocalCfg:        ncfg,
			Clock:           clk,
			Log:             logger,
		},
	}
	if opts.InitState != nil {
		*opts.InitState = &s
	}

	s.Log.Info("init mesh modules")
	if err := initModules(&s, opts.Transport); err != nil {
		cancel(err)
		return err
	}
	s.Log.Debug("init mesh modules complete")

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			s.Cancel(errors.New("received shutdown signal"))
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()

	return MainLoop(&s, dispatch)
}

func initModules(s *state.State, transport link.Transport) error {
	modules := []state.MeshModule{
		&RouteTable{},
		&LinkTracker{},
		&Engine{},
		&Discovery{},
		&Congestion{},
		&Priority{},
		&Coordinator{},
		// Radio goes last so every frame handler finds its module ready.
		&Radio{transport: transport},
	}

	for _, module := range modules {
		s.Modules[reflect.TypeOf(module).String()] = module
		if err := module.Init(s); err != nil {
			return err
		}
	}
	return nil
}

func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started core loop")
	for {
		select {
		case fun := <-dispatch:
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			if elapsed > time.Millisecond*50 {
				s.Log.Warn("dispatch took a long time!", "elapsed", elapsed)
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	s.Log.Info("stopped core loop", "reason", context.Cause(s.Context).Error())
	cleanup(s)
	return nil
}

func cleanup(s *state.State) {
	s.Log.Info("cleaning up modules")
	for moduleName, module := range s.Modules {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during cleanup", "module", moduleName, "error", err)
		}
	}
	s.Cancel(context.Canceled)
}
