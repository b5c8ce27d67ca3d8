package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/rxstore"
	"github.com/aretw0/rxstore/internal/logging"
	"github.com/aretw0/rxstore/internal/todo"
	"github.com/aretw0/rxstore/pkg/domain"
	"github.com/aretw0/rxstore/pkg/middleware"
	"github.com/aretw0/rxstore/pkg/stream"
)

// ErrUnknownMiddleware is returned for a middleware name with no factory.
var ErrUnknownMiddleware = errors.New("unknown middleware")

// ErrExpectationFailed is returned when the last state differs from Expect.
var ErrExpectationFailed = errors.New("final state does not match expectation")

type middlewareFactory func(logger *slog.Logger) rxstore.Middleware[todo.State, todo.Action]

var middlewareFactories = map[string]middlewareFactory{
	"auto-delete": func(*slog.Logger) rxstore.Middleware[todo.State, todo.Action] {
		return todo.AutoDelete()
	},
	"logger": func(logger *slog.Logger) rxstore.Middleware[todo.State, todo.Action] {
		return middleware.Logger[todo.State, todo.Action](logger, slog.LevelInfo)
	},
}

// Middlewares builds the named middlewares, in order.
func Middlewares(names []string, logger *slog.Logger) ([]rxstore.Middleware[todo.State, todo.Action], error) {
	mws := make([]rxstore.Middleware[todo.State, todo.Action], 0, len(names))
	for _, name := range names {
		factory, ok := middlewareFactories[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMiddleware, name)
		}
		mws = append(mws, factory(logger))
	}
	return mws, nil
}

// RunOptions contains the configuration for the run command.
type RunOptions struct {
	Logger *slog.Logger
	Hooks  domain.Hooks
	// Output receives every state as one JSON document per line.
	Output io.Writer
}

// RunResult summarizes a scenario run.
type RunResult struct {
	States int
	Final  todo.State
}

// RunScenario activates the todo store, dispatches the scenario actions and
// writes every state to opts.Output. The activation is torn down once the
// actions are dispatched; a fault of the store is returned as the error.
func RunScenario(ctx context.Context, sc *Scenario, opts RunOptions) (*RunResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	out := opts.Output
	if out == nil {
		out = io.Discard
	}

	extra, err := Middlewares(sc.Middlewares, logger)
	if err != nil {
		return nil, err
	}
	dispatcher := rxstore.NewDispatcher[todo.State, todo.Action]()
	store := rxstore.New(todo.Reduce, sc.InitialState(),
		append([]rxstore.Middleware[todo.State, todo.Action]{dispatcher.Middleware()}, extra...),
		rxstore.WithName(sc.Name),
		rxstore.WithLogger(logger),
		rxstore.WithHooks(opts.Hooks),
		rxstore.WithCascadeLimit(sc.CascadeLimit),
	)

	var (
		mu       sync.Mutex
		result   RunResult
		fault    error
		writeErr error
	)
	enc := json.NewEncoder(out)
	sub := store.Subscribe(stream.Observer[todo.State]{
		Next: func(s todo.State) {
			mu.Lock()
			defer mu.Unlock()
			result.States++
			result.Final = s
			if writeErr == nil {
				writeErr = enc.Encode(s)
			}
		},
		Error: func(err error) {
			mu.Lock()
			defer mu.Unlock()
			fault = err
		},
	})
	defer sub.Unsubscribe()

	reg := todo.Registry()
	for i, env := range sc.Actions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		action, err := reg.Decode(env)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		if err := dispatcher.Dispatch(action); err != nil {
			if errors.Is(err, domain.ErrNotActive) {
				// The store stopped early; report why below.
				break
			}
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if fault != nil {
		return &result, fmt.Errorf("scenario %s: %w", sc.Name, fault)
	}
	if writeErr != nil {
		return &result, fmt.Errorf("failed to write state: %w", writeErr)
	}
	if sc.Expect != nil && !sameState(*sc.Expect, result.Final) {
		return &result, fmt.Errorf("%w: got %d items, want %d", ErrExpectationFailed, len(result.Final.Items), len(sc.Expect.Items))
	}
	return &result, nil
}

func sameState(a, b todo.State) bool {
	return slices.Equal(a.Items, b.Items)
}
