package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/rxstore/internal/todo"
	"github.com/aretw0/rxstore/pkg/codec"
	"gopkg.in/yaml.v3"
)

// ErrEmptyScenario is returned for a scenario without actions.
var ErrEmptyScenario = errors.New("scenario has no actions")

// Scenario is a scripted run of the todo store: an initial state, the
// middlewares to install and the actions to dispatch, in order.
type Scenario struct {
	Name        string           `yaml:"name" json:"name"`
	Initial     *todo.State      `yaml:"initial,omitempty" json:"initial,omitempty"`
	Middlewares []string         `yaml:"middlewares,omitempty" json:"middlewares,omitempty"`
	Actions     []codec.Envelope `yaml:"actions" json:"actions"`
	// Expect, when set, is compared with the last state of the run.
	Expect *todo.State `yaml:"expect,omitempty" json:"expect,omitempty"`
	// CascadeLimit bounds uninterrupted feedback; zero disables the guard.
	CascadeLimit int `yaml:"cascade_limit,omitempty" json:"cascade_limit,omitempty"`
}

// LoadScenario reads a scenario file (YAML or JSON).
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var sc Scenario
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		if err := json.Unmarshal(data, &sc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &sc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", sc.Name, err)
	}
	return &sc, nil
}

// Validate checks that every middleware and action type is known.
func (sc *Scenario) Validate() error {
	if len(sc.Actions) == 0 {
		return ErrEmptyScenario
	}
	for _, name := range sc.Middlewares {
		if _, ok := middlewareFactories[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownMiddleware, name)
		}
	}
	reg := todo.Registry()
	for i, env := range sc.Actions {
		if _, err := reg.Decode(env); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	if sc.CascadeLimit < 0 {
		return fmt.Errorf("cascade_limit must not be negative, got %d", sc.CascadeLimit)
	}
	return nil
}

// InitialState returns the configured initial state or the empty list.
func (sc *Scenario) InitialState() todo.State {
	if sc.Initial == nil || sc.Initial.Items == nil {
		return todo.Initial()
	}
	return *sc.Initial
}
