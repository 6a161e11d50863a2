// Package runner executes expanded plans: it dispatches steps through a
// command registry, applies failure policy, and runs test cases of a suite
// sequentially or in parallel.
package runner

import (
	"fmt"
	"sort"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
)

// Handler executes one command.
type Handler = core.Executor

type entry struct {
	handler      Handler
	takesLocator bool
}

// Option configures a registered command.
type Option func(*entry)

// TakesLocator marks a command whose TARGET is a Page.Name locator reference.
func TakesLocator() Option {
	return func(e *entry) {
		e.takesLocator = true
	}
}

// Registry maps command names to handlers. Names are case-insensitive.
// A Registry is filled before a run starts and only read afterwards.
type Registry struct {
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a handler. CALL_FLOW is reserved; registering a name twice
// is an error.
func (r *Registry) Register(name string, h Handler, opts ...Option) error {
	cmd := dsl.NormalizeCommand(name)
	if cmd == "" {
		return fmt.Errorf("command name is empty")
	}
	if cmd == dsl.CommandCallFlow {
		return fmt.Errorf("command %s is reserved", dsl.CommandCallFlow)
	}
	if h == nil {
		return fmt.Errorf("command %s: nil handler", cmd)
	}
	if _, exists := r.entries[cmd]; exists {
		return fmt.Errorf("command %s already registered", cmd)
	}
	e := entry{handler: h}
	for _, opt := range opts {
		opt(&e)
	}
	r.entries[cmd] = e
	return nil
}

// MustRegister is Register that panics on error. For wiring built-in
// handlers at startup.
func (r *Registry) MustRegister(name string, h Handler, opts ...Option) {
	if err := r.Register(name, h, opts...); err != nil {
		panic(err)
	}
}

// RegisterFunc registers a plain function.
func (r *Registry) RegisterFunc(name string, fn core.ExecutorFunc, opts ...Option) error {
	return r.Register(name, fn, opts...)
}

// Has reports whether a command has a handler.
func (r *Registry) Has(command string) bool {
	_, ok := r.entries[dsl.NormalizeCommand(command)]
	return ok
}

// TakesLocator reports whether command resolves its TARGET as a locator.
func (r *Registry) TakesLocator(command string) bool {
	return r.entries[dsl.NormalizeCommand(command)].takesLocator
}

// Names returns every registered command, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(command string) (entry, error) {
	cmd := dsl.NormalizeCommand(command)
	e, ok := r.entries[cmd]
	if !ok {
		return entry{}, core.ErrUnknownCommand.
			WithMessagef("command not supported: %s", cmd).
			WithDetails(map[string]interface{}{"command": cmd})
	}
	return e, nil
}
