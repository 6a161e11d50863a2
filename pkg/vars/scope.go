package vars

import (
	"fmt"
	"strings"
)

// StoreMode controls where STORE writes land while a flow invocation is active.
type StoreMode int

const (
	// StoreShared writes to the test-case layer; values stay visible after
	// the flow returns.
	StoreShared StoreMode = iota
	// StoreFlowLocal writes to the innermost invocation frame; values are
	// dropped when the invocation ends.
	StoreFlowLocal
)

// String returns the config spelling of the mode.
func (m StoreMode) String() string {
	if m == StoreFlowLocal {
		return "flow-local"
	}
	return "shared"
}

// ParseStoreMode parses "shared" or "flow-local". Blank means shared.
func ParseStoreMode(s string) (StoreMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "shared":
		return StoreShared, nil
	case "flow-local", "flow_local", "local":
		return StoreFlowLocal, nil
	}
	return StoreShared, fmt.Errorf("unknown store mode %q", s)
}

type frame struct {
	id   string
	vars map[string]string
}

// Scope is the variable scope of one test case. Lookups search invocation
// frames innermost first, then the test-case layer, then environment, then
// global. Global and environment maps are shared and never written.
//
// A Scope is owned by a single plan run and is not safe for concurrent use.
type Scope struct {
	global  map[string]string
	env     map[string]string
	runtime map[string]string
	frames  []frame
	mode    StoreMode
}

// Option configures a Scope.
type Option func(*Scope)

// WithStoreMode sets where STORE writes land.
func WithStoreMode(mode StoreMode) Option {
	return func(s *Scope) {
		s.mode = mode
	}
}

// NewScope creates a scope over the immutable global and environment layers.
func NewScope(global, env map[string]string, opts ...Option) *Scope {
	s := &Scope{
		global:  global,
		env:     env,
		runtime: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the store mode.
func (s *Scope) Mode() StoreMode {
	return s.mode
}

// Push opens an invocation frame holding call-site parameters.
func (s *Scope) Push(frameID string, params map[string]string) {
	vars := make(map[string]string, len(params))
	for k, v := range params {
		vars[k] = v
	}
	s.frames = append(s.frames, frame{id: frameID, vars: vars})
}

// Pop closes the innermost frame and returns its id. It returns false when
// no frame is open.
func (s *Scope) Pop() (string, bool) {
	if len(s.frames) == 0 {
		return "", false
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f.id, true
}

// Frames returns the ids of the open frames, outermost first.
func (s *Scope) Frames() []string {
	ids := make([]string, len(s.frames))
	for i, f := range s.frames {
		ids[i] = f.id
	}
	return ids
}

// Store writes a runtime variable. In shared mode the key is also unbound
// from open frames so the stored value is what the next step sees.
func (s *Scope) Store(key, value string) {
	if s.mode == StoreFlowLocal && len(s.frames) > 0 {
		s.frames[len(s.frames)-1].vars[key] = value
		return
	}
	for _, f := range s.frames {
		delete(f.vars, key)
	}
	s.runtime[key] = value
}

// Lookup implements Lookup with nearest-scope-wins semantics.
func (s *Scope) Lookup(name string) (string, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i].vars[name]; ok {
			return v, true
		}
	}
	if v, ok := s.runtime[name]; ok {
		return v, true
	}
	if v, ok := s.env[name]; ok {
		return v, true
	}
	v, ok := s.global[name]
	return v, ok
}

// Reset clears the runtime layer and every open frame.
func (s *Scope) Reset() {
	s.runtime = make(map[string]string)
	s.frames = nil
}

// Snapshot flattens the visible variables into a new map.
func (s *Scope) Snapshot() map[string]string {
	out := make(map[string]string, len(s.global)+len(s.env)+len(s.runtime))
	for k, v := range s.global {
		out[k] = v
	}
	for k, v := range s.env {
		out[k] = v
	}
	for k, v := range s.runtime {
		out[k] = v
	}
	for _, f := range s.frames {
		for k, v := range f.vars {
			out[k] = v
		}
	}
	return out
}
