package runner

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
)

// guardPrefix starts a CONDITION the runner evaluates itself. Every other
// condition is handed to the executor untouched.
const guardPrefix = "WHEN "

// guardExpression returns the expression of a WHEN guard.
func guardExpression(condition string) (string, bool) {
	c := strings.TrimSpace(condition)
	if len(c) < len(guardPrefix) || !strings.EqualFold(c[:len(guardPrefix)], guardPrefix) {
		return "", false
	}
	return strings.TrimSpace(c[len(guardPrefix):]), true
}

// Guards evaluates WHEN expressions over the variable scope. Compiled
// programs are cached by expression text and are not tied to the types of
// the scope they first ran against. Safe for concurrent use.
type Guards struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewGuards creates an evaluator with an empty cache.
func NewGuards() *Guards {
	return &Guards{cache: make(map[string]*vm.Program)}
}

// Eval evaluates expression with vars as the environment. Values written as
// plain decimal numbers ("3", "-1.5") are numbers, everything else is a
// string; string(X) compares a numeric value as text. Unknown names
// evaluate to nil. A non-boolean result is an error.
func (g *Guards) Eval(expression string, vars map[string]string) (bool, error) {
	env := make(map[string]any, len(vars))
	for k, v := range vars {
		env[k] = guardValue(v)
	}

	prg, err := g.getOrCompile(expression)
	if err != nil {
		return false, err
	}

	out, err := expr.Run(prg, env)
	if err != nil {
		return false, core.ErrInvalidCondition.
			WithMessagef("evaluate %q", expression).
			WithCause(err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, core.ErrInvalidCondition.
			WithMessagef("condition %q is not boolean (got %T)", expression, out)
	}
	return b, nil
}

var decimal = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?$`)

// guardValue converts canonical decimal numbers. Values such as "007" or
// "1e3" stay strings.
func guardValue(v string) any {
	if !decimal.MatchString(v) {
		return v
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

func (g *Guards) getOrCompile(expression string) (*vm.Program, error) {
	g.mu.RLock()
	if prg, ok := g.cache[expression]; ok {
		g.mu.RUnlock()
		return prg, nil
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	if prg, ok := g.cache[expression]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, core.ErrInvalidCondition.
			WithMessagef("compile %q", expression).
			WithCause(err).
			WithDetails(map[string]interface{}{"expression": expression})
	}

	g.cache[expression] = prg
	return prg, nil
}
