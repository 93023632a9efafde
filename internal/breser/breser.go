// Package breser evaluates structured query expressions against the
// parsed JSON content of log messages. It is the native counterpart of
// the expression engine the browser client loaded as a WASM module.
package breser

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Engine holds the currently compiled expression. The zero value is an
// engine with no expression set.
type Engine struct {
	mu      sync.Mutex
	src     string
	program *vm.Program
}

// New returns an empty Engine.
func New() *Engine {
	return &Engine{}
}

// SetExpression compiles and installs a query. An empty query clears
// the engine. A compile error leaves the previous expression in place
// and is returned for display next to the search input.
func (e *Engine) SetExpression(query string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if query == "" {
		e.src = ""
		e.program = nil
		return nil
	}

	program, err := expr.Compile(query,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}

	e.src = query
	e.program = program
	return nil
}

// Active reports whether an expression is currently set.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.program != nil
}

// Expression returns the currently installed query source.
func (e *Engine) Expression() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// RunQuery evaluates the expression against each element of data and
// returns one boolean per element. A runtime failure on a single
// element (e.g. a comparison against a missing field) marks that
// element as a non-match rather than failing the whole pass.
func (e *Engine) RunQuery(data []map[string]any) ([]bool, error) {
	e.mu.Lock()
	program := e.program
	e.mu.Unlock()

	if program == nil {
		return nil, fmt.Errorf("no expression set")
	}

	result := make([]bool, len(data))
	for i, env := range data {
		out, err := expr.Run(program, env)
		if err != nil {
			result[i] = false
			continue
		}
		b, ok := out.(bool)
		if !ok {
			return nil, fmt.Errorf("query returned %T, expected boolean", out)
		}
		result[i] = b
	}
	return result, nil
}
