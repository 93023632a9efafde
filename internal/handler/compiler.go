// Package handler compiles user-authored handler snippets into callable
// functions. A snippet is a piece of source whose evaluation yields a
// function value, e.g. `(line) => { return { text: line.content } }`.
//
// Compilation is the only place a syntax error can surface; invocation
// failures (a throw, or a return value of the wrong shape) are returned
// per call so one bad handler or one bad message never unwinds across
// the row-building loop.
package handler

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/dop251/goja"

	"github.com/logdyhq/logdy-ui/internal/model"
)

// Compiler turns handler source into callables. All compiled functions
// share one JavaScript runtime; invocation is serialized, which matches
// the single-threaded processing model of the pipeline.
//
// Compiled callables are cached by a hash of their source, so
// recompiling an unchanged column or middleware is free and an edited
// source always yields a freshly compiled function.
type Compiler struct {
	mu    sync.Mutex
	vm    *goja.Runtime
	cache map[uint64]goja.Callable
}

// NewCompiler creates a Compiler with a fresh runtime.
func NewCompiler() *Compiler {
	return &Compiler{
		vm:    goja.New(),
		cache: make(map[uint64]goja.Callable),
	}
}

// CompileColumn compiles source into a cell handler function.
// The returned function never panics; malformed return shapes are
// reported as errors.
func (c *Compiler) CompileColumn(src string) (model.CellHandlerFn, error) {
	fn, err := c.compile(src)
	if err != nil {
		return nil, err
	}

	return func(m model.Message) (model.CellHandler, error) {
		res, err := c.invoke(fn, m)
		if err != nil {
			return model.CellHandler{}, err
		}
		if res == nil {
			return model.CellHandler{}, fmt.Errorf("handler returned no value")
		}
		obj, ok := res.(map[string]any)
		if !ok {
			return model.CellHandler{}, fmt.Errorf("handler returned %T, expected an object", res)
		}
		var cell model.CellHandler
		if err := remarshal(obj, &cell); err != nil {
			return model.CellHandler{}, fmt.Errorf("handler return shape: %w", err)
		}
		return cell, nil
	}, nil
}

// CompileMiddleware compiles source into a message transform.
// A void return from the handler is a no-op, not an error.
func (c *Compiler) CompileMiddleware(src string) (model.RowHandlerFn, error) {
	fn, err := c.compile(src)
	if err != nil {
		return nil, err
	}

	return func(m model.Message) (*model.Message, error) {
		res, err := c.invoke(fn, m)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, nil
		}
		obj, ok := res.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("middleware returned %T, expected a message or nothing", res)
		}
		var out model.Message
		if err := remarshal(obj, &out); err != nil {
			return nil, fmt.Errorf("middleware return shape: %w", err)
		}
		return &out, nil
	}, nil
}

// compile evaluates the snippet to a function value, using the source
// hash cache. The snippet is wrapped the same way the browser client
// wrapped transpiled handlers: a function body returning the snippet.
func (c *Compiler) compile(src string) (goja.Callable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := sourceHash(src)
	if fn, ok := c.cache[key]; ok {
		return fn, nil
	}

	v, err := c.vm.RunString("(function () { return " + src + "\n })()")
	if err != nil {
		return nil, fmt.Errorf("compiling handler: %w", err)
	}

	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("handler source does not evaluate to a function")
	}

	c.cache[key] = fn
	return fn, nil
}

// invoke calls a compiled handler with the message and exports the
// result. A JavaScript throw comes back as an error. undefined and
// null both export as nil.
func (c *Compiler) invoke(fn goja.Callable, m model.Message) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var arg map[string]any
	if err := remarshal(m, &arg); err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}

	res, err := fn(goja.Undefined(), c.vm.ToValue(arg))
	if err != nil {
		return nil, fmt.Errorf("handler: %w", err)
	}
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return nil, nil
	}
	return res.Export(), nil
}

// remarshal converts between Go values via their JSON forms, so that
// handlers see and return exactly the documented wire shapes.
func remarshal(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func sourceHash(src string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(src))
	return h.Sum64()
}
