package handler

import (
	"strings"
	"testing"

	"github.com/logdyhq/logdy-ui/internal/model"
)

func TestCompileColumnHandler(t *testing.T) {
	c := NewCompiler()

	fn, err := c.CompileColumn(`(line) => { return { text: line.content.toUpperCase() } }`)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	cell, err := fn(model.Message{Content: "hello"})
	if err != nil {
		t.Fatalf("unexpected invoke error: %v", err)
	}
	if cell.Text != "HELLO" {
		t.Errorf("expected 'HELLO', got '%s'", cell.Text)
	}
}

func TestCompileColumnHandlerWithFacets(t *testing.T) {
	c := NewCompiler()

	fn, err := c.CompileColumn(`(line) => {
		return {
			text: line.json_content.level,
			facets: [{ name: "Level", value: line.json_content.level }]
		}
	}`)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	cell, err := fn(model.Message{
		Content:     `{"level":"error"}`,
		IsJSON:      true,
		JSONContent: map[string]any{"level": "error"},
	})
	if err != nil {
		t.Fatalf("unexpected invoke error: %v", err)
	}
	if cell.Text != "error" {
		t.Errorf("expected 'error', got '%s'", cell.Text)
	}
	if len(cell.Facets) != 1 || cell.Facets[0].Name != "Level" || cell.Facets[0].Value != "error" {
		t.Errorf("unexpected facets: %v", cell.Facets)
	}
}

func TestCompileSyntaxError(t *testing.T) {
	c := NewCompiler()

	_, err := c.CompileColumn(`(line => {{{`)
	if err == nil {
		t.Fatal("expected compile error for invalid syntax")
	}
}

func TestCompileNonFunction(t *testing.T) {
	c := NewCompiler()

	_, err := c.CompileColumn(`42`)
	if err == nil {
		t.Fatal("expected error for non-function source")
	}
	if !strings.Contains(err.Error(), "function") {
		t.Errorf("error should mention function, got: %v", err)
	}
}

func TestColumnHandlerThrowIsIsolated(t *testing.T) {
	c := NewCompiler()

	fn, err := c.CompileColumn(`(line) => { throw new Error("boom") }`)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	_, err = fn(model.Message{Content: "x"})
	if err == nil {
		t.Fatal("expected invocation error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error should carry the thrown message, got: %v", err)
	}
}

func TestColumnHandlerWrongShape(t *testing.T) {
	c := NewCompiler()

	fn, err := c.CompileColumn(`(line) => { return "just a string" }`)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	_, err = fn(model.Message{Content: "x"})
	if err == nil {
		t.Fatal("expected shape error for non-object return")
	}
}

func TestMiddlewareVoidReturnIsNoop(t *testing.T) {
	c := NewCompiler()

	fn, err := c.CompileMiddleware(`(line) => { /* inspect only */ }`)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	out, err := fn(model.Message{Content: "keep me"})
	if err != nil {
		t.Fatalf("unexpected invoke error: %v", err)
	}
	if out != nil {
		t.Errorf("expected nil for void return, got %+v", out)
	}
}

func TestMiddlewareMutatesMessage(t *testing.T) {
	c := NewCompiler()

	fn, err := c.CompileMiddleware(`(line) => {
		line.content = line.content + "!"
		return line
	}`)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	out, err := fn(model.Message{ID: "m1", Content: "hello"})
	if err != nil {
		t.Fatalf("unexpected invoke error: %v", err)
	}
	if out == nil {
		t.Fatal("expected a replacement message")
	}
	if out.Content != "hello!" {
		t.Errorf("expected 'hello!', got '%s'", out.Content)
	}
	if out.ID != "m1" {
		t.Errorf("expected id preserved, got '%s'", out.ID)
	}
}

func TestCompileCacheReusesBySource(t *testing.T) {
	c := NewCompiler()

	src := `(line) => { return { text: line.content } }`
	if _, err := c.CompileColumn(src); err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	if _, err := c.CompileColumn(src); err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	if len(c.cache) != 1 {
		t.Errorf("expected 1 cached callable, got %d", len(c.cache))
	}

	if _, err := c.CompileColumn(`(line) => { return { text: "other" } }`); err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	if len(c.cache) != 2 {
		t.Errorf("expected 2 cached callables, got %d", len(c.cache))
	}
}
