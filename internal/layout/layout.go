// Package layout holds the ordered column definitions and settings that
// define a view, together with the structural edit operations the
// settings UI performs on them.
package layout

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/logdyhq/logdy-ui/internal/handler"
	"github.com/logdyhq/logdy-ui/internal/model"
)

// Layout is a named, persisted view configuration: ordered columns plus
// settings (window bound, display order, middleware chain).
type Layout struct {
	Name     string          `json:"name"`
	Columns  []*model.Column `json:"columns"`
	Settings model.Settings  `json:"settings"`

	compiler *handler.Compiler
}

// New creates a Layout backed by the given compiler.
func New(name string, settings model.Settings, compiler *handler.Compiler) *Layout {
	return &Layout{
		Name:     name,
		Settings: settings,
		compiler: compiler,
	}
}

// Add appends a column. Its Idx is set to the current column count, a
// unique short id is generated if absent and Width defaults to 150.
// Returns a compile error if the handler source is invalid; the column
// is not added in that case.
func (l *Layout) Add(col *model.Column) error {
	col.Idx = len(l.Columns)
	if col.ID == "" {
		col.ID = l.newColumnID()
	}
	if col.Width == 0 {
		col.Width = 150
	}

	if col.HandlerSource != "" {
		if err := l.prepareColumn(col); err != nil {
			return err
		}
	}

	l.Columns = append(l.Columns, col)
	return nil
}

// Update recompiles the column's handler from source and replaces the
// column with the matching id. Updating a column whose id is not
// present is a no-op; callers validate existence beforehand.
func (l *Layout) Update(col *model.Column) error {
	if err := l.prepareColumn(col); err != nil {
		return err
	}
	for i, c := range l.Columns {
		if c.ID == col.ID {
			l.Columns[i] = col
			return nil
		}
	}
	return nil
}

// Remove deletes the column with the matching id. Remaining Idx values
// are not renumbered; Idx is a relative-order hint, not a dense
// position, and consumers sort before use.
func (l *Layout) Remove(id string) {
	for i, c := range l.Columns {
		if c.ID == id {
			l.Columns = append(l.Columns[:i], l.Columns[i+1:]...)
			return
		}
	}
}

// Move swaps the column with its immediate neighbor: diff > 0 moves it
// right, diff < 0 left. Moving the first column left or the last column
// right is a no-op.
func (l *Layout) Move(id string, diff int) {
	idx := -1
	for i, c := range l.Columns {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	other := idx - 1
	if diff > 0 {
		other = idx + 1
	}
	if other < 0 || other >= len(l.Columns) {
		return
	}

	l.Columns[idx], l.Columns[other] = l.Columns[other], l.Columns[idx]
}

// Get returns the column with the given id, or nil.
func (l *Layout) Get(id string) *model.Column {
	for _, c := range l.Columns {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// ProcessMiddlewareHandlers recompiles every middleware handler from
// its source. Called whenever the layout is loaded from serialized
// form. All failures are collected so one broken middleware does not
// hide the others.
func (l *Layout) ProcessMiddlewareHandlers() error {
	var errs []error
	for _, m := range l.Settings.Middlewares {
		fn, err := l.compiler.CompileMiddleware(m.HandlerSource)
		if err != nil {
			errs = append(errs, fmt.Errorf("middleware %q: %w", m.Name, err))
			continue
		}
		m.Handler = fn
	}
	return errors.Join(errs...)
}

// LoadFromJSON replaces the layout's contents with a persisted layout
// document, recompiling every column and middleware handler.
func (l *Layout) LoadFromJSON(data []byte) error {
	var doc struct {
		Name     string          `json:"name"`
		Columns  []*model.Column `json:"columns"`
		Settings model.Settings  `json:"settings"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing layout: %w", err)
	}

	var errs []error
	for _, c := range doc.Columns {
		if c.HandlerSource == "" {
			continue
		}
		if err := l.prepareColumnFor(c); err != nil {
			errs = append(errs, fmt.Errorf("column %q: %w", c.Name, err))
		}
	}

	l.Name = doc.Name
	l.Columns = doc.Columns
	l.Settings = doc.Settings

	if err := l.ProcessMiddlewareHandlers(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ToJSON serializes the layout document: name, columns and settings.
// Compiled handlers are never persisted, only their sources.
func (l *Layout) ToJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name     string          `json:"name"`
		Columns  []*model.Column `json:"columns"`
		Settings model.Settings  `json:"settings"`
	}{l.Name, l.Columns, l.Settings})
}

func (l *Layout) prepareColumn(col *model.Column) error {
	if err := l.prepareColumnFor(col); err != nil {
		return fmt.Errorf("column %q: %w", col.Name, err)
	}
	return nil
}

func (l *Layout) prepareColumnFor(col *model.Column) error {
	fn, err := l.compiler.CompileColumn(col.HandlerSource)
	if err != nil {
		return err
	}
	col.Handler = fn
	return nil
}

// newColumnID generates a short random token unique among the current
// columns. Ids are independent of display order and never reused
// during reorder or resize.
func (l *Layout) newColumnID() string {
	for {
		b := make([]byte, 3)
		rand.Read(b)
		id := hex.EncodeToString(b)
		if l.Get(id) == nil {
			return id
		}
	}
}
