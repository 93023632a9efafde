// Package pipeline turns raw incoming messages into render-ready rows:
// it runs the ordered middleware chain, invokes every column handler,
// and maintains the bounded in-memory row window and the global facet
// collections.
package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/logdyhq/logdy-ui/internal/model"
)

// ApplyMiddlewares runs the ordered middleware chain over a message and
// returns the possibly replaced message. A middleware returning nil
// leaves the message as last mutated.
//
// A failing middleware stops the chain for this message only; the
// message as mutated so far is still returned together with the error,
// so the row is built in a degraded state rather than dropped and
// subsequent messages are unaffected.
func ApplyMiddlewares(middlewares []*model.Middleware, msg model.Message) (model.Message, error) {
	for _, mw := range middlewares {
		if mw.Handler == nil {
			continue
		}
		out, err := mw.Handler(msg)
		if err != nil {
			return msg, fmt.Errorf("middleware %q: %w", mw.Name, err)
		}
		if out != nil {
			msg = *out
		}
	}
	return msg, nil
}

// ParseJSONContent populates JSONContent and IsJSON when the raw
// content is a JSON object. Ingestion calls this before the middleware
// chain so handlers can rely on json_content.
func ParseJSONContent(msg *model.Message) {
	if msg.IsJSON || len(msg.Content) == 0 || msg.Content[0] != '{' {
		return
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(msg.Content), &parsed); err != nil {
		return
	}
	msg.JSONContent = parsed
	msg.IsJSON = true
}

// BuildRow projects a post-middleware message through every column
// handler. Visible columns produce Cells; every column, hidden ones
// included, produces a Field and contributes Facets.
//
// A handler failure for one column renders an error-state cell for that
// column and never prevents the other columns from running.
func BuildRow(id string, columns []*model.Column, msg model.Message) *model.Row {
	row := &model.Row{ID: id, Msg: msg}

	ordered := make([]*model.Column, len(columns))
	copy(ordered, columns)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Idx < ordered[j].Idx })

	for _, col := range ordered {
		cell := invokeColumn(col, msg)

		row.Fields = append(row.Fields, cell)
		if !col.Hidden {
			row.Cells = append(row.Cells, cell)
		}
		row.Facets = append(row.Facets, cell.Facets...)
	}

	return row
}

func invokeColumn(col *model.Column, msg model.Message) model.CellHandler {
	if col.Handler == nil {
		return model.CellHandler{Text: "-", Err: fmt.Sprintf("column %q has no usable handler", col.Name)}
	}
	cell, err := col.Handler(msg)
	if err != nil {
		slog.Debug("column handler failed", "column", col.Name, "error", err)
		return model.CellHandler{Text: "error", Err: fmt.Sprintf("column %q: %v", col.Name, err)}
	}
	return cell
}
