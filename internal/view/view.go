// Package view computes the final ordered, filtered set of rows for
// rendering. Compute is a pure derivation over a snapshot of rows and
// filter state; it never re-runs middlewares or column handlers.
package view

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/logdyhq/logdy-ui/internal/model"
	"github.com/logdyhq/logdy-ui/internal/pipeline"
)

// Free-text search terms of fewer characters than this impose no
// filtering.
const minSearchLength = 3

// Toggle filter names. Origin filters are dynamic: "origin_file_<file>",
// "origin_port_<port>" and "origin_na".
const (
	FilterStarred  = "starred"
	FilterRead     = "read"
	FilterUnread   = "unread"
	FilterOriginNA = "origin_na"

	originPrefix     = "origin_"
	originFilePrefix = "origin_file_"
	originPortPrefix = "origin_port_"
)

// QueryEngine is the structured-query collaborator. It is opaque to
// the view engine; a result of the wrong length makes the engine fall
// back to the unfiltered set.
type QueryEngine interface {
	Active() bool
	RunQuery(data []map[string]any) ([]bool, error)
}

// State is the full filter input of one derivation pass.
type State struct {
	// Filters holds the enabled toggle and origin filter names.
	Filters []string
	// Search is the free-text term; ignored while a structured query
	// is active or while shorter than three characters.
	Search string
	// Correlation, when set, requires an exact correlation_id match.
	Correlation string
	// From and To bound the message timestamp in milliseconds;
	// a zero bound is open.
	From, To int64
	// EntriesOrder is "asc" (ingestion order, default) or "desc".
	EntriesOrder string
}

// Compute filters and orders rows. Rows must be in ingestion order.
// An invalid search regexp or a structured-query failure returns an
// error and no rows, so the caller renders an empty view with a
// validation message instead of stale results.
func Compute(rows []*model.Row, facets model.FacetValues, st State, query QueryEngine) ([]*model.Row, error) {
	selected := pipeline.SelectedByName(facets)

	var fileFilters, portFilters []string
	var naFilter, starred, read, unread bool
	for _, f := range st.Filters {
		switch {
		case strings.HasPrefix(f, originFilePrefix):
			fileFilters = append(fileFilters, strings.TrimPrefix(f, originFilePrefix))
		case strings.HasPrefix(f, originPortPrefix):
			portFilters = append(portFilters, strings.TrimPrefix(f, originPortPrefix))
		case f == FilterOriginNA:
			naFilter = true
		case f == FilterStarred:
			starred = true
		case f == FilterRead:
			read = true
		case f == FilterUnread:
			unread = true
		}
	}
	originActive := naFilter || len(fileFilters) > 0 || len(portFilters) > 0

	out := make([]*model.Row, 0, len(rows))
	for _, r := range rows {
		if st.From > 0 && r.Msg.Ts < st.From {
			continue
		}
		if st.To > 0 && r.Msg.Ts > st.To {
			continue
		}
		if st.Correlation != "" && r.Msg.CorrelationID != st.Correlation {
			continue
		}
		if starred && !r.Starred {
			continue
		}
		if read && !r.Opened {
			continue
		}
		if unread && r.Opened {
			continue
		}
		if originActive && !matchesOrigin(r.Msg.Origin, fileFilters, portFilters, naFilter) {
			continue
		}
		if !matchesFacets(r, selected) {
			continue
		}
		out = append(out, r)
	}

	var err error
	if query != nil && query.Active() {
		out, err = applyQuery(out, query)
	} else {
		out, err = applySearch(out, st.Search)
	}
	if err != nil {
		return nil, err
	}

	if st.EntriesOrder == "desc" {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

// matchesOrigin implements the tri-state origin group: once any origin
// filter is active, a row must match an active file filter, an active
// port filter, or (having neither file nor port) the origin_na filter.
func matchesOrigin(origin *model.Origin, files, ports []string, na bool) bool {
	file, port := "", ""
	if origin != nil {
		file, port = origin.File, origin.Port
	}

	for _, f := range files {
		if file != "" && file == f {
			return true
		}
	}
	for _, p := range ports {
		if port != "" && port == p {
			return true
		}
	}
	return na && file == "" && port == ""
}

// matchesFacets requires the row to satisfy every selected facet name
// by at least one of its selected values: AND across names, OR within
// a name.
func matchesFacets(r *model.Row, selected map[string][]string) bool {
	if len(selected) == 0 {
		return true
	}

	remaining := len(selected)
	matched := make(map[string]bool, remaining)
	for _, f := range r.Facets {
		if matched[f.Name] {
			continue
		}
		values, ok := selected[f.Name]
		if !ok {
			continue
		}
		for _, v := range values {
			if v == f.Value {
				matched[f.Name] = true
				remaining--
				break
			}
		}
		if remaining == 0 {
			return true
		}
	}
	return remaining == 0
}

// applyQuery runs the structured query over the rows' parsed JSON
// content. A result of the wrong length means the collaborator
// misbehaved; the rows pass unfiltered rather than indexing out of
// bounds.
func applyQuery(rows []*model.Row, query QueryEngine) ([]*model.Row, error) {
	data := make([]map[string]any, len(rows))
	for i, r := range rows {
		if obj, ok := r.Msg.JSONContent.(map[string]any); ok {
			data[i] = obj
		} else {
			data[i] = map[string]any{}
		}
	}

	result, err := query.RunQuery(data)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if len(result) != len(rows) {
		return rows, nil
	}

	out := rows[:0]
	for i, r := range rows {
		if result[i] {
			out = append(out, r)
		}
	}
	return out, nil
}

func applySearch(rows []*model.Row, term string) ([]*model.Row, error) {
	if utf8.RuneCountInString(term) < minSearchLength {
		return rows, nil
	}

	re, err := regexp.Compile("(?i)" + term)
	if err != nil {
		return nil, fmt.Errorf("invalid search pattern: %w", err)
	}

	out := rows[:0]
	for _, r := range rows {
		if re.MatchString(r.Msg.Content) {
			out = append(out, r)
		}
	}
	return out, nil
}
