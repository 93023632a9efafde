package pipeline

import "github.com/logdyhq/logdy-ui/internal/model"

// Window is the bounded in-memory row window. Rows are append-only;
// when the bound is exceeded the oldest row is evicted first. The
// onEvict callback lets the session mirror eviction into persisted
// storage.
type Window struct {
	max     int
	rows    []*model.Row
	ids     map[string]bool
	onEvict func(*model.Row)
}

// NewWindow creates a window bounded to max rows. A max of 0 or less
// means unbounded. onEvict may be nil.
func NewWindow(max int, onEvict func(*model.Row)) *Window {
	return &Window{
		max:     max,
		ids:     make(map[string]bool),
		onEvict: onEvict,
	}
}

// Add appends a row and evicts the oldest rows past the bound.
// Duplicate row ids are rejected, which keeps re-delivered messages
// from appearing twice after a transport resume.
func (w *Window) Add(row *model.Row) bool {
	if w.ids[row.ID] {
		return false
	}
	w.ids[row.ID] = true
	w.rows = append(w.rows, row)

	for w.max > 0 && len(w.rows) > w.max {
		old := w.rows[0]
		w.rows = w.rows[1:]
		delete(w.ids, old.ID)
		if w.onEvict != nil {
			w.onEvict(old)
		}
	}
	return true
}

// Rows returns the rows in ingestion order. The slice is a copy; the
// contained rows are shared.
func (w *Window) Rows() []*model.Row {
	out := make([]*model.Row, len(w.rows))
	copy(out, w.rows)
	return out
}

// Get returns the row with the given id, or nil.
func (w *Window) Get(id string) *model.Row {
	if !w.ids[id] {
		return nil
	}
	for _, r := range w.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Len returns the current row count.
func (w *Window) Len() int { return len(w.rows) }

// SetMax changes the bound and evicts immediately if the window
// already exceeds it.
func (w *Window) SetMax(max int) {
	w.max = max
	for w.max > 0 && len(w.rows) > w.max {
		old := w.rows[0]
		w.rows = w.rows[1:]
		delete(w.ids, old.ID)
		if w.onEvict != nil {
			w.onEvict(old)
		}
	}
}

// Clear drops all rows without calling onEvict; callers clearing the
// window handle storage themselves.
func (w *Window) Clear() {
	w.rows = nil
	w.ids = make(map[string]bool)
}
