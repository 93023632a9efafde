// Package session owns the live state of one viewer session: the row
// window, facet collections, filter and search state, the drawer, the
// correlation trace view and the receive status. It replaces ambient
// global stores with one context object that is constructed at startup
// and threaded through the app surface.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/logdyhq/logdy-ui/internal/breser"
	"github.com/logdyhq/logdy-ui/internal/layout"
	"github.com/logdyhq/logdy-ui/internal/model"
	"github.com/logdyhq/logdy-ui/internal/pipeline"
	"github.com/logdyhq/logdy-ui/internal/storage"
	"github.com/logdyhq/logdy-ui/internal/transport"
	"github.com/logdyhq/logdy-ui/internal/view"
)

// ReceiveStatus values mirror the transport control verbs.
const (
	StatusPaused          = "paused"
	StatusFollowing       = "following"
	StatusFollowingCursor = "following_cursor"
)

// Notification is a user-facing message emitted by the session.
type Notification struct {
	Msg  string `json:"msg"`
	Type string `json:"type"` // info, error, warning, success
}

// Session is the single mutable context of the viewer. All methods are
// safe for interleaved use from the ingestion loop and the app surface;
// a view derivation always reads a consistent snapshot.
type Session struct {
	mu sync.Mutex

	layout *layout.Layout
	window *pipeline.Window
	facets model.FacetValues
	query  *breser.Engine

	toggles  map[string]bool
	counters map[string]int

	searchbar     string
	correlation   string
	from, to      int64
	drawerRowID   string
	traces        map[string]model.TraceRow
	receiveStatus string
	recvCounters  transport.Counters

	client transport.Client
	logs   storage.Store

	anotherTab bool
	tabID      string

	// OnNotify, when set, receives user-facing notifications.
	OnNotify func(Notification)
}

// New creates a session over the given layout, transport and log
// metadata store.
func New(lay *layout.Layout, client transport.Client, logs storage.Store) *Session {
	s := &Session{
		layout:        lay,
		facets:        model.FacetValues{},
		query:         breser.New(),
		toggles:       make(map[string]bool),
		counters:      map[string]int{"read": 0, "unread": 0, "starred": 0},
		traces:        make(map[string]model.TraceRow),
		receiveStatus: StatusPaused,
		client:        client,
		logs:          logs,
		tabID:         uuid.NewString(),
	}
	s.window = pipeline.NewWindow(lay.Settings.MaxMessages, s.evict)
	return s
}

// evict mirrors in-memory eviction into persisted storage. Rows are
// keyed by their message id, which carries no ordering, so the evicted
// row's own record is removed rather than the lexically smallest one.
func (s *Session) evict(row *model.Row) {
	if err := s.logs.Remove(row.ID); err != nil {
		slog.Warn("evicting persisted row", "row", row.ID, "error", err)
	}
}

// Ingest runs one raw message through the middleware chain, builds its
// row and merges its facets. A middleware failure degrades the single
// message and never halts ingestion; duplicate message ids are dropped.
func (s *Session) Ingest(msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pipeline.ParseJSONContent(&msg)

	processed, err := pipeline.ApplyMiddlewares(s.layout.Settings.Middlewares, msg)
	if err != nil {
		slog.Warn("middleware failed", "message", msg.ID, "error", err)
		s.notify(Notification{Msg: err.Error(), Type: "error"})
	}

	id := processed.ID
	if id == "" {
		id = uuid.NewString()
	}

	row := pipeline.BuildRow(id, s.layout.Columns, processed)
	if !s.window.Add(row) {
		return
	}

	pipeline.Aggregate(s.facets, row.Facets)
	s.counters["unread"]++

	s.persistRow(row)
}

// LoadStored rebuilds the row window from persisted messages, restoring
// opened/starred metadata. Called once at startup.
func (s *Session) LoadStored() error {
	records, err := s.logs.Load()
	if err != nil {
		return fmt.Errorf("loading stored rows: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		var stored model.StoredMessage
		if err := json.Unmarshal(rec.Payload, &stored); err != nil {
			slog.Warn("skipping corrupt stored row", "id", rec.ID, "error", err)
			continue
		}

		row := pipeline.BuildRow(stored.ID, s.layout.Columns, stored.Message)
		row.Opened = stored.Opened
		row.Starred = stored.Starred
		if !s.window.Add(row) {
			continue
		}

		pipeline.Aggregate(s.facets, row.Facets)
		if stored.Opened {
			s.counters["read"]++
		} else {
			s.counters["unread"]++
		}
		if stored.Starred {
			s.counters["starred"]++
		}
	}

	// Sweep records a previous session orphaned, e.g. after the window
	// bound was lowered.
	known := make([]string, 0, s.window.Len())
	for _, r := range s.window.Rows() {
		known = append(known, r.ID)
	}
	if err := s.logs.ClearUnknown(known); err != nil {
		slog.Warn("sweeping orphaned rows", "error", err)
	}
	return nil
}

// persistRow writes the row's message and metadata, best-effort.
func (s *Session) persistRow(row *model.Row) {
	payload, err := json.Marshal(model.StoredMessage{
		ID:      row.ID,
		Message: row.Msg,
		Opened:  row.Opened,
		Starred: row.Starred,
	})
	if err != nil {
		slog.Warn("encoding row metadata", "row", row.ID, "error", err)
		return
	}
	if err := s.logs.Update(row.ID, payload); err != nil {
		slog.Warn("persisting row metadata", "row", row.ID, "error", err)
	}
}

// EditLayout applies a structural edit to the layout while ingestion
// and view derivation are held off. All layout mutation after startup
// goes through here; the ingest loop reads the same layout under the
// same mutex. The window bound is re-synced afterwards, evicting
// immediately when the edit lowered it.
func (s *Session) EditLayout(edit func(*layout.Layout) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := edit(s.layout)
	s.window.SetMax(s.layout.Settings.MaxMessages)
	return err
}

// DisplayRows derives the final ordered, filtered row set.
func (s *Session) DisplayRows() ([]*model.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayRowsLocked()
}

func (s *Session) displayRowsLocked() ([]*model.Row, error) {
	return view.Compute(s.window.Rows(), s.facets, view.State{
		Filters:      s.enabledFiltersLocked(),
		Search:       s.searchbar,
		Correlation:  s.correlation,
		From:         s.from,
		To:           s.to,
		EntriesOrder: s.layout.Settings.EntriesOrder,
	}, s.query)
}

// Facets returns the facet collections.
func (s *Session) Facets() model.FacetValues {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facets
}

// RowCount returns the number of rows currently in the window.
func (s *Session) RowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.Len()
}

// Counters returns the read/unread/starred counters.
func (s *Session) Counters() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out
}

// ToggleFilter flips one toggle or origin filter.
func (s *Session) ToggleFilter(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggles[name] = !s.toggles[name]
	if !s.toggles[name] {
		delete(s.toggles, name)
	}
}

// EnabledFilters returns the active filter names, sorted for stable
// derivation input.
func (s *Session) EnabledFilters() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabledFiltersLocked()
}

func (s *Session) enabledFiltersLocked() []string {
	out := make([]string, 0, len(s.toggles))
	for name, on := range s.toggles {
		if on {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// SetSearch sets the free-text search term.
func (s *Session) SetSearch(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchbar = term
}

// SetQuery compiles a structured query. An empty query clears it. The
// compile error, if any, is returned for display at the search input.
func (s *Session) SetQuery(query string) error {
	return s.query.SetExpression(query)
}

// SetTimeRange bounds displayed rows to [from, to] millisecond
// timestamps; zero values leave a bound open.
func (s *Session) SetTimeRange(from, to int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.from, s.to = from, to
}

// ToggleFacet flips the selection of one facet value.
func (s *Session) ToggleFacet(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pipeline.ToggleFacet(s.facets, name, value)
}

// ClearFacet resets the selections under one facet name.
func (s *Session) ClearFacet(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pipeline.ClearFacet(s.facets, name)
}

// ResetAllFiltersAndFacets clears toggles and facet selections while
// keeping rows, counts and search untouched.
func (s *Session) ResetAllFiltersAndFacets() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggles = make(map[string]bool)
	pipeline.ClearAllSelections(s.facets)
}

// ClearAllRows drops the window, facet collections, counters and the
// persisted rows.
func (s *Session) ClearAllRows() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.window.Clear()
	s.facets = model.FacetValues{}
	s.counters = map[string]int{"read": 0, "unread": 0, "starred": 0}
	s.traces = make(map[string]model.TraceRow)
	s.drawerRowID = ""

	if err := s.logs.RemoveAll(); err != nil {
		slog.Warn("clearing persisted rows", "error", err)
	}
}

func (s *Session) notify(n Notification) {
	if s.OnNotify != nil {
		s.OnNotify(n)
	}
}

// ChangeReceiveStatus drives the transport control verbs and records
// the resulting status.
func (s *Session) ChangeReceiveStatus(ctx context.Context, status string) error {
	var err error
	switch status {
	case StatusFollowing:
		err = s.client.Resume(ctx)
	case StatusFollowingCursor:
		err = s.client.ResumeFromCursor(ctx)
	case StatusPaused:
		err = s.client.Pause(ctx)
	default:
		return fmt.Errorf("unknown receive status: %s", status)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.receiveStatus = status
	s.mu.Unlock()
	return nil
}

// RefreshCounters pulls delivery counters from the transport.
func (s *Session) RefreshCounters(ctx context.Context) error {
	c, err := s.client.Status(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.recvCounters = c
	s.mu.Unlock()
	return nil
}

// StatusLine renders the receive status for the status bar.
func (s *Session) StatusLine() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.recvCounters
	switch s.receiveStatus {
	case StatusPaused:
		return fmt.Sprintf("Paused at entry #%s out of %s (%s not seen)",
			formatThousands(c.LastDeliveredIdx+1),
			formatThousands(c.MessageCount),
			formatThousands(c.MessageCount-c.LastDeliveredIdx-1))
	case StatusFollowing, StatusFollowingCursor:
		return fmt.Sprintf("Following real-time out of %s entries",
			formatThousands(c.MessageCount))
	default:
		return "-"
	}
}
