package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/logdyhq/logdy-ui/internal/handler"
	"github.com/logdyhq/logdy-ui/internal/layout"
	"github.com/logdyhq/logdy-ui/internal/model"
	"github.com/logdyhq/logdy-ui/internal/session"
	"github.com/logdyhq/logdy-ui/internal/storage"
	"github.com/logdyhq/logdy-ui/internal/transport"
)

// Storage scopes. Row metadata, layout documents and tab liveness all
// share one database under distinct prefixes.
const (
	scopeLogs    = "logs"
	scopeLayouts = "layouts"
	scopeTabs    = "tabs"

	currentLayoutKey = "current"
)

var errNotInitialized = errors.New("application is not initialized")

// App is the main application struct that Wails binds to the frontend.
// All exported methods become callable from JavaScript.
type App struct {
	ctx context.Context

	db       *storage.DB
	layouts  storage.Store
	compiler *handler.Compiler
	session  *session.Session
	client   transport.Client

	cancel  context.CancelFunc
	initErr error
}

// NewApp creates a new App instance.
func NewApp() *App {
	return &App{}
}

// startup is called when the app starts. The context is saved
// so we can call runtime methods (dialogs, events, etc.)
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	if err := a.initialize(ctx); err != nil {
		a.initErr = err
		runtime.EventsEmit(ctx, "notification", session.Notification{
			Msg: err.Error(), Type: "error",
		})
	}
}

// ready guards every bound method: until initialize succeeded there is
// no session to act on, and a frontend call must get an error back
// instead of a nil dereference.
func (a *App) ready() error {
	if a.session == nil {
		if a.initErr != nil {
			return fmt.Errorf("%w: %v", errNotInitialized, a.initErr)
		}
		return errNotInitialized
	}
	return nil
}

func (a *App) initialize(ctx context.Context) error {
	db, err := storage.OpenStore(dbDriver(), dbLocation())
	if err != nil {
		return fmt.Errorf("opening local storage: %w", err)
	}
	a.db = db
	a.layouts = db.Scope(scopeLayouts)

	a.compiler = handler.NewCompiler()
	lay, err := a.restoreOrSeedLayout()
	if err != nil {
		return err
	}

	demo := transport.NewDemo(300*time.Millisecond, true)
	a.client = demo

	a.session = session.New(lay, a.client, db.Scope(scopeLogs))
	a.session.OnNotify = func(n session.Notification) {
		runtime.EventsEmit(a.ctx, "notification", n)
	}

	if err := a.session.LoadStored(); err != nil {
		runtime.EventsEmit(ctx, "notification", session.Notification{
			Msg: err.Error(), Type: "warning",
		})
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	demo.Start(loopCtx)
	go a.ingestLoop(loopCtx)
	a.session.StartHeartbeat(loopCtx, db.Scope(scopeTabs), time.Second)

	return a.session.ChangeReceiveStatus(ctx, session.StatusFollowing)
}

// ingestLoop feeds transport messages into the session and tells the
// frontend to re-render.
func (a *App) ingestLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-a.client.Messages():
			if !ok {
				return
			}
			a.session.Ingest(msg)
			runtime.EventsEmit(a.ctx, "rows:changed")
		}
	}
}

// restoreOrSeedLayout loads the persisted working layout, falling back
// to the demo layout on first run. Runs before the session exists, so
// it touches the layout directly.
func (a *App) restoreOrSeedLayout() (*layout.Layout, error) {
	rec, err := a.layouts.GetOne(currentLayoutKey)
	if err == nil && rec != nil {
		l := layout.New("", model.Settings{}, a.compiler)
		if err := l.LoadFromJSON(rec.Payload); err != nil {
			runtime.EventsEmit(a.ctx, "notification", session.Notification{
				Msg: fmt.Sprintf("some handlers failed to compile: %v", err), Type: "warning",
			})
		}
		return l, nil
	}

	l, err := transport.DemoLayout(a.compiler)
	if err != nil {
		return nil, fmt.Errorf("building demo layout: %w", err)
	}
	payload, err := l.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("serializing layout: %w", err)
	}
	if err := a.layouts.Update(currentLayoutKey, payload); err != nil {
		return nil, fmt.Errorf("persisting layout: %w", err)
	}
	return l, nil
}

// editLayout routes a structural layout edit through the session, so
// the edit cannot race the ingest loop, then persists the working
// layout document.
func (a *App) editLayout(edit func(*layout.Layout) error) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.session.EditLayout(func(l *layout.Layout) error {
		if err := edit(l); err != nil {
			return err
		}
		payload, err := l.ToJSON()
		if err != nil {
			return fmt.Errorf("serializing layout: %w", err)
		}
		return a.layouts.Update(currentLayoutKey, payload)
	})
}

// shutdown is called when the app is closing.
func (a *App) shutdown(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// -- Rows and view state --

// GetRows returns the rows to render, after all active filters.
func (a *App) GetRows() ([]*model.Row, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.session.DisplayRows()
}

// GetFacets returns the facet collections for the sidebar.
func (a *App) GetFacets() model.FacetValues {
	if a.ready() != nil {
		return model.FacetValues{}
	}
	return a.session.Facets()
}

// GetCounters returns the read/unread/starred counters.
func (a *App) GetCounters() map[string]int {
	if a.ready() != nil {
		return map[string]int{}
	}
	return a.session.Counters()
}

// GetStatusLine returns the receive status rendered for the status bar.
func (a *App) GetStatusLine() string {
	if a.ready() != nil {
		return "-"
	}
	return a.session.StatusLine()
}

// ClearAllRows drops every row, in memory and persisted.
func (a *App) ClearAllRows() {
	if a.ready() != nil {
		return
	}
	a.session.ClearAllRows()
	runtime.EventsEmit(a.ctx, "rows:changed")
}

// IngestMessage accepts a message pushed by the frontend or an
// external API caller, outside the transport feed.
func (a *App) IngestMessage(msg model.Message) error {
	if err := a.ready(); err != nil {
		return err
	}
	if msg.Origin == nil {
		msg.Origin = &model.Origin{APISource: "api"}
	}
	a.session.Ingest(msg)
	runtime.EventsEmit(a.ctx, "rows:changed")
	return nil
}

// -- Filters, search, facets --

// ToggleFilter flips one of the toggle or origin filters.
func (a *App) ToggleFilter(name string) {
	if a.ready() != nil {
		return
	}
	a.session.ToggleFilter(name)
}

// GetEnabledFilters returns the active filter names.
func (a *App) GetEnabledFilters() []string {
	if a.ready() != nil {
		return nil
	}
	return a.session.EnabledFilters()
}

// SetSearch sets the free-text search term.
func (a *App) SetSearch(term string) {
	if a.ready() != nil {
		return
	}
	a.session.SetSearch(term)
}

// SetQuery compiles a structured query expression. The returned error
// is shown at the search input; the previous query stays active.
func (a *App) SetQuery(query string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.session.SetQuery(query)
}

// SetTimeRange bounds the view to [from, to] millisecond timestamps.
// A zero value leaves that bound open.
func (a *App) SetTimeRange(from, to int64) {
	if a.ready() != nil {
		return
	}
	a.session.SetTimeRange(from, to)
}

// ToggleFacet flips the selection of one facet value.
func (a *App) ToggleFacet(name, value string) {
	if a.ready() != nil {
		return
	}
	a.session.ToggleFacet(name, value)
}

// ClearFacet resets the selections under one facet name.
func (a *App) ClearFacet(name string) {
	if a.ready() != nil {
		return
	}
	a.session.ClearFacet(name)
}

// ResetAllFiltersAndFacets clears toggles and facet selections.
func (a *App) ResetAllFiltersAndFacets() {
	if a.ready() != nil {
		return
	}
	a.session.ResetAllFiltersAndFacets()
}

// -- Drawer and row marks --

// OpenLogDrawer opens the drawer at the given row shifted by delta
// displayed positions, marking the row read.
func (a *App) OpenLogDrawer(id string, delta int) (*model.Row, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.session.OpenLogDrawer(id, delta)
}

// CloseLogDrawer closes the drawer.
func (a *App) CloseLogDrawer() {
	if a.ready() != nil {
		return
	}
	a.session.CloseLogDrawer()
}

// ToggleRowMark flips the star on a row.
func (a *App) ToggleRowMark(id string) {
	if a.ready() != nil {
		return
	}
	a.session.ToggleRowMark(id)
}

// -- Correlation traces --

// FilterCorrelated narrows the view to rows correlated with the given
// row and builds their trace blocks.
func (a *App) FilterCorrelated(id string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.session.FilterCorrelated(id)
}

// RefreshFilterCorrelated recomputes traces for the active correlation.
func (a *App) RefreshFilterCorrelated() error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.session.RefreshFilterCorrelated()
}

// GetTraces returns the trace blocks keyed by row id.
func (a *App) GetTraces() map[string]model.TraceRow {
	if a.ready() != nil {
		return map[string]model.TraceRow{}
	}
	return a.session.Traces()
}

// ResetCorrelationFilter clears the correlation filter.
func (a *App) ResetCorrelationFilter() {
	if a.ready() != nil {
		return
	}
	a.session.ResetCorrelationFilter()
}

// -- Receive status --

// ChangeReceiveStatus switches between following, following from the
// cursor and paused.
func (a *App) ChangeReceiveStatus(status string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.session.ChangeReceiveStatus(a.ctx, status)
}

// RefreshCounters pulls delivery counters from the transport.
func (a *App) RefreshCounters() error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.session.RefreshCounters(a.ctx)
}

// -- Layout operations --

// LayoutDoc is the serialized layout document handed to the frontend.
type LayoutDoc struct {
	Name     string          `json:"name"`
	Columns  []*model.Column `json:"columns"`
	Settings model.Settings  `json:"settings"`
}

// GetLayout returns a snapshot of the live layout document.
func (a *App) GetLayout() (*LayoutDoc, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	var doc LayoutDoc
	err := a.session.EditLayout(func(l *layout.Layout) error {
		payload, err := l.ToJSON()
		if err != nil {
			return err
		}
		return json.Unmarshal(payload, &doc)
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// AddColumn appends a column, compiling its handler source.
func (a *App) AddColumn(col *model.Column) error {
	return a.editLayout(func(l *layout.Layout) error {
		return l.Add(col)
	})
}

// UpdateColumn replaces a column, recompiling its handler source.
func (a *App) UpdateColumn(col *model.Column) error {
	return a.editLayout(func(l *layout.Layout) error {
		return l.Update(col)
	})
}

// RemoveColumn deletes a column.
func (a *App) RemoveColumn(id string) error {
	return a.editLayout(func(l *layout.Layout) error {
		l.Remove(id)
		return nil
	})
}

// MoveColumn swaps a column with its neighbor: diff > 0 right, < 0 left.
func (a *App) MoveColumn(id string, diff int) error {
	return a.editLayout(func(l *layout.Layout) error {
		l.Move(id, diff)
		return nil
	})
}

// UpdateSettings replaces the layout settings, recompiling middleware
// handlers. The row window is rebounded as part of the edit.
func (a *App) UpdateSettings(settings model.Settings) error {
	return a.editLayout(func(l *layout.Layout) error {
		l.Settings = settings
		return l.ProcessMiddlewareHandlers()
	})
}

// -- Layout presets --

// LayoutPreset is a named saved layout listing entry.
type LayoutPreset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SaveLayout stores the current layout under a preset name.
func (a *App) SaveLayout(name string) error {
	return a.editLayout(func(l *layout.Layout) error {
		l.Name = name
		payload, err := l.ToJSON()
		if err != nil {
			return fmt.Errorf("serializing layout: %w", err)
		}
		if _, err := a.layouts.Add(payload, ""); err != nil {
			return fmt.Errorf("saving layout: %w", err)
		}
		return nil
	})
}

// LoadLayout replaces the working layout with a saved preset.
func (a *App) LoadLayout(id string) error {
	if err := a.ready(); err != nil {
		return err
	}
	rec, err := a.layouts.GetOne(id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no layout with id %s", id)
	}
	return a.editLayout(func(l *layout.Layout) error {
		return l.LoadFromJSON(rec.Payload)
	})
}

// ListLayouts returns the saved layout presets.
func (a *App) ListLayouts() ([]LayoutPreset, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	records, err := a.layouts.Load()
	if err != nil {
		return nil, err
	}

	var presets []LayoutPreset
	for _, rec := range records {
		if rec.ID == currentLayoutKey {
			continue
		}
		var doc struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(rec.Payload, &doc); err != nil {
			continue
		}
		presets = append(presets, LayoutPreset{ID: rec.ID, Name: doc.Name})
	}
	return presets, nil
}

// DeleteLayout removes a saved preset.
func (a *App) DeleteLayout(id string) error {
	if err := a.ready(); err != nil {
		return err
	}
	if id == currentLayoutKey {
		return fmt.Errorf("cannot delete the working layout")
	}
	return a.layouts.Remove(id)
}

// ExportLayout returns the current layout as a JSON document.
func (a *App) ExportLayout() (string, error) {
	if err := a.ready(); err != nil {
		return "", err
	}
	var out string
	err := a.session.EditLayout(func(l *layout.Layout) error {
		payload, err := l.ToJSON()
		if err != nil {
			return err
		}
		out = string(payload)
		return nil
	})
	return out, err
}

// ImportLayout replaces the working layout with a JSON document,
// typically exported from another instance.
func (a *App) ImportLayout(doc string) error {
	return a.editLayout(func(l *layout.Layout) error {
		return l.LoadFromJSON([]byte(doc))
	})
}

// -- Internal helpers --

// GetVersion returns the application version string.
func (a *App) GetVersion() string {
	return Version
}

// AnotherTab reports whether another session shares the storage.
func (a *App) AnotherTab() bool {
	if a.ready() != nil {
		return false
	}
	return a.session.AnotherTab()
}

func dbDriver() string {
	if d := os.Getenv("LOGDY_UI_DB_DRIVER"); d != "" {
		return d
	}
	return "sqlite"
}

func dbLocation() string {
	if dsn := os.Getenv("LOGDY_UI_DB"); dsn != "" {
		return dsn
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	path := filepath.Join(dir, "logdy-ui")
	os.MkdirAll(path, 0o755)
	return filepath.Join(path, "logdy.db")
}
