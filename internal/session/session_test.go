package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/logdyhq/logdy-ui/internal/handler"
	"github.com/logdyhq/logdy-ui/internal/layout"
	"github.com/logdyhq/logdy-ui/internal/model"
	"github.com/logdyhq/logdy-ui/internal/storage"
	"github.com/logdyhq/logdy-ui/internal/transport"
)

// memStore is an in-memory Store for session tests.
type memStore struct {
	mu      sync.Mutex
	records map[string][]byte
	seq     int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string][]byte)}
}

func (m *memStore) Load() ([]storage.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]storage.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, storage.Record{ID: id, Payload: m.records[id]})
	}
	return out, nil
}

func (m *memStore) GetOne(id string) (*storage.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &storage.Record{ID: id, Payload: payload}, nil
}

func (m *memStore) Add(payload []byte, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		m.seq++
		id = fmt.Sprintf("%06d", m.seq)
	}
	m.records[id] = payload
	return id, nil
}

func (m *memStore) Update(id string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = payload
	return nil
}

func (m *memStore) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *memStore) RemoveFirst() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	first := ""
	for id := range m.records {
		if first == "" || id < first {
			first = id
		}
	}
	delete(m.records, first)
	return nil
}

func (m *memStore) RemoveAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string][]byte)
	return nil
}

func (m *memStore) ClearUnknown(known []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	keep := make(map[string]bool, len(known))
	for _, id := range known {
		keep[id] = true
	}
	for id := range m.records {
		if !keep[id] {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// fakeClient records the control verbs it receives.
type fakeClient struct {
	resumed       int
	cursorResumed int
	paused        int
	counters      transport.Counters
	ch            chan model.Message
}

func (f *fakeClient) Resume(ctx context.Context) error           { f.resumed++; return nil }
func (f *fakeClient) ResumeFromCursor(ctx context.Context) error { f.cursorResumed++; return nil }
func (f *fakeClient) Pause(ctx context.Context) error            { f.paused++; return nil }
func (f *fakeClient) Status(ctx context.Context) (transport.Counters, error) {
	return f.counters, nil
}
func (f *fakeClient) Messages() <-chan model.Message { return f.ch }

func testLayout(t *testing.T, maxMessages int) *layout.Layout {
	t.Helper()
	l := layout.New("test", model.Settings{MaxMessages: maxMessages}, handler.NewCompiler())
	cols := []*model.Column{
		{Name: "raw", HandlerSource: `(line) => {
			return { text: line.content }
		}`},
		{Name: "level", HandlerSource: `(line) => {
			return {
				text: line.json_content.level,
				facets: [{ name: "Level", value: line.json_content.level }]
			}
		}`},
	}
	for _, c := range cols {
		if err := l.Add(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	return l
}

func jsonMsg(id, level string, ts int64) model.Message {
	return model.Message{
		ID:      id,
		LogType: model.LogTypeStdout,
		Content: fmt.Sprintf(`{"level":"%s"}`, level),
		Ts:      ts,
	}
}

func TestIngestBuildsRowFacetsAndCounters(t *testing.T) {
	logs := newMemStore()
	s := New(testLayout(t, 100), &fakeClient{}, logs)

	s.Ingest(jsonMsg("m1", "error", 1000))
	s.Ingest(jsonMsg("m2", "info", 2000))

	if s.RowCount() != 2 {
		t.Fatalf("expected 2 rows, got %d", s.RowCount())
	}
	if got := s.Counters()["unread"]; got != 2 {
		t.Errorf("expected 2 unread, got %d", got)
	}

	facets := s.Facets()
	level, ok := facets["Level"]
	if !ok {
		t.Fatal("expected Level facet collection")
	}
	if len(level.Items) != 2 {
		t.Errorf("expected 2 facet items, got %d", len(level.Items))
	}

	if logs.len() != 2 {
		t.Errorf("expected 2 persisted rows, got %d", logs.len())
	}
}

func TestIngestDropsDuplicateIDs(t *testing.T) {
	s := New(testLayout(t, 100), &fakeClient{}, newMemStore())

	s.Ingest(jsonMsg("m1", "info", 1000))
	s.Ingest(jsonMsg("m1", "info", 1000))

	if s.RowCount() != 1 {
		t.Fatalf("expected 1 row, got %d", s.RowCount())
	}
	if got := s.Counters()["unread"]; got != 1 {
		t.Errorf("expected 1 unread, got %d", got)
	}
}

func TestIngestEvictionMirrorsToStorage(t *testing.T) {
	logs := newMemStore()
	s := New(testLayout(t, 2), &fakeClient{}, logs)

	// Ids whose lexical order differs from arrival order, as uuids do.
	// Eviction must remove the oldest arrival, not the smallest id.
	s.Ingest(jsonMsg("z1", "info", 1000))
	s.Ingest(jsonMsg("a1", "info", 2000))
	s.Ingest(jsonMsg("b1", "info", 3000))

	if s.RowCount() != 2 {
		t.Fatalf("expected window of 2 rows, got %d", s.RowCount())
	}
	if logs.len() != 2 {
		t.Fatalf("expected 2 persisted rows, got %d", logs.len())
	}
	rec, err := logs.GetOne("z1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Error("expected evicted row z1 removed from storage")
	}
	for _, id := range []string{"a1", "b1"} {
		rec, err := logs.GetOne(id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec == nil {
			t.Errorf("expected live row %s kept in storage", id)
		}
	}
}

func TestOpenLogDrawerMarksReadOnce(t *testing.T) {
	s := New(testLayout(t, 100), &fakeClient{}, newMemStore())
	s.Ingest(jsonMsg("m1", "info", 1000))
	s.Ingest(jsonMsg("m2", "info", 2000))
	s.Ingest(jsonMsg("m3", "info", 3000))

	row, err := s.OpenLogDrawer("m2", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row == nil || row.ID != "m2" {
		t.Fatalf("expected row m2, got %+v", row)
	}
	if !row.Opened || !row.Open {
		t.Error("expected row opened and drawer open")
	}

	c := s.Counters()
	if c["read"] != 1 || c["unread"] != 2 {
		t.Errorf("expected read=1 unread=2, got %v", c)
	}

	// Reopening must not double-count.
	if _, err := s.OpenLogDrawer("m2", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c = s.Counters()
	if c["read"] != 1 || c["unread"] != 2 {
		t.Errorf("expected counters unchanged, got %v", c)
	}
}

func TestOpenLogDrawerNavigatesByDelta(t *testing.T) {
	s := New(testLayout(t, 100), &fakeClient{}, newMemStore())
	s.Ingest(jsonMsg("m1", "info", 1000))
	s.Ingest(jsonMsg("m2", "info", 2000))
	s.Ingest(jsonMsg("m3", "info", 3000))

	row, err := s.OpenLogDrawer("m2", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.ID != "m3" {
		t.Errorf("expected m3, got %s", row.ID)
	}

	// Navigation clamps at the last row.
	row, err = s.OpenLogDrawer("m3", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.ID != "m3" {
		t.Errorf("expected clamp at m3, got %s", row.ID)
	}

	row, err = s.OpenLogDrawer("m1", -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.ID != "m1" {
		t.Errorf("expected clamp at m1, got %s", row.ID)
	}

	if drawer := s.Drawer(); drawer == nil || drawer.ID != "m1" {
		t.Errorf("expected drawer at m1, got %+v", drawer)
	}

	s.CloseLogDrawer()
	if s.Drawer() != nil {
		t.Error("expected drawer closed")
	}
}

func TestOpenLogDrawerUnknownRow(t *testing.T) {
	s := New(testLayout(t, 100), &fakeClient{}, newMemStore())
	s.Ingest(jsonMsg("m1", "info", 1000))

	row, err := s.OpenLogDrawer("missing", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row != nil {
		t.Errorf("expected nil row, got %+v", row)
	}
}

func TestToggleRowMark(t *testing.T) {
	s := New(testLayout(t, 100), &fakeClient{}, newMemStore())
	s.Ingest(jsonMsg("m1", "info", 1000))

	s.ToggleRowMark("m1")
	if got := s.Counters()["starred"]; got != 1 {
		t.Errorf("expected 1 starred, got %d", got)
	}
	s.ToggleRowMark("m1")
	if got := s.Counters()["starred"]; got != 0 {
		t.Errorf("expected 0 starred, got %d", got)
	}
	// Unknown id is ignored.
	s.ToggleRowMark("missing")
	if got := s.Counters()["starred"]; got != 0 {
		t.Errorf("expected 0 starred, got %d", got)
	}
}

func TestClearAllRows(t *testing.T) {
	logs := newMemStore()
	s := New(testLayout(t, 100), &fakeClient{}, logs)
	s.Ingest(jsonMsg("m1", "info", 1000))
	s.Ingest(jsonMsg("m2", "error", 2000))
	if _, err := s.OpenLogDrawer("m1", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.ClearAllRows()

	if s.RowCount() != 0 {
		t.Errorf("expected empty window, got %d rows", s.RowCount())
	}
	if len(s.Facets()) != 0 {
		t.Error("expected facets reset")
	}
	c := s.Counters()
	if c["read"] != 0 || c["unread"] != 0 || c["starred"] != 0 {
		t.Errorf("expected zero counters, got %v", c)
	}
	if logs.len() != 0 {
		t.Errorf("expected storage cleared, got %d records", logs.len())
	}
	if s.Drawer() != nil {
		t.Error("expected drawer closed")
	}
}

func TestLoadStoredRestoresMetadata(t *testing.T) {
	logs := newMemStore()
	for i, stored := range []model.StoredMessage{
		{ID: "m1", Message: jsonMsg("m1", "info", 1000), Opened: true},
		{ID: "m2", Message: jsonMsg("m2", "error", 2000), Starred: true},
	} {
		payload, err := json.Marshal(stored)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := logs.Update(fmt.Sprintf("m%d", i+1), payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	s := New(testLayout(t, 100), &fakeClient{}, logs)
	if err := s.LoadStored(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.RowCount() != 2 {
		t.Fatalf("expected 2 rows, got %d", s.RowCount())
	}
	c := s.Counters()
	if c["read"] != 1 || c["unread"] != 1 || c["starred"] != 1 {
		t.Errorf("expected read=1 unread=1 starred=1, got %v", c)
	}

	rows, err := s.DisplayRows()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rows[0].Opened {
		t.Error("expected m1 restored as opened")
	}
	if !rows[1].Starred {
		t.Error("expected m2 restored as starred")
	}
}

func TestEditLayoutDuringIngestion(t *testing.T) {
	s := New(testLayout(t, 1000), &fakeClient{}, newMemStore())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			s.Ingest(jsonMsg(fmt.Sprintf("m%03d", i), "info", int64(i+1)))
		}
	}()

	for i := 0; i < 20; i++ {
		err := s.EditLayout(func(l *layout.Layout) error {
			return l.Add(&model.Column{
				Name: fmt.Sprintf("extra%d", i),
				HandlerSource: `(line) => {
					return { text: line.content }
				}`,
			})
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	<-done

	if s.RowCount() != 200 {
		t.Errorf("expected 200 rows, got %d", s.RowCount())
	}
}

func TestEditLayoutShrinkEvictsAndMirrors(t *testing.T) {
	logs := newMemStore()
	s := New(testLayout(t, 10), &fakeClient{}, logs)

	s.Ingest(jsonMsg("z1", "info", 1000))
	s.Ingest(jsonMsg("a1", "info", 2000))
	s.Ingest(jsonMsg("b1", "info", 3000))
	s.Ingest(jsonMsg("c1", "info", 4000))

	err := s.EditLayout(func(l *layout.Layout) error {
		l.Settings.MaxMessages = 2
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.RowCount() != 2 {
		t.Fatalf("expected window shrunk to 2 rows, got %d", s.RowCount())
	}
	for _, id := range []string{"z1", "a1"} {
		rec, err := logs.GetOne(id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec != nil {
			t.Errorf("expected evicted row %s removed from storage", id)
		}
	}
	for _, id := range []string{"b1", "c1"} {
		rec, err := logs.GetOne(id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec == nil {
			t.Errorf("expected live row %s kept in storage", id)
		}
	}
}

func TestLoadStoredSweepsBeyondWindowBound(t *testing.T) {
	logs := newMemStore()
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("m%d", i)
		payload, err := json.Marshal(model.StoredMessage{
			ID:      id,
			Message: jsonMsg(id, "info", int64(i*1000)),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := logs.Update(id, payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	s := New(testLayout(t, 2), &fakeClient{}, logs)
	if err := s.LoadStored(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.RowCount() != 2 {
		t.Fatalf("expected window of 2 rows, got %d", s.RowCount())
	}
	if logs.len() != 2 {
		t.Errorf("expected storage swept to 2 records, got %d", logs.len())
	}
}

func TestToggleFilterAndDisplay(t *testing.T) {
	s := New(testLayout(t, 100), &fakeClient{}, newMemStore())
	s.Ingest(jsonMsg("m1", "info", 1000))
	s.Ingest(jsonMsg("m2", "error", 2000))
	s.ToggleRowMark("m2")

	s.ToggleFilter("starred")
	rows, err := s.DisplayRows()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "m2" {
		t.Fatalf("expected only m2, got %d rows", len(rows))
	}

	// Toggling again removes the filter entirely.
	s.ToggleFilter("starred")
	if got := s.EnabledFilters(); len(got) != 0 {
		t.Errorf("expected no enabled filters, got %v", got)
	}
}

func TestFacetSelectionNarrowsDisplay(t *testing.T) {
	s := New(testLayout(t, 100), &fakeClient{}, newMemStore())
	s.Ingest(jsonMsg("m1", "info", 1000))
	s.Ingest(jsonMsg("m2", "error", 2000))

	s.ToggleFacet("Level", "error")
	rows, err := s.DisplayRows()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "m2" {
		t.Fatalf("expected only m2, got %d rows", len(rows))
	}

	s.ResetAllFiltersAndFacets()
	rows, err = s.DisplayRows()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected all rows after reset, got %d", len(rows))
	}
}

func TestSetQueryNarrowsDisplay(t *testing.T) {
	s := New(testLayout(t, 100), &fakeClient{}, newMemStore())
	s.Ingest(jsonMsg("m1", "info", 1000))
	s.Ingest(jsonMsg("m2", "error", 2000))

	if err := s.SetQuery(`level == "error"`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, err := s.DisplayRows()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "m2" {
		t.Fatalf("expected only m2, got %d rows", len(rows))
	}

	if err := s.SetQuery(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, err = s.DisplayRows()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected all rows after clearing query, got %d", len(rows))
	}
}

func TestFilterCorrelatedBuildsTraces(t *testing.T) {
	s := New(testLayout(t, 100), &fakeClient{}, newMemStore())

	m1 := jsonMsg("m1", "info", 1000)
	m1.CorrelationID = "req-1"
	m1.Timing = &model.Timing{Start: 100, Duration: 50, Label: "db"}
	m2 := jsonMsg("m2", "info", 2000)
	m2.CorrelationID = "req-1"
	m2.Timing = &model.Timing{Start: 150, End: 250, Label: "render"}
	m3 := jsonMsg("m3", "info", 3000)
	m3.CorrelationID = "req-2"

	s.Ingest(m1)
	s.Ingest(m2)
	s.Ingest(m3)

	if err := s.FilterCorrelated("m1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := s.DisplayRows()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 correlated rows, got %d", len(rows))
	}

	traces := s.Traces()
	if len(traces) != 2 {
		t.Fatalf("expected 2 trace blocks, got %d", len(traces))
	}
	if tr := traces["m1"]; tr.Offset != 0 || tr.Width != 50 || tr.Label != "db" {
		t.Errorf("unexpected m1 trace: %+v", tr)
	}
	if tr := traces["m2"]; tr.Offset != 50 || tr.Width != 100 {
		t.Errorf("unexpected m2 trace: %+v", tr)
	}

	s.ResetCorrelationFilter()
	if len(s.Traces()) != 0 {
		t.Error("expected traces cleared")
	}
	rows, err = s.DisplayRows()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("expected all rows after reset, got %d", len(rows))
	}
}

func TestFilterCorrelatedWithoutCorrelationID(t *testing.T) {
	s := New(testLayout(t, 100), &fakeClient{}, newMemStore())
	s.Ingest(jsonMsg("m1", "info", 1000))

	if err := s.FilterCorrelated("m1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, err := s.DisplayRows()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected view unchanged, got %d rows", len(rows))
	}
}

func TestChangeReceiveStatus(t *testing.T) {
	client := &fakeClient{counters: transport.Counters{
		MessageCount:     12500,
		LastDeliveredIdx: 10999,
	}}
	s := New(testLayout(t, 100), client, newMemStore())
	ctx := context.Background()

	if err := s.ChangeReceiveStatus(ctx, StatusFollowing); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.resumed != 1 {
		t.Errorf("expected 1 resume call, got %d", client.resumed)
	}

	if err := s.RefreshCounters(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.StatusLine(); got != "Following real-time out of 12,500 entries" {
		t.Errorf("unexpected status line: %q", got)
	}

	if err := s.ChangeReceiveStatus(ctx, StatusPaused); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Paused at entry #11,000 out of 12,500 (1,500 not seen)"
	if got := s.StatusLine(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	if err := s.ChangeReceiveStatus(ctx, "bogus"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestFormatThousands(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-45678, "-45,678"},
	}
	for _, c := range cases {
		if got := formatThousands(c.in); got != c.want {
			t.Errorf("formatThousands(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestHeartbeatDetectsAnotherTab(t *testing.T) {
	tabs := newMemStore()
	s := New(testLayout(t, 100), &fakeClient{}, newMemStore())

	var notified []Notification
	s.OnNotify = func(n Notification) { notified = append(notified, n) }

	if err := s.beat(tabs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.AnotherTab() {
		t.Fatal("expected no other tab detected")
	}

	payload, _ := json.Marshal(tabBeat{Ts: time.Now().UnixMilli()})
	if err := tabs.Update("other-tab", payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.beat(tabs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.AnotherTab() {
		t.Fatal("expected another tab detected")
	}
	if len(notified) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notified))
	}

	// Detection must notify once, not on every beat.
	if err := s.beat(tabs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notified) != 1 {
		t.Errorf("expected no repeat notification, got %d", len(notified))
	}
}

func TestHeartbeatSweepsStaleTabs(t *testing.T) {
	tabs := newMemStore()
	s := New(testLayout(t, 100), &fakeClient{}, newMemStore())

	stale, _ := json.Marshal(tabBeat{Ts: time.Now().Add(-time.Minute).UnixMilli()})
	if err := tabs.Update("dead-tab", stale); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.beat(tabs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.AnotherTab() {
		t.Error("expected stale heartbeat ignored")
	}
	rec, err := tabs.GetOne("dead-tab")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Error("expected stale heartbeat removed")
	}
}
