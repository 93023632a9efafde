package session

import "github.com/logdyhq/logdy-ui/internal/model"

// FilterCorrelated narrows the view to rows sharing the correlation id
// of the given row and builds the trace blocks for the set. Rows
// without a correlation id are ignored.
func (s *Session) FilterCorrelated(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.window.Get(id)
	if row == nil || row.Msg.CorrelationID == "" {
		return nil
	}
	s.correlation = row.Msg.CorrelationID
	return s.refreshTracesLocked()
}

// RefreshFilterCorrelated recomputes trace blocks for the active
// correlation filter, picking up rows that arrived since it was set.
func (s *Session) RefreshFilterCorrelated() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.correlation == "" {
		return nil
	}
	return s.refreshTracesLocked()
}

// refreshTracesLocked derives one trace block per timed row in the
// displayed set, with offsets relative to the earliest start.
func (s *Session) refreshTracesLocked() error {
	displayed, err := s.displayRowsLocked()
	if err != nil {
		return err
	}

	var timed []*model.Row
	var minStart int64
	for _, r := range displayed {
		if r.Msg.Timing == nil {
			continue
		}
		if len(timed) == 0 || r.Msg.Timing.Start < minStart {
			minStart = r.Msg.Timing.Start
		}
		timed = append(timed, r)
	}

	traces := make(map[string]model.TraceRow, len(timed))
	for _, r := range timed {
		t := r.Msg.Timing
		width := t.Duration
		if t.End != 0 {
			width = t.End - t.Start
		}
		traces[r.ID] = model.TraceRow{
			ID:     r.ID,
			Offset: t.Start - minStart,
			Width:  width,
			Label:  t.Label,
			Style:  t.Style,
		}
	}
	s.traces = traces
	return nil
}

// Traces returns the trace blocks keyed by row id.
func (s *Session) Traces() map[string]model.TraceRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]model.TraceRow, len(s.traces))
	for k, v := range s.traces {
		out[k] = v
	}
	return out
}

// ResetCorrelationFilter clears the correlation filter and its traces.
func (s *Session) ResetCorrelationFilter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.correlation = ""
	s.traces = make(map[string]model.TraceRow)
}
