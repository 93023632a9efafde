package session

import "github.com/logdyhq/logdy-ui/internal/model"

// OpenLogDrawer opens the log drawer at the row with the given id,
// shifted by delta positions within the currently displayed set. A
// delta of 0 opens the row itself, -1 the previous displayed row, +1
// the next; navigation clamps at either end. Opening a row marks it
// read exactly once.
func (s *Session) OpenLogDrawer(id string, delta int) (*model.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	displayed, err := s.displayRowsLocked()
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, r := range displayed {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, nil
	}

	idx += delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(displayed) {
		idx = len(displayed) - 1
	}
	row := displayed[idx]

	if prev := s.window.Get(s.drawerRowID); prev != nil && prev.ID != row.ID {
		prev.Open = false
	}

	row.Open = true
	s.drawerRowID = row.ID
	if !row.Opened {
		row.Opened = true
		s.counters["read"]++
		s.counters["unread"]--
		s.persistRow(row)
	}
	return row, nil
}

// CloseLogDrawer closes the drawer, leaving the read marker in place.
func (s *Session) CloseLogDrawer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row := s.window.Get(s.drawerRowID); row != nil {
		row.Open = false
	}
	s.drawerRowID = ""
}

// Drawer returns the row the drawer is open at, or nil.
func (s *Session) Drawer() *model.Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drawerRowID == "" {
		return nil
	}
	return s.window.Get(s.drawerRowID)
}

// ToggleRowMark flips the star on a row and keeps the starred counter
// in step. Unknown ids are ignored.
func (s *Session) ToggleRowMark(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.window.Get(id)
	if row == nil {
		return
	}

	row.Starred = !row.Starred
	if row.Starred {
		s.counters["starred"]++
	} else {
		s.counters["starred"]--
	}
	s.persistRow(row)
}
