package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/logdyhq/logdy-ui/internal/storage"
)

// staleTabAfter is how long a tab heartbeat stays fresh. Heartbeats
// older than this belong to tabs that exited without cleaning up.
const staleTabAfter = 5 * time.Second

type tabBeat struct {
	Ts int64 `json:"ts"`
}

// StartHeartbeat periodically writes this session's heartbeat into the
// tabs store and watches for other live sessions on the same store.
// The first time another live session is seen, a warning notification
// fires; AnotherTab keeps reporting it afterwards.
func (s *Session) StartHeartbeat(ctx context.Context, tabs storage.Store, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if err := s.beat(tabs); err != nil {
				slog.Warn("tab heartbeat", "error", err)
			}
			select {
			case <-ctx.Done():
				if err := tabs.Remove(s.tabID); err != nil {
					slog.Warn("removing tab heartbeat", "error", err)
				}
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Session) beat(tabs storage.Store) error {
	payload, err := json.Marshal(tabBeat{Ts: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	if err := tabs.Update(s.tabID, payload); err != nil {
		return err
	}

	records, err := tabs.Load()
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-staleTabAfter).UnixMilli()
	live := false
	for _, rec := range records {
		if rec.ID == s.tabID {
			continue
		}
		var beat tabBeat
		if err := json.Unmarshal(rec.Payload, &beat); err != nil || beat.Ts < cutoff {
			// Stale or corrupt entry from a tab that never cleaned up.
			if err := tabs.Remove(rec.ID); err != nil {
				slog.Warn("removing stale tab heartbeat", "id", rec.ID, "error", err)
			}
			continue
		}
		live = true
	}

	s.mu.Lock()
	first := live && !s.anotherTab
	s.anotherTab = live
	s.mu.Unlock()

	if first {
		s.notify(Notification{
			Msg:  "Another session is open on the same storage; edits may conflict.",
			Type: "warning",
		})
	}
	return nil
}

// AnotherTab reports whether another live session shares the storage.
func (s *Session) AnotherTab() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anotherTab
}

// TabID returns this session's heartbeat identity.
func (s *Session) TabID() string {
	return s.tabID
}
