// Package followup tracks when the bot last replied in each conversation so
// the reply policy can relax mention gating for a short window afterwards.
package followup

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultRetention bounds how long an idle conversation entry survives when
// the janitor runs. It should be at least the largest configured follow-up
// window.
const DefaultRetention = 24 * time.Hour

// Tracker is a process-wide map from conversation id to the time of the
// bot's last reply there. Safe for concurrent use. Entries are created
// lazily on the first recorded reply and only removed by the janitor.
type Tracker struct {
	mu     sync.Mutex
	last   map[string]time.Time
	now    func() time.Time
	cron   *cron.Cron
	logger *slog.Logger
}

func NewTracker(log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		last:   make(map[string]time.Time),
		now:    time.Now,
		logger: log.With(slog.String("service", "followup")),
	}
}

// RecordReply marks now as the bot's last reply time in the conversation,
// overwriting any previous value.
func (t *Tracker) RecordReply(conversationID string) {
	if conversationID == "" {
		return
	}
	t.mu.Lock()
	t.last[conversationID] = t.now()
	t.mu.Unlock()
}

// WithinWindow reports whether the bot replied in the conversation less than
// windowSeconds ago. Unknown conversations and non-positive windows are
// never within the window.
func (t *Tracker) WithinWindow(conversationID string, windowSeconds int) bool {
	if conversationID == "" || windowSeconds <= 0 {
		return false
	}
	t.mu.Lock()
	last, ok := t.last[conversationID]
	t.mu.Unlock()
	if !ok {
		return false
	}
	return t.now().Sub(last) < time.Duration(windowSeconds)*time.Second
}

// Len returns the number of tracked conversations.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}

// Evict drops entries whose last reply is older than retention and returns
// how many were removed.
func (t *Tracker) Evict(retention time.Duration) int {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := t.now().Add(-retention)
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, last := range t.last {
		if last.Before(cutoff) {
			delete(t.last, id)
			removed++
		}
	}
	return removed
}

// StartJanitor schedules periodic eviction of entries older than retention.
// Without a janitor the tracker keeps entries for the process lifetime.
func (t *Tracker) StartJanitor(interval, retention time.Duration) error {
	if t.cron != nil {
		return fmt.Errorf("janitor already started")
	}
	if interval <= 0 {
		interval = time.Hour
	}
	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if removed := t.Evict(retention); removed > 0 {
			t.logger.Debug("evicted idle conversations", slog.Int("count", removed))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule follow-up janitor: %w", err)
	}
	t.cron = c
	c.Start()
	return nil
}

// StopJanitor stops the eviction schedule if one is running.
func (t *Tracker) StopJanitor() {
	if t.cron == nil {
		return
	}
	t.cron.Stop()
	t.cron = nil
}

// SetClock replaces the time source; tests use this to control the window.
func (t *Tracker) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}
