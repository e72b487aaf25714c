package integration

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTriggerWindow is returned for a malformed window definition
var ErrInvalidTriggerWindow = errors.New("integration: invalid trigger window")

// TriggerWindow is a daily local-time window in which a tenant is due for a pull
type TriggerWindow struct {
	Start    time.Duration // offset from local midnight
	Duration time.Duration
}

// DefaultTriggerWindow is the ten minutes starting at 00:30 local time
func DefaultTriggerWindow() TriggerWindow {
	return TriggerWindow{Start: 30 * time.Minute, Duration: 10 * time.Minute}
}

// ParseTriggerWindow parses an "HH:MM" start and a duration
func ParseTriggerWindow(start string, duration time.Duration) (TriggerWindow, error) {
	var h, m int
	if _, err := fmt.Sscanf(start, "%d:%d", &h, &m); err != nil {
		return TriggerWindow{}, fmt.Errorf("%w: start %q", ErrInvalidTriggerWindow, start)
	}
	w := TriggerWindow{
		Start:    time.Duration(h)*time.Hour + time.Duration(m)*time.Minute,
		Duration: duration,
	}
	if err := w.Validate(); err != nil {
		return TriggerWindow{}, err
	}
	return w, nil
}

// Validate checks the window bounds
func (w TriggerWindow) Validate() error {
	if w.Start < 0 || w.Start >= 24*time.Hour {
		return fmt.Errorf("%w: start must be within a day", ErrInvalidTriggerWindow)
	}
	if w.Duration <= 0 || w.Duration >= 24*time.Hour {
		return fmt.Errorf("%w: duration must be positive and under a day", ErrInvalidTriggerWindow)
	}
	return nil
}

// Occurrence returns the start of the window occurrence containing now in loc.
// The second result is false when now is outside the window. Windows that
// cross local midnight are attributed to the day they started on.
func (w TriggerWindow) Occurrence(now time.Time, loc *time.Location) (time.Time, bool) {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	for _, day := range []time.Time{midnight, midnight.AddDate(0, 0, -1)} {
		start := day.Add(w.Start)
		if !local.Before(start) && local.Before(start.Add(w.Duration)) {
			return start, true
		}
	}
	return time.Time{}, false
}

// IsDue reports whether a tenant should be pulled at now: it must be
// connected, inside its local window, and not already started in this occurrence.
func (w TriggerWindow) IsDue(t *Tenant, now time.Time) bool {
	if !t.IsConnected() {
		return false
	}
	start, ok := w.Occurrence(now, t.Location())
	if !ok {
		return false
	}
	if t.SyncStartedAt != nil && !t.SyncStartedAt.Before(start) {
		return false
	}
	return true
}
