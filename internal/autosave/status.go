package autosave

import (
	"fmt"
	"time"
)

// StatusText renders the save status for UI display. It is a pure
// function of state, last save time and the clock, so callers can
// recompute it on a fixed tick independent of save events.
func StatusText(state State, lastSaved time.Time, now time.Time) string {
	switch state {
	case Saving:
		return "Saving..."
	case SaveFailed:
		return "Save failed, click to retry"
	case Dirty:
		return "Unsaved changes"
	}

	if lastSaved.IsZero() {
		return "Not saved yet"
	}
	elapsed := now.Sub(lastSaved)
	switch {
	case elapsed < 10*time.Second:
		return "Saved just now"
	case elapsed < time.Minute:
		return fmt.Sprintf("Saved %ds ago", int(elapsed.Seconds()))
	case elapsed < time.Hour:
		return fmt.Sprintf("Saved %dm ago", int(elapsed.Minutes()))
	default:
		return "Saved at " + lastSaved.Format("15:04")
	}
}

// StatusText reports the coordinator's current human-readable status.
func (c *Coordinator) StatusText() string {
	c.mu.Lock()
	state, lastSaved := c.state, c.lastSaved
	c.mu.Unlock()
	return StatusText(state, lastSaved, time.Now())
}
