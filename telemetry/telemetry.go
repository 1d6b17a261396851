// Package telemetry records gameplay events. The tracker is injected so
// front-ends decide where events go; the engine never blocks on it.
package telemetry

import "log/slog"

// Tracker receives named gameplay events with flat properties.
type Tracker interface {
	Event(name string, props map[string]any)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Event(string, map[string]any) {}

// Slog writes events through a structured logger.
type Slog struct {
	logger *slog.Logger
}

// NewSlog wraps a logger; nil uses the default logger.
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger}
}

func (s *Slog) Event(name string, props map[string]any) {
	args := make([]any, 0, len(props)*2)
	for k, v := range props {
		args = append(args, k, v)
	}
	s.logger.Info("event:"+name, args...)
}

// Event names shared by the engine and the front-ends.
const (
	EventSessionStart   = "session_start"
	EventWorldSelected  = "world_selected"
	EventTurnCommitted  = "turn_committed"
	EventDayAdvanced    = "day_advanced"
	EventChapterEntered = "chapter_entered"
	EventItemUsed       = "item_used"
	EventWorldCompleted = "world_completed"
	EventEndingReached  = "ending_reached"
)
