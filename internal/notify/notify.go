// Package notify fans user-facing events (challenge answered, earnings
// milestone reached) out to a pluggable sink. The default sink writes
// structured log lines; a desktop front end can swap in its own.
package notify

import "log/slog"

// Well-known event names.
const (
	EventChallengeCompleted = "challenge_completed"
	EventMilestoneReached   = "milestone_reached"
)

// Notifier delivers a single event. Implementations must not block for long;
// delivery is best-effort and failures are not propagated to callers.
type Notifier interface {
	Notify(event string, payload map[string]any)
}

// LogNotifier emits events through slog. It is the default when no richer
// channel is wired in.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier; a nil logger selects slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(event string, payload map[string]any) {
	attrs := make([]any, 0, 2+2*len(payload))
	attrs = append(attrs, "event", event)
	for k, v := range payload {
		attrs = append(attrs, k, v)
	}
	n.logger.Info("notification", attrs...)
}

// Discard swallows every event.
type Discard struct{}

func (Discard) Notify(string, map[string]any) {}
