package notify

import (
	"context"
	"log/slog"
)

// LogObserver is the console renderer: one structured line per event,
// labelled with the party it speaks for.
type LogObserver struct {
	Party  string // "rider", "driver", "ops"
	UserID string
	Logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger, party, userID string) *LogObserver {
	return &LogObserver{Party: party, UserID: userID, Logger: logger}
}

func (l *LogObserver) Name() string { return "log:" + l.Party }

func (l *LogObserver) Notify(ctx context.Context, ev Event) error {
	args := []any{"party", l.Party, "kind", ev.Kind, "message", ev.Message}
	if l.UserID != "" {
		args = append(args, "user_id", l.UserID)
	}
	l.Logger.InfoContext(ctx, "notification", args...)
	return nil
}
