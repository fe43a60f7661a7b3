package compute

import (
	"context"
	"log/slog"

	"github.com/eleven-am/playbook/internal/ports"
)

// LogNotifier writes process notifications to a logger.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, processID string, note ports.Notification) {
	attrs := []any{"process_id", processID, "type", note.Type}
	if note.Percent != nil {
		attrs = append(attrs, "percent", *note.Percent)
	}
	level := slog.LevelInfo
	if note.Type == "error" {
		level = slog.LevelError
	} else if note.Type == "warning" {
		level = slog.LevelWarn
	}
	n.logger.Log(ctx, level, note.Message, attrs...)
}
