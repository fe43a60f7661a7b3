package compute

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/eleven-am/playbook/internal/ports"
)

// Local runs routines in the calling process.
type Local struct {
	routines *Routines
	logger   *slog.Logger
}

func NewLocal(routines *Routines, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		routines: routines,
		logger:   logger.With("component", "compute", "mode", "local"),
	}
}

func (l *Local) Compute(ctx context.Context, req ports.ComputeRequest, notify func(ports.Notification)) (json.RawMessage, error) {
	l.logger.Debug("running routine", "routine", req.Routine)
	result, err := invoke(ctx, l.routines, req, notify)
	if err != nil {
		l.logger.Debug("routine failed", "routine", req.Routine, "error", err)
		return nil, err
	}
	return result, nil
}
