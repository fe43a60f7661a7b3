package engine

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
)

func executeWithRecovery(
	ctx context.Context,
	proc *domain.Process,
	node *ports.ProcessNode,
	rc ports.ResolveContext,
	logger *slog.Logger,
) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicErr := domain.NewPanicError(proc.ID, proc.Type, r, debug.Stack())
			logger.Error("resolve function panicked",
				"panic_value", r,
				"stack_trace", panicErr.StackTrace,
			)
			result = nil
			err = panicErr
		}
	}()

	return node.Resolve(ctx, rc)
}
