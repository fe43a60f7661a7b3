package compute

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/eleven-am/playbook/internal/ports"
	"github.com/eleven-am/playbook/internal/xjson"
)

type FrameType string

const (
	FrameNotification FrameType = "notification"
	FrameResult       FrameType = "result"
	FrameError        FrameType = "error"
)

// Frame is one message sent by a worker back to the caller. A call produces
// any number of notification frames followed by exactly one result or error
// frame.
type Frame struct {
	Type         FrameType           `json:"type"`
	Notification *ports.Notification `json:"notification,omitempty"`
	Result       json.RawMessage     `json:"result,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// RemoteError is a failure reported by a worker.
type RemoteError struct {
	Routine string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("compute routine %s failed: %s", e.Routine, e.Message)
}

// Execute runs req against routines and reports through emit. Routine
// failures become an error frame; only emit failures are returned.
func Execute(ctx context.Context, routines *Routines, req ports.ComputeRequest, emit func(Frame) error) error {
	result, err := invoke(ctx, routines, req, func(n ports.Notification) {
		_ = emit(Frame{Type: FrameNotification, Notification: &n})
	})
	if err != nil {
		return emit(Frame{Type: FrameError, Error: err.Error()})
	}
	return emit(Frame{Type: FrameResult, Result: result})
}

func invoke(ctx context.Context, routines *Routines, req ports.ComputeRequest, notify func(ports.Notification)) (result json.RawMessage, err error) {
	fn, err := routines.Lookup(req.Routine)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compute routine %s panicked: %v\n%s", req.Routine, r, debug.Stack())
		}
	}()

	v, err := fn(ctx, Call{
		Args:   req.Args,
		Kwargs: req.Kwargs,
		Notify: func(message string) {
			if notify != nil {
				notify(ports.Notification{Type: "info", Message: message})
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return xjson.Marshal(v)
}

// ApplyFrame forwards notification frames and reports whether f ends the call.
func ApplyFrame(routine string, f Frame, notify func(ports.Notification)) (json.RawMessage, bool, error) {
	switch f.Type {
	case FrameNotification:
		if notify != nil && f.Notification != nil {
			notify(*f.Notification)
		}
		return nil, false, nil
	case FrameResult:
		return f.Result, true, nil
	case FrameError:
		return nil, true, &RemoteError{Routine: routine, Message: f.Error}
	default:
		return nil, true, fmt.Errorf("compute: unexpected frame type %q", f.Type)
	}
}
