package compute

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/eleven-am/playbook/internal/ports"
	"github.com/eleven-am/playbook/internal/xjson"
)

// Process runs every call in a fresh worker subprocess. The request is
// written to the worker's stdin as one JSON line; frames come back on stdout.
type Process struct {
	command []string
	env     []string
	logger  *slog.Logger
}

func NewProcess(command []string, logger *slog.Logger) *Process {
	if logger == nil {
		logger = slog.Default()
	}
	return &Process{
		command: append([]string(nil), command...),
		logger:  logger.With("component", "compute", "mode", "process"),
	}
}

// WithEnv appends environment variables to every spawned worker.
func (p *Process) WithEnv(env ...string) *Process {
	p.env = append(p.env, env...)
	return p
}

func (p *Process) Compute(ctx context.Context, req ports.ComputeRequest, notify func(ports.Notification)) (json.RawMessage, error) {
	if len(p.command) == 0 {
		return nil, fmt.Errorf("compute: no worker command configured")
	}

	line, err := xjson.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("compute: encoding request: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.command[0], p.command[1:]...)
	if len(p.env) > 0 {
		cmd.Env = append(cmd.Environ(), p.env...)
	}
	cmd.Stdin = bytes.NewReader(append(line, '\n'))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("compute: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("compute: starting worker: %w", err)
	}
	p.logger.Debug("worker started", "routine", req.Routine, "pid", cmd.Process.Pid)

	var (
		result  json.RawMessage
		callErr error
		done    bool
	)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for !done && scanner.Scan() {
		var f Frame
		if err := xjson.Unmarshal(scanner.Bytes(), &f); err != nil {
			callErr = fmt.Errorf("compute: malformed worker output: %w", err)
			break
		}
		result, done, callErr = ApplyFrame(req.Routine, f, notify)
	}
	if err := scanner.Err(); err != nil && callErr == nil {
		callErr = fmt.Errorf("compute: reading worker output: %w", err)
	}

	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if callErr != nil {
		return nil, callErr
	}
	if !done {
		msg := strings.TrimSpace(stderr.String())
		if waitErr != nil {
			return nil, fmt.Errorf("compute: worker exited without a result: %w: %s", waitErr, msg)
		}
		return nil, fmt.Errorf("compute: worker exited without a result: %s", msg)
	}
	return result, nil
}
