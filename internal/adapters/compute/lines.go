package compute

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/eleven-am/playbook/internal/ports"
	"github.com/eleven-am/playbook/internal/xjson"
)

const maxLineSize = 64 << 20

// Serve reads a single JSON request line from r, runs it and writes the
// resulting frames to w as JSON lines. It is the worker side of Process.
func Serve(ctx context.Context, routines *Routines, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("compute: reading request: %w", err)
		}
		return fmt.Errorf("compute: %w: empty request", io.ErrUnexpectedEOF)
	}

	var req ports.ComputeRequest
	if err := xjson.Unmarshal(scanner.Bytes(), &req); err != nil {
		return fmt.Errorf("compute: decoding request: %w", err)
	}

	var mu sync.Mutex
	return Execute(ctx, routines, req, func(f Frame) error {
		line, err := xjson.Marshal(f)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		_, err = w.Write(append(line, '\n'))
		return err
	})
}
