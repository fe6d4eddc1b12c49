package proxy

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"golang.org/x/sync/errgroup"

	"mcpinspect/pkg/logging"
)

// maxLineSize bounds a single newline-delimited JSON-RPC message.
const maxLineSize = 16 * 1024 * 1024

// StdioTransport speaks newline-delimited JSON over a reader/writer pair.
// It is used both for the operator side (stdin/stdout) and, via
// NewCommandTransport, for a spawned server process.
type StdioTransport struct {
	mu        sync.Mutex
	r         io.Reader
	w         io.Writer
	onMessage func(json.RawMessage)
	onClose   func()
	onError   func(error)
	closed    bool
	closeFn   func() error
	started   bool
}

// NewStdioTransport wraps a reader/writer pair. Call Start after the
// handlers are registered.
func NewStdioTransport(r io.Reader, w io.Writer) *StdioTransport {
	return &StdioTransport{r: r, w: w}
}

func (t *StdioTransport) OnMessage(fn func(json.RawMessage)) { t.onMessage = fn }
func (t *StdioTransport) OnClose(fn func())                  { t.onClose = fn }
func (t *StdioTransport) OnError(fn func(error))             { t.onError = fn }

// Start launches the read loop. Handlers registered after Start may miss
// messages.
func (t *StdioTransport) Start() {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	go t.readLoop()
}

func (t *StdioTransport) readLoop() {
	scanner := bufio.NewScanner(t.r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg := make(json.RawMessage, len(line))
		copy(msg, line)
		if t.onMessage != nil {
			t.onMessage(msg)
		}
	}
	if err := scanner.Err(); err != nil && t.onError != nil {
		t.onError(err)
	}
	t.fireClose()
}

func (t *StdioTransport) fireClose() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	if t.onClose != nil {
		t.onClose()
	}
}

// Send writes one message followed by a newline.
func (t *StdioTransport) Send(msg json.RawMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("transport is closed")
	}
	if _, err := t.w.Write(append(msg, '\n')); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// Close tears down the transport. The read loop ends when the underlying
// reader is closed by closeFn or drains.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	closeFn := t.closeFn
	onClose := t.onClose
	t.mu.Unlock()

	var err error
	if closeFn != nil {
		err = closeFn()
	}
	if onClose != nil {
		onClose()
	}
	return err
}

// CommandTransport runs a tool server as a subprocess and speaks
// newline-delimited JSON over its stdin/stdout.
type CommandTransport struct {
	*StdioTransport
	cmd   *exec.Cmd
	group *errgroup.Group
}

// NewCommandTransport prepares (but does not start) the subprocess.
func NewCommandTransport(name string, args ...string) (*CommandTransport, error) {
	cmd := exec.Command(name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	inner := NewStdioTransport(stdout, stdin)
	inner.closeFn = func() error {
		if err := stdin.Close(); err != nil {
			logging.Debug("Proxy", "Closing subprocess stdin: %v", err)
		}
		if cmd.Process != nil {
			return cmd.Process.Kill()
		}
		return nil
	}

	return &CommandTransport{StdioTransport: inner, cmd: cmd}, nil
}

// Start launches the subprocess and the read loop.
func (t *CommandTransport) Start() error {
	if err := t.cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", t.cmd.Path, err)
	}
	logging.Info("Proxy", "Spawned server process %s (pid %d)", t.cmd.Path, t.cmd.Process.Pid)

	t.group = &errgroup.Group{}
	t.group.Go(func() error {
		t.readLoop()
		return nil
	})
	t.group.Go(func() error {
		err := t.cmd.Wait()
		if err != nil {
			logging.Warn("Proxy", "Server process exited: %v", err)
		}
		return err
	})
	return nil
}

// Wait blocks until the subprocess and its read loop finish.
func (t *CommandTransport) Wait() error {
	if t.group == nil {
		return nil
	}
	return t.group.Wait()
}
