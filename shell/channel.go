// Package shell runs the wrapped command interpreter and turns its output
// into line events.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/Paranoid-AF/sprig/logging"
)

// DefaultDeliveryTimeout bounds how long the reader waits for one line to be accepted.
const DefaultDeliveryTimeout = time.Second

// Interrupt is written to the shell's stdin on Ctrl+C.
const Interrupt = "\x03\n"

// writeQueue is how many writes may wait for the shell to drain its stdin.
const writeQueue = 64

// LineFunc receives one trimmed, non-empty output line. It should return
// once the line has been handed off, or with ctx.Err() when ctx ends first.
type LineFunc func(ctx context.Context, line string) error

// Options configures a Channel.
type Options struct {
	// Command is the shell argv. Empty means DefaultCommand().
	Command []string
	// Dir is the starting directory. Empty means the current directory.
	Dir             string
	DeliveryTimeout time.Duration
	Logger          *slog.Logger
}

// Channel owns one child shell process. Its stdout and stderr share one
// pipe that a dedicated goroutine reads rune by rune. Writes to stdin are
// queued to a second goroutine so callers never wait on the pipe.
type Channel struct {
	argv            []string
	dir             string
	deliveryTimeout time.Duration
	log             *slog.Logger

	mu      sync.Mutex
	started bool
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	writes  chan string

	stopWriter chan struct{}
	stopOnce   sync.Once
	exited     chan struct{}
	readDone   chan struct{}
	dropped    atomic.Int64
}

// New creates a Channel. Nothing is spawned until Start.
func New(opts Options) *Channel {
	argv := opts.Command
	if len(argv) == 0 {
		argv = DefaultCommand()
	}
	dir := opts.Dir
	if dir == "" {
		dir, _ = os.Getwd()
	}
	timeout := opts.DeliveryTimeout
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Channel{
		argv:            argv,
		dir:             dir,
		deliveryTimeout: timeout,
		log:             log,
		stopWriter:      make(chan struct{}),
		exited:          make(chan struct{}),
		readDone:        make(chan struct{}),
	}
}

// DefaultCommand returns the platform command interpreter.
func DefaultCommand() []string {
	if runtime.GOOS == "windows" {
		if comspec := os.Getenv("COMSPEC"); comspec != "" {
			return []string{comspec}
		}
		return []string{"cmd.exe"}
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return []string{sh}
	}
	return []string{"/bin/sh"}
}

// ClearCommand returns the platform command that clears the screen.
func ClearCommand() string {
	if runtime.GOOS == "windows" {
		return "cls"
	}
	return "clear"
}

// Start spawns the shell and begins reading its output. Calling Start on a
// channel that was already started does nothing.
func (c *Channel) Start(onLine LineFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	cmd := exec.Command(c.argv[0], c.argv[1:]...)
	cmd.Dir = c.dir
	cmd.Env = os.Environ()
	setProcessGroup(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	stdin, err := cmd.StdinPipe()
	if err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("start shell %s: %w", c.argv[0], err)
	}
	// The child holds its own copy of the write end; ours must go so the
	// reader sees EOF when the child exits.
	pw.Close()

	c.started = true
	c.cmd = cmd
	c.stdin = stdin
	c.writes = make(chan string, writeQueue)
	c.log.Info("shell started", "argv", c.argv, "pid", cmd.Process.Pid)

	go c.readOutput(pr, onLine)
	go c.writeInput(stdin, c.writes)
	go c.wait(cmd)
	return nil
}

func (c *Channel) wait(cmd *exec.Cmd) {
	err := cmd.Wait()
	if err != nil {
		c.log.Info("shell exited", "error", err)
	} else {
		c.log.Info("shell exited")
	}
	c.mu.Lock()
	if c.cmd == cmd {
		c.cmd = nil
		c.stdin = nil
	}
	c.mu.Unlock()
	c.stopOnce.Do(func() { close(c.stopWriter) })
	close(c.exited)
}

// writeInput copies queued writes to stdin until the shell stops. A write
// the child never drains blocks only this goroutine; closing stdin
// releases it.
func (c *Channel) writeInput(stdin io.Writer, writes <-chan string) {
	for {
		select {
		case <-c.stopWriter:
			return
		case text := <-writes:
			if _, err := io.WriteString(stdin, text); err != nil {
				c.log.Error("write to shell", "error", err)
			}
		}
	}
}

func (c *Channel) readOutput(r io.ReadCloser, onLine LineFunc) {
	defer close(c.readDone)
	defer r.Close()
	br := bufio.NewReader(r)
	var buf strings.Builder
	for {
		ch, _, err := br.ReadRune()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				c.log.Error("read shell output", "error", err)
			}
			return
		}
		if ch != '\n' {
			buf.WriteRune(ch)
			continue
		}
		line := strings.TrimSpace(ansi.Strip(buf.String()))
		buf.Reset()
		if line != "" {
			c.deliver(onLine, line)
		}
	}
}

func (c *Channel) deliver(onLine LineFunc, line string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.deliveryTimeout)
	defer cancel()
	if err := onLine(ctx, line); err != nil {
		n := c.dropped.Add(1)
		c.log.Warn("output line not delivered", "error", err, "dropped", n, "line", line)
	}
}

// Write queues text for the shell's stdin and returns at once. When the
// shell is not running, or has stopped reading and the queue is full, the
// write is logged and discarded.
func (c *Channel) Write(text string) {
	c.mu.Lock()
	writes := c.writes
	running := c.cmd != nil
	c.mu.Unlock()
	if !running {
		c.log.Warn("write to stopped shell", "text", text)
		return
	}
	select {
	case writes <- text:
		c.log.Debug("write to shell", "text", text)
	default:
		c.log.Warn("shell is not reading input, write dropped", "text", text)
	}
}

// SendInterrupt writes the interrupt sequence.
func (c *Channel) SendInterrupt() {
	c.log.Info("sending interrupt")
	c.Write(Interrupt)
}

// Clear asks the shell to clear its screen.
func (c *Channel) Clear() {
	c.Write(ClearCommand() + "\n")
}

// Terminate kills the shell, along with any background jobs it started on
// Unix, and closes its stdin. Safe to call repeatedly, and before Start.
func (c *Channel) Terminate() {
	c.mu.Lock()
	cmd, stdin := c.cmd, c.stdin
	c.cmd = nil
	c.stdin = nil
	c.mu.Unlock()
	if cmd == nil {
		return
	}

	c.stopOnce.Do(func() { close(c.stopWriter) })
	if err := stdin.Close(); err != nil {
		c.log.Debug("close shell stdin", "error", err)
	}
	if err := killProcess(cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		c.log.Warn("kill shell", "error", err)
	}
	c.log.Info("shell terminated")
}

// Running reports whether the shell process is alive.
func (c *Channel) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cmd != nil
}

// Exited is closed once the process has exited. It never closes for a
// channel that was not started.
func (c *Channel) Exited() <-chan struct{} {
	return c.exited
}

// Dropped returns how many lines were discarded because delivery timed out.
func (c *Channel) Dropped() int64 {
	return c.dropped.Load()
}
