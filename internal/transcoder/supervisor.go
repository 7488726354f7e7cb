package transcoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"stream-relay/internal/logging"
	"stream-relay/internal/metrics"
	"stream-relay/internal/streaming"
)

// Sentinel errors returned by the supervisor.
var (
	// ErrNotRunning is returned by Write when no encoder accepts input.
	ErrNotRunning = errors.New("encoder is not running")

	// ErrAlreadyRunning is returned when starting an encoder that is live.
	ErrAlreadyRunning = errors.New("encoder is already running")
)

const (
	defaultShutdownGrace = 5 * time.Second
	killWait             = 2 * time.Second
	exitErrorTailLines   = 5
)

// Observer is notified of encoder lifecycle transitions. Calls are made
// outside the supervisor lock, from the goroutine that observed the change.
type Observer interface {
	EncoderStarted(st Status)
	EncoderExited(st Status)
}

// Options configures a Supervisor.
type Options struct {
	// Path is the encoder binary, resolved through PATH when not absolute.
	Path string
	// Args is the full argument vector passed to the encoder.
	Args []string
	// LogArgs is Args with secrets masked. Defaults to Args.
	LogArgs []string
	// WriteTimeout bounds a single write into the encoder input.
	WriteTimeout time.Duration
	// ShutdownGrace is how long Shutdown waits for the encoder to exit.
	ShutdownGrace time.Duration
	// Observer receives lifecycle notifications. May be nil.
	Observer Observer
}

// Supervisor owns a single encoder process.
type Supervisor struct {
	opts Options
	log  *logging.Logger

	mu      sync.Mutex
	status  Status
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	input   *streaming.TimeoutWriter
	done    chan struct{}
	closing bool
	subs    map[int]chan Status
	nextSub int

	// writeMu serializes writes so bytes reach stdin in call order.
	writeMu sync.Mutex

	stderr *lineRing
}

// New creates a supervisor. The encoder is not started until Start.
func New(opts Options) *Supervisor {
	if opts.Path == "" {
		opts.Path = "ffmpeg"
	}
	if opts.LogArgs == nil {
		opts.LogArgs = opts.Args
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = streaming.DefaultConfig().WriteTimeout
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = defaultShutdownGrace
	}

	return &Supervisor{
		opts:   opts,
		log:    logging.With("component", "encoder"),
		status: Status{State: StateStopped, Args: opts.LogArgs},
		subs:   make(map[int]chan Status),
		stderr: newLineRing(stderrTailLines),
	}
}

// Start spawns the encoder. The process is not bound to ctx; ctx only
// aborts a start that has not begun yet.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.launch(false)
}

// Restart spawns a new encoder after the previous one exited. It returns
// ErrAlreadyRunning while an encoder is live.
func (s *Supervisor) Restart(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.launch(true)
}

func (s *Supervisor) launch(restart bool) error {
	s.mu.Lock()
	switch s.status.State {
	case StateStarting, StateRunning:
		s.mu.Unlock()
		return ErrAlreadyRunning
	case StateStopped:
		restart = false
	}

	next := Status{
		State:    StateStarting,
		Run:      s.status.Run + 1,
		Restarts: s.status.Restarts,
		Args:     s.opts.LogArgs,
	}
	if restart {
		next.Restarts++
		metrics.EncoderRestartsTotal.Inc()
	}
	s.status = next
	s.closing = false
	s.done = make(chan struct{})
	done := s.done
	s.stderr.reset()
	s.mu.Unlock()
	metrics.EncoderState.Set(StateStarting.gaugeValue())

	cmd := exec.Command(s.opts.Path, s.opts.Args...)
	detachProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return s.spawnFailed(done, fmt.Errorf("failed to create encoder stdin pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return s.spawnFailed(done, fmt.Errorf("failed to create encoder stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return s.spawnFailed(done, fmt.Errorf("failed to start encoder %s: %w", s.opts.Path, err))
	}

	input := streaming.NewTimeoutWriter(context.Background(), stdin, streaming.Config{
		WriteTimeout: s.opts.WriteTimeout,
		ChunkSize:    streaming.DefaultConfig().ChunkSize,
		OnProgress: func(written int64, elapsed time.Duration) {
			s.log.Debug("Forwarded %d MiB to encoder in %v", written>>20, elapsed.Round(time.Second))
		},
	})

	s.mu.Lock()
	s.cmd = cmd
	s.stdin = stdin
	s.input = input
	s.status.State = StateRunning
	s.status.PID = cmd.Process.Pid
	s.status.StartedAt = time.Now()
	st := s.snapshotLocked()
	s.mu.Unlock()

	metrics.EncoderState.Set(StateRunning.gaugeValue())
	s.log.Info("Encoder started (pid %d): %s %s", st.PID, s.opts.Path, strings.Join(s.opts.LogArgs, " "))
	if s.opts.Observer != nil {
		s.opts.Observer.EncoderStarted(st)
	}

	go s.supervise(cmd, stderr, done)
	return nil
}

// spawnFailed records a start failure as an exited run.
func (s *Supervisor) spawnFailed(done chan struct{}, err error) error {
	s.mu.Lock()
	s.status.State = StateExited
	s.status.ExitedAt = time.Now()
	s.status.ExitCode = -1
	s.status.Error = err.Error()
	st, subs := s.finishLocked(done)
	s.mu.Unlock()

	metrics.EncoderState.Set(StateExited.gaugeValue())
	metrics.EncoderExitsTotal.WithLabelValues(metrics.ExitSpawnFailed).Inc()
	s.log.Error("%v", err)
	s.publish(st, subs)
	return err
}

// supervise drains stderr and waits for the process to exit.
func (s *Supervisor) supervise(cmd *exec.Cmd, stderr io.Reader, done chan struct{}) {
	// Wait must not be called before stderr has been fully read.
	drainStderr(stderr, s.stderr, s.log.With("stream", "stderr"))
	waitErr := cmd.Wait()
	code, reason := exitStatus(waitErr)

	s.mu.Lock()
	s.status.State = StateExited
	s.status.ExitedAt = time.Now()
	s.status.ExitCode = code
	if s.input != nil {
		s.status.BytesWritten, _ = s.input.Stats()
		s.status.LastInputAt = s.input.LastWrite()
		_ = s.input.Close()
	}
	if waitErr != nil {
		msg := waitErr.Error()
		if tail := tailSummary(s.stderr.snapshot(), exitErrorTailLines); tail != "" {
			msg += ": " + tail
		}
		s.status.Error = msg
	}
	s.cmd = nil
	s.stdin = nil
	s.input = nil
	st, subs := s.finishLocked(done)
	s.mu.Unlock()

	metrics.EncoderState.Set(StateExited.gaugeValue())
	metrics.EncoderExitsTotal.WithLabelValues(reason).Inc()
	if waitErr != nil {
		s.log.Error("Encoder pid %d exited with code %d after %v: %s", st.PID, code, st.Uptime().Round(time.Millisecond), st.Error)
	} else {
		s.log.Info("Encoder pid %d exited cleanly after %v", st.PID, st.Uptime().Round(time.Millisecond))
	}
	s.publish(st, subs)
}

// finishLocked closes the run's done channel and detaches subscribers.
// s.mu must be held.
func (s *Supervisor) finishLocked(done chan struct{}) (Status, []chan Status) {
	close(done)
	st := s.snapshotLocked()
	subs := make([]chan Status, 0, len(s.subs))
	for id, ch := range s.subs {
		subs = append(subs, ch)
		delete(s.subs, id)
	}
	return st, subs
}

func (s *Supervisor) publish(st Status, subs []chan Status) {
	if s.opts.Observer != nil {
		s.opts.Observer.EncoderExited(st)
	}
	for _, ch := range subs {
		ch <- st
		close(ch)
	}
}

func exitStatus(err error) (code int, reason string) {
	if err == nil {
		return 0, metrics.ExitClean
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if c := exitErr.ExitCode(); c >= 0 {
			return c, metrics.ExitError
		}
		return -1, metrics.ExitSignal
	}
	return -1, metrics.ExitError
}

// Write forwards p to the encoder input. Concurrent calls are serialized.
// A write that exceeds the write timeout kills the encoder, since a process
// that stopped reading its input cannot recover.
func (s *Supervisor) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	input := s.input
	cmd := s.cmd
	ok := s.status.State == StateRunning && !s.closing && input != nil
	s.mu.Unlock()
	if !ok {
		return 0, ErrNotRunning
	}

	n, err := input.Write(p)
	if err != nil {
		if errors.Is(err, streaming.ErrWriteTimeout) && cmd != nil {
			s.log.Error("Encoder input stalled for %v, killing pid %d", s.opts.WriteTimeout, cmd.Process.Pid)
			if kerr := cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
				s.log.Warn("Failed to kill stalled encoder: %v", kerr)
			}
		}
		return n, fmt.Errorf("failed to write to encoder input: %w", err)
	}
	return n, nil
}

// Subscribe returns a channel that receives the status of the next exit and
// is then closed. If the encoder has already exited the status is delivered
// immediately. The returned func cancels the subscription.
func (s *Supervisor) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.State == StateExited {
		ch <- s.snapshotLocked()
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Status returns a snapshot of the supervisor state.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Supervisor) snapshotLocked() Status {
	st := s.status
	if s.input != nil {
		st.BytesWritten, _ = s.input.Stats()
		st.LastInputAt = s.input.LastWrite()
	}
	st.Args = append([]string(nil), st.Args...)
	return st
}

// EncoderPID returns the pid of the running encoder, or 0.
func (s *Supervisor) EncoderPID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.State != StateRunning {
		return 0
	}
	return s.status.PID
}

// Running reports whether the encoder accepts input.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.State == StateRunning && !s.closing
}

// StderrTail returns the most recent encoder stderr lines, oldest first.
func (s *Supervisor) StderrTail() []string {
	return s.stderr.snapshot()
}

// Shutdown stops feeding the encoder according to mode. In ShutdownDrain the
// input is closed and the process is given ShutdownGrace to finish; it is
// never killed. ShutdownKill kills the process once the grace period ends.
// ShutdownDetach returns immediately and leaves the process running.
func (s *Supervisor) Shutdown(ctx context.Context, mode ShutdownMode) error {
	s.mu.Lock()
	if s.status.State != StateRunning || s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	cmd, stdin, input, done := s.cmd, s.stdin, s.input, s.done
	pid := s.status.PID
	s.mu.Unlock()

	if mode == ShutdownDetach {
		s.log.Info("Leaving encoder pid %d running", pid)
		return nil
	}

	// Let an in-flight write finish so the last chunk is not truncated.
	s.writeMu.Lock()
	_ = input.Close()
	closeErr := stdin.Close()
	s.writeMu.Unlock()
	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		s.log.Warn("Failed to close encoder input: %v", closeErr)
	}
	s.log.Info("Closed encoder input, waiting up to %v for pid %d to exit", s.opts.ShutdownGrace, pid)

	graceCtx, cancel := context.WithTimeout(ctx, s.opts.ShutdownGrace)
	defer cancel()

	select {
	case <-done:
		return nil
	case <-graceCtx.Done():
	}

	if mode != ShutdownKill {
		s.log.Warn("Encoder pid %d still running after %v, leaving it to finish", pid, s.opts.ShutdownGrace)
		return nil
	}

	s.log.Warn("Killing encoder pid %d", pid)
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill encoder: %w", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(killWait):
		return fmt.Errorf("encoder pid %d did not exit after kill", pid)
	}
}
