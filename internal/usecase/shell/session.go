package shell

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sys/unix"

	"rootshell/internal/domain"
)

// Config holds per-session settings.
type Config struct {
	ShellPath       string        // unelevated shell executable (default: sh)
	SuPath          string        // privilege-escalation front-end (default: su)
	WaitTimeout     time.Duration // how long Run waits for a command (default: 30s)
	OutputBufferMax int           // max bytes of output buffered per Run call (default: 256KB)
	MaxLineBytes    int           // reader line size limit (default: 1MB)
}

func (c *Config) applyDefaults() {
	if c.ShellPath == "" {
		c.ShellPath = "sh"
	}
	if c.SuPath == "" {
		c.SuPath = "su"
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 30 * time.Second
	}
	if c.OutputBufferMax <= 0 {
		c.OutputBufferMax = 256 * 1024
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = 1024 * 1024
	}
}

// Session owns one live shell subprocess, its I/O streams, and the reader
// goroutine that demultiplexes output back to submitted commands.
//
// Commands submitted to a session execute strictly in submission order;
// exactly one command is dispatched to the shell at a time. Every
// submitted command resolves to exactly one outcome: Finish with the
// shell's exit code, or Fail with a classified error.
type Session struct {
	id       string
	elevated bool
	cfg      Config
	logger   *slog.Logger
	bus      domain.EventBus

	cmd   *exec.Cmd
	stdin io.WriteCloser

	queue   *commandQueue
	writeMu sync.Mutex // serializes stdin writes

	mu         sync.Mutex
	closed     bool
	denial     bool // denial phrase seen while a command was current
	readerDone chan struct{}

	reapOnce sync.Once
	waitErr  error
}

// Open spawns a shell process and starts its reader. With elevated set,
// the privilege-escalation front-end is spawned instead of the plain
// shell. Fails with ErrSpawn when the executable is absent or the OS
// refuses to create the process.
func Open(cfg Config, elevated bool, logger *slog.Logger, bus domain.EventBus) (*Session, error) {
	cfg.applyDefaults()

	path := cfg.ShellPath
	if elevated {
		path = cfg.SuPath
	}

	cmd := exec.Command(path)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, domain.NewDomainError("Session.Open", domain.ErrSpawn, err.Error())
	}

	// stdout and stderr share one pipe so the reader observes output in
	// the order the process emitted it.
	pr, pw, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, domain.NewDomainError("Session.Open", domain.ErrSpawn, err.Error())
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		stdin.Close()
		pr.Close()
		pw.Close()
		return nil, domain.NewDomainError("Session.Open", domain.ErrSpawn, err.Error())
	}
	pw.Close() // child holds the write end now

	s := &Session{
		id:         newSessionID(),
		elevated:   elevated,
		cfg:        cfg,
		logger:     logger,
		bus:        bus,
		cmd:        cmd,
		stdin:      stdin,
		queue:      newCommandQueue(),
		readerDone: make(chan struct{}),
	}

	go s.readLoop(pr)

	s.logger.Info("shell session opened", "session_id", s.id, "elevated", elevated, "shell", path)
	s.emit(domain.EventSessionOpened, domain.SessionEvent{SessionID: s.id, Elevated: elevated})
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Elevated reports whether the session was opened through the
// privilege-escalation front-end.
func (s *Session) Elevated() bool { return s.elevated }

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Submit enqueues a command. The command is written to the shell only when
// it reaches the head of the queue and its predecessor has resolved.
func (s *Session) Submit(c *domain.Command) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		err := domain.NewDomainError("Session.Submit", domain.ErrSessionClosed, "")
		c.Fail(err)
		return err
	}
	s.mu.Unlock()

	dispatch, err := s.queue.Enqueue(c)
	if err != nil {
		return err
	}
	s.emit(domain.EventCommandQueued, domain.CommandEvent{SessionID: s.id, CommandID: c.ID(), Text: c.Text()})
	if dispatch != nil {
		s.dispatch(dispatch)
	}
	return nil
}

// Wait blocks until every command submitted so far has resolved, the
// timeout elapses, or ctx is canceled. On timeout the in-flight command is
// failed with ErrTimeout; the session stays alive and later commands still
// run. On cancellation the in-flight command is failed with
// ErrInterrupted. Commands resolve in submission order, so waiting on the
// most recent one waits for the whole queue.
func (s *Session) Wait(ctx context.Context, timeout time.Duration) error {
	tail := s.queue.Tail()
	if tail == nil {
		return nil
	}
	return s.waitCommand(ctx, tail, timeout)
}

// Run submits text as a command, waits for it, and returns the collected
// output and exit code. Output is capped at Config.OutputBufferMax; older
// lines are dropped when a command is too chatty.
func (s *Session) Run(ctx context.Context, text string) (string, int, error) {
	buf := newLineBuffer(s.cfg.OutputBufferMax)
	c := domain.NewCommand(text, func(_ int64, line string) {
		buf.Append(line)
	}, nil)

	if err := s.Submit(c); err != nil {
		return "", -1, err
	}
	if err := s.waitCommand(ctx, c, s.cfg.WaitTimeout); err != nil {
		return buf.String(), -1, err
	}
	code, err := c.Outcome()
	return buf.String(), code, err
}

// Close terminates the subprocess, releases the reader, and fails every
// queued and in-flight command with ErrIOFailure. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.readerDone
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.failAll(false, "session closed")

	// Kill the whole process group so children spawned by the shell do
	// not survive the session.
	if p := s.cmd.Process; p != nil {
		if err := unix.Kill(-p.Pid, unix.SIGKILL); err != nil {
			p.Kill()
		}
	}
	s.stdin.Close()
	s.reap()
	<-s.readerDone

	s.logger.Info("shell session closed", "session_id", s.id)
	s.emit(domain.EventSessionClosed, domain.SessionEvent{SessionID: s.id, Elevated: s.elevated, Reason: "closed"})
	return nil
}

// --- internal ---

// dispatch writes the command text and its completion marker to the shell.
func (s *Session) dispatch(c *domain.Command) {
	c.MarkRunning()
	s.emit(domain.EventCommandStarted, domain.CommandEvent{SessionID: s.id, CommandID: c.ID(), Text: c.Text()})
	s.logger.Debug("command dispatched", "session_id", s.id, "command_id", c.ID())

	s.writeMu.Lock()
	_, err := io.WriteString(s.stdin, c.Text()+"\n"+markerEcho(c.ID())+"\n")
	s.writeMu.Unlock()
	if err != nil {
		// Broken stdin means the process is gone; the reader will see
		// EOF shortly, but fail fast here so the writer's command does
		// not wait for it.
		s.logger.Warn("stdin write failed", "session_id", s.id, "command_id", c.ID(), "error", err)
		s.die(false)
	}
}

// waitCommand blocks until c resolves, the timeout fires, or ctx is
// canceled. Timeout and cancellation abandon the in-flight command without
// killing the session.
func (s *Session) waitCommand(ctx context.Context, c *domain.Command, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.cfg.WaitTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.Done():
		_, err := c.Outcome()
		return err
	case <-timer.C:
		err := domain.NewDomainError("Session.Wait", domain.ErrTimeout, c.Text())
		s.abandonCurrent(err)
		return err
	case <-ctx.Done():
		err := domain.NewDomainError("Session.Wait", domain.ErrInterrupted, ctx.Err().Error())
		s.abandonCurrent(err)
		return err
	}
}

// abandonCurrent fails the in-flight command and dispatches the next
// pending one behind it. The abandoned command stays known to the queue so
// its late output and eventual marker are discarded rather than attributed
// to a successor.
func (s *Session) abandonCurrent(err error) {
	if cur := s.queue.Current(); cur != nil {
		cur.Fail(err)
		s.emit(domain.EventCommandFailed, domain.CommandEvent{SessionID: s.id, CommandID: cur.ID(), Text: cur.Text(), Error: err.Error()})
	}
	if next := s.queue.Abandon(); next != nil {
		s.dispatch(next)
	}
}

// readLoop is the output demultiplexer: it consumes the merged
// stdout/stderr stream line by line for the session's lifetime, routing
// each line to the current command or recognizing its completion marker.
func (s *Session) readLoop(r io.ReadCloser) {
	defer close(s.readerDone)
	defer r.Close()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), s.cfg.MaxLineBytes)
	for sc.Scan() {
		s.route(sc.Text())
	}
	if err := sc.Err(); err != nil {
		s.logger.Warn("session read error", "session_id", s.id, "error", err)
	}
	s.die(true)
}

// route attributes one output line: marker lines resolve the matching
// command and advance the queue; everything else goes to the current
// command's update hook.
func (s *Session) route(line string) {
	if pre, payload, found := splitMarker(line); found {
		cur := s.queue.Current()
		if pre != "" && cur != nil {
			cur.Update(pre)
		}
		id, exitCode, ok := parseMarker(payload)
		if !ok {
			// Prefix collision with real output: treat as a plain line.
			if cur != nil {
				cur.Update(payload)
			}
			return
		}
		resolved, next := s.queue.Resolve(id)
		if resolved != nil {
			s.mu.Lock()
			s.denial = false
			s.mu.Unlock()
			resolved.Finish(exitCode)
			// A command abandoned on timeout already reported failure;
			// its marker only unblocks the queue.
			if resolved.State() == domain.CommandFinished {
				s.emit(domain.EventCommandDone, domain.CommandEvent{SessionID: s.id, CommandID: id, Text: resolved.Text(), ExitCode: exitCode})
				s.logger.Debug("command finished", "session_id", s.id, "command_id", id, "exit_code", exitCode)
			}
		}
		if next != nil {
			s.dispatch(next)
		}
		return
	}

	cur := s.queue.Current()
	if cur == nil {
		return
	}
	if isDenialLine(line) {
		s.mu.Lock()
		s.denial = true
		s.mu.Unlock()
	}
	cur.Update(line)
}

// die handles process death observed by the reader (EOF or read error) or
// forced by a failed stdin write. All unresolved commands fail; the head
// command is classified as permission-denied when a denial phrase preceded
// the death.
func (s *Session) die(fromReader bool) {
	s.mu.Lock()
	wasClosed := s.closed
	s.closed = true
	denial := s.denial
	s.mu.Unlock()

	if wasClosed {
		return
	}
	s.failAll(denial, "shell process died")
	s.stdin.Close()
	if !fromReader {
		// Forced death: make sure the process group is really gone so
		// reaping below cannot block. The reader will observe EOF and
		// return on its own.
		if p := s.cmd.Process; p != nil {
			unix.Kill(-p.Pid, unix.SIGKILL)
		}
	}
	s.reap()
	s.logger.Warn("shell session died", "session_id", s.id, "denial", denial)
	s.emit(domain.EventSessionClosed, domain.SessionEvent{SessionID: s.id, Elevated: s.elevated, Reason: "died"})
}

// failAll drains the queue, failing the head with ErrPermissionDenied when
// denial is set and everything else with ErrIOFailure.
func (s *Session) failAll(denial bool, detail string) {
	cmds := s.queue.Drain()
	for i, c := range cmds {
		var err error
		if denial && i == 0 {
			err = domain.NewDomainError("Session", domain.ErrPermissionDenied, detail)
		} else {
			err = domain.NewDomainError("Session", domain.ErrIOFailure, detail)
		}
		c.Fail(err)
		s.emit(domain.EventCommandFailed, domain.CommandEvent{SessionID: s.id, CommandID: c.ID(), Text: c.Text(), Error: err.Error()})
	}
}

// reap waits for the subprocess exactly once.
func (s *Session) reap() {
	s.reapOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
}

func (s *Session) emit(eventType domain.EventType, payload any) {
	if s.bus == nil {
		return
	}
	data, _ := json.Marshal(payload)
	s.bus.Publish(context.Background(), domain.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   data,
	})
}

func newSessionID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
