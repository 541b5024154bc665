package domain

import (
	"sync"
)

// CommandState tracks a command's position in its lifecycle.
type CommandState string

const (
	CommandPending  CommandState = "pending"
	CommandRunning  CommandState = "running"
	CommandFinished CommandState = "finished"
	CommandFailed   CommandState = "failed"
)

// UpdateFunc receives one line of output attributed to the command.
type UpdateFunc func(id int64, line string)

// FinishedFunc receives the command's final outcome. It is invoked exactly
// once per command: with err == nil and the shell exit code on normal
// completion, or with a non-nil error (and exit code -1) on failure.
type FinishedFunc func(id int64, exitCode int, err error)

// Command is a unit of work for a shell session: the command text plus two
// behavior slots. The session assigns the id at submission time and drives
// the state transitions; callers observe the outcome through the finished
// hook or the Done channel.
type Command struct {
	text       string
	onUpdate   UpdateFunc
	onFinished FinishedFunc

	mu       sync.Mutex
	id       int64
	bound    bool
	state    CommandState
	exitCode int
	err      error
	done     chan struct{}
}

// NewCommand creates a command. Either hook may be nil.
func NewCommand(text string, onUpdate UpdateFunc, onFinished FinishedFunc) *Command {
	return &Command{
		text:       text,
		onUpdate:   onUpdate,
		onFinished: onFinished,
		state:      CommandPending,
		exitCode:   -1,
		done:       make(chan struct{}),
	}
}

// Text returns the command text.
func (c *Command) Text() string { return c.text }

// ID returns the session-assigned id, or 0 before submission.
func (c *Command) ID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// State returns the current lifecycle state.
func (c *Command) State() CommandState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the command has reached Finished or Failed.
func (c *Command) Done() <-chan struct{} { return c.done }

// Outcome returns the exit code and error after Done is closed.
// Before completion it returns (-1, nil).
func (c *Command) Outcome() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode, c.err
}

// Bind assigns the session-unique id at submission time. A command can be
// submitted only once.
func (c *Command) Bind(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound {
		return NewDomainError("Command.Bind", ErrInvalidInput, "command already submitted")
	}
	c.bound = true
	c.id = id
	return nil
}

// MarkRunning transitions the command to Running on dispatch. It is a
// no-op if the command already resolved (e.g. failed while still queued).
func (c *Command) MarkRunning() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == CommandPending {
		c.state = CommandRunning
	}
}

// Update delivers one output line to the update hook. Lines arriving after
// the command resolved (late output of a timed-out command) are discarded.
func (c *Command) Update(line string) {
	c.mu.Lock()
	if c.state != CommandRunning || c.onUpdate == nil {
		c.mu.Unlock()
		return
	}
	id, hook := c.id, c.onUpdate
	c.mu.Unlock()
	hook(id, line)
}

// Finish resolves the command successfully with the given exit code.
// The first resolution wins; later calls are ignored.
func (c *Command) Finish(exitCode int) {
	c.resolve(CommandFinished, exitCode, nil)
}

// Fail resolves the command with an error. The first resolution wins.
func (c *Command) Fail(err error) {
	c.resolve(CommandFailed, -1, err)
}

func (c *Command) resolve(state CommandState, exitCode int, err error) {
	c.mu.Lock()
	if c.state == CommandFinished || c.state == CommandFailed {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.exitCode = exitCode
	c.err = err
	id, hook := c.id, c.onFinished
	close(c.done)
	c.mu.Unlock()

	if hook != nil {
		hook(id, exitCode, err)
	}
}
