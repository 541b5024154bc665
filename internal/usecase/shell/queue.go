package shell

import (
	"sync"

	"rootshell/internal/domain"
)

// commandQueue is the FIFO feeding one session. Commands wait in pending
// until dispatched to the shell; dispatched commands move to inflight and
// stay there until their marker is observed (or the session dies). The
// head of inflight is the command output lines are attributed to.
//
// Normally inflight holds at most one command. A timed-out command remains
// inflight for attribution purposes (its marker has not been seen yet)
// while the next command is dispatched behind it; the shell executes
// sequentially, so ordering on the wire is preserved.
type commandQueue struct {
	mu       sync.Mutex
	nextID   int64
	pending  []*domain.Command
	inflight []*domain.Command
}

func newCommandQueue() *commandQueue {
	return &commandQueue{nextID: 1}
}

// Enqueue assigns the next id and appends the command. It returns the
// command to dispatch now, which is non-nil only when nothing is in
// flight (the new command became current immediately).
func (q *commandQueue) Enqueue(c *domain.Command) (*domain.Command, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := c.Bind(q.nextID); err != nil {
		return nil, err
	}
	q.nextID++
	q.pending = append(q.pending, c)
	return q.promoteLocked(), nil
}

// Resolve matches a marker id to an inflight command, removes it, and
// returns it along with the next command to dispatch (nil if none was
// waiting). A nil command return means the marker did not match anything
// in flight and must be discarded.
func (q *commandQueue) Resolve(id int64) (resolved, dispatch *domain.Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, c := range q.inflight {
		if c.ID() == id {
			resolved = c
			q.inflight = append(q.inflight[:i], q.inflight[i+1:]...)
			break
		}
	}
	if resolved == nil {
		return nil, nil
	}
	return resolved, q.promoteLocked()
}

// Current returns the command output lines are attributed to.
func (q *commandQueue) Current() *domain.Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.inflight) == 0 {
		return nil
	}
	return q.inflight[0]
}

// Abandon is called when the waiter gave up on the current command
// (timeout or interruption). The command stays inflight so late output
// and its eventual marker are still swallowed, but the next pending
// command is dispatched behind it.
func (q *commandQueue) Abandon() (dispatch *domain.Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.promoteLocked()
}

// Drain removes every queued and inflight command and returns them so the
// caller can fail each one. Used on session death and close.
func (q *commandQueue) Drain() []*domain.Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	all := make([]*domain.Command, 0, len(q.inflight)+len(q.pending))
	all = append(all, q.inflight...)
	all = append(all, q.pending...)
	q.inflight = nil
	q.pending = nil
	return all
}

// Tail returns the most recently submitted unresolved command, or nil when
// the queue is idle. Waiting on its completion waits for the whole queue:
// commands resolve strictly in submission order.
func (q *commandQueue) Tail() *domain.Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n := len(q.pending); n > 0 {
		return q.pending[n-1]
	}
	if n := len(q.inflight); n > 0 {
		return q.inflight[n-1]
	}
	return nil
}

// promoteLocked moves the head of pending into inflight when the shell is
// free to accept it: either nothing is in flight, or everything in flight
// has already been abandoned by its waiter.
func (q *commandQueue) promoteLocked() *domain.Command {
	for _, c := range q.inflight {
		if c.State() == domain.CommandRunning || c.State() == domain.CommandPending {
			return nil
		}
	}
	if len(q.pending) == 0 {
		return nil
	}
	head := q.pending[0]
	q.pending = q.pending[1:]
	q.inflight = append(q.inflight, head)
	return head
}
