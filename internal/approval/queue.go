// Package approval gates proposed mix actions behind engineer
// approval. Each queued action reaches exactly one terminal state:
// approved, rejected, or expired (which auto-approves).
package approval

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"mixagent/internal/action"
)

// Mode controls how Submit routes actions.
type Mode int

const (
	// ApproveAll queues every action for manual approval.
	ApproveAll Mode = iota
	// AutoUrgent auto-approves Immediate/Fast urgency, queues the rest.
	AutoUrgent
	// AutoAll auto-approves everything (demo/testing).
	AutoAll
	// DenyAll rejects everything (safe mode).
	DenyAll
)

// ModeFromString parses the config wire names, defaulting to
// AutoUrgent.
func ModeFromString(s string) Mode {
	switch s {
	case "approve_all":
		return ApproveAll
	case "auto_all":
		return AutoAll
	case "deny_all":
		return DenyAll
	}
	return AutoUrgent
}

// QueuedAction is one action awaiting (or past) a decision.
type QueuedAction struct {
	ID       string // uuid, stable across UI refreshes
	Action   action.Action
	Queued   time.Time
	Timeout  time.Duration // auto-approve deadline
	Approved bool
	Rejected bool
	Expired  bool
}

// Queue is the approval state machine. One mutex guards all state; a
// condition variable wakes PopApproved when an approval lands.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	mode     Mode
	pending  []QueuedAction
	approved []QueuedAction
	rejected []QueuedAction

	// OnRejected, when set, is invoked (outside the lock) for every
	// rejection so the preference learner can observe it.
	OnRejected func(a action.Action)
}

// NewQueue creates a queue in the given mode.
func NewQueue(mode Mode) *Queue {
	q := &Queue{mode: mode}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// SetMode switches the approval mode.
func (q *Queue) SetMode(m Mode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.mode = m
}

// Mode returns the current mode.
func (q *Queue) Mode() Mode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.mode
}

// timeoutForUrgency returns how long a pending action of the given
// urgency waits before expiring into auto-approval.
func timeoutForUrgency(u action.Urgency) time.Duration {
	switch u {
	case action.Immediate:
		return 500 * time.Millisecond
	case action.Fast:
		return 2 * time.Second
	case action.Low:
		return 30 * time.Second
	}
	return 10 * time.Second
}

// Submit routes an action by mode. It returns true when the caller may
// execute immediately (auto-approved) and false when the action was
// queued or rejected.
func (q *Queue) Submit(a action.Action) bool {
	q.mu.Lock()

	switch q.mode {
	case AutoAll:
		q.mu.Unlock()
		return true
	case DenyAll:
		q.rejected = append(q.rejected, QueuedAction{
			ID: uuid.NewString(), Action: a, Queued: time.Now(), Rejected: true,
		})
		hook := q.OnRejected
		q.mu.Unlock()
		if hook != nil {
			hook(a)
		}
		return false
	case AutoUrgent:
		if a.Urgency == action.Immediate || a.Urgency == action.Fast {
			q.mu.Unlock()
			return true
		}
	}

	q.pending = append(q.pending, QueuedAction{
		ID:      uuid.NewString(),
		Action:  a,
		Queued:  time.Now(),
		Timeout: timeoutForUrgency(a.Urgency),
	})
	q.cond.Broadcast()
	q.mu.Unlock()
	return false
}

// Pending returns a copy of the pending list for UI display.
func (q *Queue) Pending() []QueuedAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]QueuedAction(nil), q.pending...)
}

// PendingCount returns how many actions await a decision.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Approve moves the pending action at index into the approved list.
func (q *Queue) Approve(index int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < 0 || index >= len(q.pending) {
		return false
	}
	qa := q.pending[index]
	qa.Approved = true
	q.approved = append(q.approved, qa)
	q.pending = append(q.pending[:index], q.pending[index+1:]...)
	q.cond.Broadcast()
	return true
}

// Reject moves the pending action at index into the rejected list.
func (q *Queue) Reject(index int) bool {
	q.mu.Lock()
	if index < 0 || index >= len(q.pending) {
		q.mu.Unlock()
		return false
	}
	qa := q.pending[index]
	qa.Rejected = true
	q.rejected = append(q.rejected, qa)
	q.pending = append(q.pending[:index], q.pending[index+1:]...)
	hook := q.OnRejected
	q.mu.Unlock()
	if hook != nil {
		hook(qa.Action)
	}
	return true
}

// ApproveAllPending approves every pending action.
func (q *Queue) ApproveAllPending() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, qa := range q.pending {
		qa.Approved = true
		q.approved = append(q.approved, qa)
	}
	q.pending = q.pending[:0]
	q.cond.Broadcast()
}

// RejectAllPending rejects every pending action.
func (q *Queue) RejectAllPending() {
	q.mu.Lock()
	rejected := make([]QueuedAction, 0, len(q.pending))
	for _, qa := range q.pending {
		qa.Rejected = true
		q.rejected = append(q.rejected, qa)
		rejected = append(rejected, qa)
	}
	q.pending = q.pending[:0]
	hook := q.OnRejected
	q.mu.Unlock()
	if hook != nil {
		for _, qa := range rejected {
			hook(qa.Action)
		}
	}
}

// expireOldLocked auto-approves pending actions whose timeout elapsed.
// They had their chance at a manual decision.
func (q *Queue) expireOldLocked(now time.Time) {
	kept := q.pending[:0]
	for _, qa := range q.pending {
		if now.Sub(qa.Queued) > qa.Timeout {
			qa.Approved = true
			qa.Expired = true
			q.approved = append(q.approved, qa)
			continue
		}
		kept = append(kept, qa)
	}
	q.pending = kept
}

// PopApproved returns the next approved action, blocking up to timeout
// for one to appear. The expiry sweep runs on every call.
func (q *Queue) PopApproved(timeout time.Duration) (action.Action, bool) {
	deadline := time.Now().Add(timeout)

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		q.expireOldLocked(time.Now())

		if len(q.approved) > 0 {
			qa := q.approved[0]
			q.approved = q.approved[1:]
			return qa.Action, true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return action.Action{}, false
		}

		// sync.Cond has no timed wait; a timer broadcast bounds it.
		timer := time.AfterFunc(remaining, func() {
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		})
		q.cond.Wait()
		timer.Stop()
	}
}
