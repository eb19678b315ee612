package engine

import (
	"context"
	"time"

	"github.com/actionfleet/actionfleet/internal/executor"
)

// Action is a single command bound to a node set, wired into a dependency
// graph of other actions. Its Status field is the state machine's only
// piece of mutable identity; the configuration fields are fixed at
// construction, while StartTime, StopTime, Worker and the retry count are
// written as a run proceeds (StopTime, Worker and retry once per attempt).
type Action struct {
	Name      string
	Target    string // node-set expression the command dispatches to
	Command   string
	Timeout   time.Duration
	Delay     time.Duration
	Errors    int // max tolerated non-zero-exit nodes before TooManyErrors
	Fanout    int // 0 means "no opinion"; see Manager.Fanout
	Variables map[string]string

	Status    Status
	StartTime time.Time
	StopTime  time.Time
	Worker    executor.Worker

	Parents  map[string]*Dependency
	Children map[string]*Dependency

	Service *Service

	retry       int
	retryBackup int // -1 until SetRetry is called at least once
}

// NewAction constructs an Action in NoStatus with empty graph edges.
func NewAction(name string) *Action {
	return &Action{
		Name:        name,
		Status:      NoStatus,
		Variables:   make(map[string]string),
		Parents:     make(map[string]*Dependency),
		Children:    make(map[string]*Dependency),
		retryBackup: -1,
	}
}

// Retry returns the number of retries remaining.
func (a *Action) Retry() int { return a.retry }

// SetRetry sets how many times a may be rescheduled after a TimedOut or
// TooManyErrors completion. Retry only makes sense alongside a Delay,
// since a retried action is rescheduled through the delayed-dispatch path;
// setting it on an action with no delay is a configuration error.
func (a *Action) SetRetry(n int) {
	if a.Delay <= 0 {
		panic("engine: cannot set retry on an action with no delay")
	}
	if n < 0 {
		panic("engine: retry count cannot be negative")
	}
	a.retry = n
	if a.retryBackup == -1 {
		a.retryBackup = n
	}
}

// Duration reports how long a ran, and false if it hasn't started and
// stopped yet.
func (a *Action) Duration() (time.Duration, bool) {
	if a.StartTime.IsZero() || a.StopTime.IsZero() {
		return 0, false
	}
	return a.StopTime.Sub(a.StartTime), true
}

// Reset returns a to NoStatus, clearing its timing and worker and
// restoring its retry count to the value first given to SetRetry, so it
// can be prepared again in a subsequent run. Terminal
// statuses are otherwise sticky — Reset is the only way to clear one.
func (a *Action) Reset() {
	a.Status = NoStatus
	a.StartTime = time.Time{}
	a.StopTime = time.Time{}
	a.Worker = nil
	if a.retryBackup >= 0 {
		a.retry = a.retryBackup
	}
	notify(EvStatusChanged, a)
}

// Prepare walks a's parents recursively: it dispatches a when a has no
// parents or when a parent ended in a non-Done terminal status, marks a
// Done without dispatching it when every parent is Done, and otherwise
// recurses into any parent still at NoStatus.
//
// A parent that ended in a non-Done terminal status does not block a: the
// dependency policy is fail-open by design — a missing or broken
// dependency still lets downstream actions attempt to run, rather than
// cascading a single failure into a frozen graph.
func (a *Action) Prepare() {
	depsStatus := a.EvalDepsStatus()
	if a.Status != NoStatus || depsStatus == WaitingStatus {
		return
	}
	switch {
	case depsStatus == Error || len(a.Parents) == 0:
		a.UpdateStatus(WaitingStatus)
		a.Schedule(true)
	case depsStatus == Done:
		a.UpdateStatus(Done)
	default:
		for _, dep := range a.Parents {
			if dep.Target.Status == NoStatus {
				dep.Target.Prepare()
			}
		}
	}
}

// UpdateStatus writes a's Status, notifies the callback sink, and — once
// the new status is terminal — triggers any children now ready to
// prepare, or propagates completion up to the owning Service when a has no
// children.
func (a *Action) UpdateStatus(status Status) {
	if !validStatuses[status] {
		panic("engine: invalid action status")
	}
	a.Status = status
	notify(EvStatusChanged, a)
	if status == NoStatus || status == WaitingStatus {
		return
	}
	notify(EvComplete, a)
	if len(a.Children) > 0 {
		for _, dep := range a.Children {
			if dep.Target.IsReady() {
				notify(EvTriggerDep, [2]*Action{a, dep.Target})
				dep.Target.Prepare()
			}
		}
		return
	}
	if a.Service != nil {
		a.Service.UpdateStatus(a.Status)
	}
}

// HasTimedOut reports whether a's worker (once it has one) reported a
// timeout.
func (a *Action) HasTimedOut() bool {
	return a.Worker != nil && a.Worker.DidTimeout()
}

// HasTooManyErrors reports whether more nodes returned a non-zero exit
// code than a.Errors tolerates.
func (a *Action) HasTooManyErrors() bool {
	if a.Worker == nil {
		return false
	}
	errored := 0
	for _, group := range a.Worker.IterRetcodes() {
		if group.Code != 0 {
			errored += len(group.Nodes)
		}
	}
	return errored > a.Errors
}

// Schedule hands a off to the Action Manager, either immediately
// (PerformAction) or, when a has a positive Delay and allowDelay is set,
// through a delay timer (PerformDelayedAction). A retried action calls
// Schedule(true) again after decrementing its retry count.
func (a *Action) Schedule(allowDelay bool) {
	if a.StartTime.IsZero() {
		a.StartTime = time.Now()
	}
	mgr := ActionManagerSelf()
	if a.Delay > 0 && allowDelay {
		notify(EvDelayed, a)
		mgr.PerformDelayedAction(a)
		return
	}
	notify(EvStarted, a)
	mgr.PerformAction(a)
}

// Run prepares a and blocks until the Action Manager's run loop has
// drained every action it dispatched, directly or transitively.
func (a *Action) Run(ctx context.Context) error {
	a.Prepare()
	return ActionManagerSelf().RunLoop(ctx)
}
