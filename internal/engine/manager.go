package engine

import (
	"context"
	"sync"
	"time"

	"github.com/actionfleet/actionfleet/internal/executor"
)

// Manager is the Action Manager singleton: it owns the set of currently
// running actions, recomputes the effective fanout every time that set
// changes, and is the only thing in the package allowed to talk to a
// executor.NodeExecutor.
type Manager struct {
	mu             sync.Mutex
	running        map[*Action]struct{}
	fanout         int
	tasksDoneCount int
	exec           executor.NodeExecutor
}

var (
	managerOnce     sync.Once
	managerInstance *Manager
)

// ActionManagerSelf returns the process-wide Manager, constructing it on
// first use.
func ActionManagerSelf() *Manager {
	managerOnce.Do(func() {
		managerInstance = &Manager{running: make(map[*Action]struct{})}
	})
	return managerInstance
}

// ResetActionManagerForTest discards the singleton so the next call to
// ActionManagerSelf constructs a fresh one, with an empty running set and
// tasksDoneCount back at zero.
func ResetActionManagerForTest() {
	managerOnce = sync.Once{}
	managerInstance = nil
}

// SetExecutor installs the node executor used for dispatch. Tests and the
// CLI entry point call this once during setup; PerformAction lazily
// constructs a executor.LocalExecutor if nothing was installed.
func (m *Manager) SetExecutor(e executor.NodeExecutor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exec = e
}

// AddTask adds a to the running set and recomputes the effective fanout.
// Adding an action already running is a no-op.
func (m *Manager) AddTask(a *Action) {
	if a == nil {
		panic("engine: task cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.running[a]; ok {
		return
	}
	m.running[a] = struct{}{}
	m.recomputeFanoutLocked()
}

// RemoveTask removes a from the running set, bumps tasksDoneCount, and
// recomputes the effective fanout. Removing an action not currently
// running is a no-op.
func (m *Manager) RemoveTask(a *Action) {
	if a == nil {
		panic("engine: task cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.running[a]; !ok {
		return
	}
	delete(m.running, a)
	m.tasksDoneCount++
	m.recomputeFanoutLocked()
}

// recomputeFanoutLocked sets the manager's effective fanout to the
// smallest positive Fanout among currently running actions, or 0 (no
// bound) if none of them expressed an opinion. Called with mu held.
func (m *Manager) recomputeFanoutLocked() {
	fanout := 0
	for a := range m.running {
		if a.Fanout > 0 && (fanout == 0 || a.Fanout < fanout) {
			fanout = a.Fanout
		}
	}
	m.fanout = fanout
	if m.exec != nil {
		m.exec.SetFanout(fanout)
	}
}

// Fanout returns the current effective fanout (0 meaning unbounded).
func (m *Manager) Fanout() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fanout
}

// TasksCount returns how many actions are currently running.
func (m *Manager) TasksCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

// TasksDoneCount returns how many actions have been removed from the
// running set over the manager's lifetime.
func (m *Manager) TasksDoneCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasksDoneCount
}

// IsRunningTask reports whether a is currently in the running set.
func (m *Manager) IsRunningTask(a *Action) bool {
	if a == nil {
		panic("engine: task cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[a]
	return ok
}

// RunningTasks returns a snapshot of the currently running actions.
func (m *Manager) RunningTasks() []*Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Action, 0, len(m.running))
	for a := range m.running {
		out = append(out, a)
	}
	return out
}

func (m *Manager) executorOrDefault() executor.NodeExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exec == nil {
		m.exec = executor.NewLocalExecutor()
	}
	return m.exec
}

// PerformAction dispatches a to the node executor right now. A simulated
// service's action is never handed to the executor: its status is instead
// derived immediately from its own dependency evaluation, and neither the
// running set nor tasksDoneCount are touched.
func (m *Manager) PerformAction(a *Action) {
	if a.Service != nil && a.Service.Simulate {
		m.dispatchSimulated(a)
		return
	}
	m.AddTask(a)
	cmd, err := a.ResolvedCommand()
	if err != nil {
		m.RemoveTask(a)
		a.StopTime = time.Now()
		a.UpdateStatus(Error)
		return
	}
	h := &actionHandler{action: a, manager: m}
	if _, err := m.executorOrDefault().Submit(context.Background(), cmd, a.Target, a.Timeout, h); err != nil {
		m.RemoveTask(a)
		a.StopTime = time.Now()
		a.UpdateStatus(Error)
	}
}

// PerformDelayedAction always installs a's delay timer, simulated service
// or not — only the dispatch that happens once the timer fires is
// suppressed, in timerHandler.OnTimer, so a simulated action with a Delay
// still takes that long to resolve instead of settling instantly.
func (m *Manager) PerformDelayedAction(a *Action) {
	th := &timerHandler{action: a, manager: m}
	m.executorOrDefault().InstallTimer(a.Delay, th)
}

// dispatchSimulated resolves a ghost-service action's terminal status from
// its own dependency evaluation instead of an executor round trip: Error
// if a dependency already failed, Done otherwise (including the common
// case of no dependencies at all, which EvalDepsStatus reports as
// NoStatus — not itself a terminal status an action can sit in). The
// owning service's aggregate status is refreshed from the same
// evaluation, satisfied over the service's own action set.
func (m *Manager) dispatchSimulated(a *Action) {
	ds := a.EvalDepsStatus()
	if ds != Done && ds != Error {
		ds = Done
	}
	a.UpdateStatus(ds)
	if a.Service != nil {
		a.Service.UpdateStatus(a.Service.EvalDepsStatus())
	}
}

// RunLoop blocks until the node executor's event loop has drained every
// worker and timer it was asked to track, directly or as a side effect of
// a handler callback scheduling more work.
func (m *Manager) RunLoop(ctx context.Context) error {
	return m.executorOrDefault().Run(ctx)
}
