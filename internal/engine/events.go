package engine

import (
	"time"

	"github.com/actionfleet/actionfleet/internal/executor"
)

// actionHandler bridges executor.Handler callbacks back into a single
// Action's state machine. One is created per PerformAction dispatch.
type actionHandler struct {
	action  *Action
	manager *Manager
}

// OnHup fires once per node as it reports in; it never changes a's
// Status, it only republishes the per-node result for observers.
func (h *actionHandler) OnHup(w executor.Worker) {
	notify(EvComplete, nodeInfoFromWorker(w))
}

// OnClose fires once every node in the worker's set has finished or timed
// out. It decides a's terminal status, retrying through the delay path
// when retries remain and the run either timed out or exceeded its error
// budget.
func (h *actionHandler) OnClose(w executor.Worker) {
	a := h.action
	a.StopTime = time.Now()
	h.manager.RemoveTask(a)
	a.Worker = w

	tooManyErrors := a.HasTooManyErrors()
	timedOut := a.HasTimedOut()

	switch {
	case (tooManyErrors || timedOut) && a.Retry() > 0:
		a.SetRetry(a.Retry() - 1)
		a.Schedule(true)
	case tooManyErrors:
		a.UpdateStatus(TooManyErrors)
	case timedOut:
		a.UpdateStatus(TimedOut)
	default:
		a.UpdateStatus(Done)
	}
}

// timerHandler bridges a single InstallTimer callback back into the
// action that scheduled it.
type timerHandler struct {
	action  *Action
	manager *Manager
}

// OnTimer fires once a's delay has elapsed. For a simulated service the
// action still never reaches the executor: its status is derived from
// dependency evaluation instead of an actual dispatch, at the same timer
// expiry a non-simulated action would use to finally dispatch.
func (h *timerHandler) OnTimer(t executor.Timer) {
	a := h.action
	if a.Service != nil && a.Service.Simulate {
		h.manager.dispatchSimulated(a)
		return
	}
	a.Schedule(false)
}
