// Package executor implements the node executor contract the engine
// package dispatches commands through: a parallel command runner addressed
// by a node-set string, reporting back per-node completions (hang-ups) and
// a final close, plus an independent timer facility for delayed actions.
//
// The contract is intentionally narrow — engine only ever calls Submit,
// InstallTimer, SetFanout and Run — so a cluster-wide SSH/pdsh-backed
// executor could implement it without touching the engine package.
package executor

import (
	"context"
	"time"
)

// RetcodeGroup groups the nodes that returned a particular exit code,
// mirroring how cluster-parallel command runners report retcodes: one
// entry per distinct code, not one per node.
type RetcodeGroup struct {
	Code  int
	Nodes []string
}

// Worker is a single in-flight (or just-completed) command dispatch across
// a node set.
type Worker interface {
	// LastRead returns the node and buffer content for the most recent
	// output event. Only meaningful from inside a Handler callback.
	LastRead() (node string, buffer []byte)
	// LastRetcode returns the node and exit code for the most recent
	// retcode event.
	LastRetcode() (node string, code int)
	// IterRetcodes returns every distinct (code, nodes) group observed
	// once the worker has closed.
	IterRetcodes() []RetcodeGroup
	// DidTimeout reports whether any node failed to complete before the
	// worker's timeout elapsed.
	DidTimeout() bool
	// Command returns the resolved command string that was submitted.
	Command() string
}

// Timer is a handle to an installed delay timer.
type Timer interface {
	Stop()
}

// Handler receives per-worker lifecycle events. OnHup fires once per node
// as it reports in (ClusterShell calls this ev_hup); OnClose fires once
// when every node in the worker's set has finished or timed out.
type Handler interface {
	OnHup(w Worker)
	OnClose(w Worker)
}

// TimerHandler receives a single callback when an installed Timer fires.
type TimerHandler interface {
	OnTimer(t Timer)
}

// NodeExecutor is the contract between the engine and whatever actually
// runs commands against a node set.
type NodeExecutor interface {
	// Submit dispatches command against nodes (a node-set expression,
	// e.g. "node[1-32]" or a single hostname), enforcing timeout if it is
	// > 0, and reports progress/completion through h.
	Submit(ctx context.Context, command, nodes string, timeout time.Duration, h Handler) (Worker, error)
	// InstallTimer arranges for h.OnTimer to be called once, after delay
	// has elapsed, on the same goroutine that drains Run's event loop.
	InstallTimer(delay time.Duration, h TimerHandler) Timer
	// SetFanout bounds how many nodes any single worker dispatches to
	// concurrently. A value <= 0 means unbounded.
	SetFanout(n int)
	// Run drains the executor's event loop until ctx is cancelled and
	// every outstanding worker and timer has been accounted for.
	Run(ctx context.Context) error
}
