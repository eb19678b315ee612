package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/actionfleet/actionfleet/pkg/core/resilience"
)

// LocalExecutor runs commands through os/exec against a node set expanded
// on the local host, one subprocess per node, funneling every completion
// back through a single event channel so the engine package only ever
// observes handler callbacks on one goroutine — the same cooperative,
// single-threaded model the original cluster-parallel command runner gave
// the engine, even though dispatch itself is concurrent underneath.
//
// It keys a resilience.CircuitBreaker and resilience.RateLimiter per node
// so one misbehaving host degrades gracefully instead of burning the
// whole run's fanout budget.
type LocalExecutor struct {
	mu       sync.Mutex
	fanout   int32 // 0 = unbounded
	sem      chan struct{}
	breakers map[string]*resilience.CircuitBreaker
	limiters map[string]*resilience.RateLimiter

	events  chan event
	pending int64

	allowed map[string]bool
}

type eventKind int

const (
	evHup eventKind = iota
	evClose
	evTimer
)

type event struct {
	kind         eventKind
	worker       *localWorker
	handler      Handler
	timer        *localTimer
	timerHandler TimerHandler
}

// defaultAllowedCommands mirrors the teacher's shell-plugin whitelist: a
// command is accepted only if its first word is in this set. Only that
// first word is checked; the whole string then runs under "sh -c", so
// later words, shell separators and values substituted for $VAR tokens
// are not checked.
var defaultAllowedCommands = map[string]bool{
	"echo": true, "cat": true, "true": true, "false": true,
	"sh": true, "bash": true, "test": true, "systemctl": true,
	"sleep": true, "ls": true, "grep": true,
}

// NewLocalExecutor constructs an executor with an unbounded fanout and the
// default command whitelist.
func NewLocalExecutor() *LocalExecutor {
	allowed := make(map[string]bool, len(defaultAllowedCommands))
	for name := range defaultAllowedCommands {
		allowed[name] = true
	}
	return &LocalExecutor{
		breakers: make(map[string]*resilience.CircuitBreaker),
		limiters: make(map[string]*resilience.RateLimiter),
		events:   make(chan event, 256),
		allowed:  allowed,
	}
}

// AllowCommand adds name to the executor's whitelist, for callers wiring
// up a demo or test graph that needs a binary not in the default set.
func (e *LocalExecutor) AllowCommand(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.allowed[name] = true
}

func (e *LocalExecutor) SetFanout(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	atomic.StoreInt32(&e.fanout, int32(n))
	if n > 0 {
		e.sem = make(chan struct{}, n)
	} else {
		e.sem = nil
	}
}

func (e *LocalExecutor) acquire() {
	e.mu.Lock()
	sem := e.sem
	e.mu.Unlock()
	if sem != nil {
		sem <- struct{}{}
	}
}

func (e *LocalExecutor) release() {
	e.mu.Lock()
	sem := e.sem
	e.mu.Unlock()
	if sem != nil {
		<-sem
	}
}

func (e *LocalExecutor) breakerFor(node string) *resilience.CircuitBreaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	cb, ok := e.breakers[node]
	if !ok {
		cb = resilience.NewCircuitBreakerAdaptive(30*time.Second, 6, 3, 0.5, 5*time.Second, 1)
		e.breakers[node] = cb
	}
	return cb
}

func (e *LocalExecutor) limiterFor(node string) *resilience.RateLimiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	rl, ok := e.limiters[node]
	if !ok {
		rl = resilience.NewRateLimiter(5, 5, time.Second, 20)
		e.limiters[node] = rl
	}
	return rl
}

// localWorker accumulates per-node results for a single Submit call.
type localWorker struct {
	command string
	timeout time.Duration

	mu          sync.Mutex
	lastNode    string
	lastBuffer  []byte
	lastRcNode  string
	lastRcCode  int
	retcodes    map[int][]string
	timedOut    bool
}

func (w *localWorker) LastRead() (string, []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastNode, w.lastBuffer
}

func (w *localWorker) LastRetcode() (string, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRcNode, w.lastRcCode
}

func (w *localWorker) IterRetcodes() []RetcodeGroup {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]RetcodeGroup, 0, len(w.retcodes))
	for code, nodes := range w.retcodes {
		cp := make([]string, len(nodes))
		copy(cp, nodes)
		out = append(out, RetcodeGroup{Code: code, Nodes: cp})
	}
	return out
}

func (w *localWorker) DidTimeout() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timedOut
}

func (w *localWorker) Command() string { return w.command }

// Submit expands nodes into a node list and runs command once per node
// concurrently (bounded by the executor's fanout), reporting each node's
// completion and the worker's final close back through the event loop.
func (e *LocalExecutor) Submit(ctx context.Context, command, nodes string, timeout time.Duration, h Handler) (Worker, error) {
	nodeList, err := ExpandNodeSet(nodes)
	if err != nil {
		return nil, err
	}
	if err := e.checkWhitelist(command); err != nil {
		return nil, err
	}

	w := &localWorker{command: command, timeout: timeout, retcodes: make(map[int][]string)}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	atomic.AddInt64(&e.pending, 1)
	go func() {
		if cancel != nil {
			defer cancel()
		}
		var wg sync.WaitGroup
		for _, node := range nodeList {
			node := node
			if !e.limiterFor(node).Allow() {
				w.recordRetcode(node, -1)
				continue
			}
			if !e.breakerFor(node).Allow() {
				w.recordRetcode(node, -1)
				continue
			}
			wg.Add(1)
			e.acquire()
			go func() {
				defer e.release()
				defer wg.Done()
				e.runOne(runCtx, w, node, command, h)
			}()
		}
		wg.Wait()
		if runCtx.Err() == context.DeadlineExceeded {
			w.mu.Lock()
			w.timedOut = true
			w.mu.Unlock()
		}
		e.events <- event{kind: evClose, worker: w, handler: h}
	}()

	return w, nil
}

// runOneResult is a single node's completed run: its captured stdout and
// the exit code the worker should record.
type runOneResult struct {
	stdout []byte
	code   int
}

// runOne executes command against a single node. Spawn failures (the
// shell never started — a distinct, transient failure mode from the
// command itself exiting non-zero) go through resilience.Retry; an
// application exit code is never retried here; that decision belongs to
// the engine's own Action.Retry budget once the whole worker closes.
func (e *LocalExecutor) runOne(ctx context.Context, w *localWorker, node, command string, h Handler) {
	res, err := resilience.Retry(ctx, 2, 50*time.Millisecond, func() (runOneResult, error) {
		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Env = append(cmd.Env, "ACTIONFLEET_NODE="+node)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		runErr := cmd.Run()
		if runErr == nil {
			return runOneResult{stdout: stdout.Bytes(), code: 0}, nil
		}
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return runOneResult{stdout: stdout.Bytes(), code: exitErr.ExitCode()}, nil
		}
		return runOneResult{}, runErr
	})

	code := res.code
	if err != nil {
		code = -1
	}
	e.breakerFor(node).RecordResult(code == 0)
	w.recordRead(node, res.stdout)
	w.recordRetcode(node, code)
	e.events <- event{kind: evHup, worker: w, handler: h}
}

func (w *localWorker) recordRead(node string, buf []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastNode = node
	w.lastBuffer = buf
}

func (w *localWorker) recordRetcode(node string, code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastRcNode = node
	w.lastRcCode = code
	w.retcodes[code] = append(w.retcodes[code], node)
}

func (e *LocalExecutor) checkWhitelist(command string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return fmt.Errorf("empty command")
	}
	bin := fields[0]
	if !e.allowed[bin] {
		return fmt.Errorf("command %q is not in the executor whitelist", bin)
	}
	return nil
}

// localTimer is the Timer handle returned by InstallTimer.
type localTimer struct {
	t       *time.Timer
	stopped int32
}

func (t *localTimer) Stop() {
	if atomic.CompareAndSwapInt32(&t.stopped, 0, 1) {
		t.t.Stop()
	}
}

func (e *LocalExecutor) InstallTimer(delay time.Duration, h TimerHandler) Timer {
	lt := &localTimer{}
	atomic.AddInt64(&e.pending, 1)
	lt.t = time.AfterFunc(delay, func() {
		e.events <- event{kind: evTimer, timer: lt, timerHandler: h}
	})
	return lt
}

// Run drains the event loop until every outstanding worker/timer has been
// accounted for, or ctx is cancelled. Handler callbacks that schedule new
// work (retries, dependent actions) run synchronously on this goroutine
// and are folded back into the pending count before Run considers the
// loop drained.
func (e *LocalExecutor) Run(ctx context.Context) error {
	for {
		if atomic.LoadInt64(&e.pending) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.events:
			switch ev.kind {
			case evHup:
				ev.handler.OnHup(ev.worker)
			case evClose:
				atomic.AddInt64(&e.pending, -1)
				ev.handler.OnClose(ev.worker)
			case evTimer:
				atomic.AddInt64(&e.pending, -1)
				ev.timerHandler.OnTimer(ev.timer)
			}
		}
	}
}

var rangeRe = regexp.MustCompile(`^(.*?)\[(\d+)-(\d+)\](.*)$`)

// ExpandNodeSet expands a minimal node-set expression: comma-separated
// hostnames, optionally with one "[a-b]" numeric range per term (e.g.
// "node[1-3],edge"), into a flat, de-duplicated, ordered node list. A
// single unbracketed hostname (including "localhost") expands to itself.
func ExpandNodeSet(expr string) ([]string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty node set")
	}
	seen := make(map[string]bool)
	var out []string
	for _, term := range strings.Split(expr, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		m := rangeRe.FindStringSubmatch(term)
		if m == nil {
			if !seen[term] {
				seen[term] = true
				out = append(out, term)
			}
			continue
		}
		prefix, lo, hi, suffix := m[1], m[2], m[3], m[4]
		loN, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("bad node range %q: %w", term, err)
		}
		hiN, err := strconv.Atoi(hi)
		if err != nil {
			return nil, fmt.Errorf("bad node range %q: %w", term, err)
		}
		if hiN < loN {
			return nil, fmt.Errorf("bad node range %q: end before start", term)
		}
		width := len(lo)
		for n := loN; n <= hiN; n++ {
			name := fmt.Sprintf("%s%0*d%s", prefix, width, n, suffix)
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("node set %q expanded to nothing", expr)
	}
	return out, nil
}
