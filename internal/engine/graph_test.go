package engine

import "testing"

func TestEvalDepsStatus_AllDone(t *testing.T) {
	a := NewAction("a")
	p1 := NewAction("p1")
	p1.Status = Done
	p2 := NewAction("p2")
	p2.Status = Done
	AddDependency(a, p1)
	AddDependency(a, p2)
	if got := a.EvalDepsStatus(); got != Done {
		t.Fatalf("EvalDepsStatus = %v, want Done", got)
	}
	if !a.IsReady() {
		t.Fatalf("IsReady = false, want true")
	}
}

func TestEvalDepsStatus_AnyError(t *testing.T) {
	a := NewAction("a")
	p1 := NewAction("p1")
	p1.Status = Done
	p2 := NewAction("p2")
	p2.Status = TooManyErrors
	p3 := NewAction("p3")
	p3.Status = WaitingStatus
	AddDependency(a, p1)
	AddDependency(a, p2)
	AddDependency(a, p3)
	// A failed parent takes priority over a still-waiting one: the
	// dependency policy is fail-open, so a becomes ready as soon as it's
	// clear it will never see an all-Done set.
	if got := a.EvalDepsStatus(); got != Error {
		t.Fatalf("EvalDepsStatus = %v, want Error", got)
	}
	if !a.IsReady() {
		t.Fatalf("IsReady = false, want true")
	}
}

func TestEvalDepsStatus_Waiting(t *testing.T) {
	a := NewAction("a")
	p1 := NewAction("p1")
	p1.Status = Done
	p2 := NewAction("p2")
	p2.Status = WaitingStatus
	AddDependency(a, p1)
	AddDependency(a, p2)
	if got := a.EvalDepsStatus(); got != WaitingStatus {
		t.Fatalf("EvalDepsStatus = %v, want WaitingStatus", got)
	}
	if a.IsReady() {
		t.Fatalf("IsReady = true, want false")
	}
}

func TestEvalDepsStatus_NoParents(t *testing.T) {
	a := NewAction("a")
	if got := a.EvalDepsStatus(); got != NoStatus {
		t.Fatalf("EvalDepsStatus = %v, want NoStatus", got)
	}
}

func TestEvalDepsStatus_SomeNotStarted(t *testing.T) {
	a := NewAction("a")
	p1 := NewAction("p1")
	p1.Status = Done
	p2 := NewAction("p2") // still NoStatus
	AddDependency(a, p1)
	AddDependency(a, p2)
	if got := a.EvalDepsStatus(); got != NoStatus {
		t.Fatalf("EvalDepsStatus = %v, want NoStatus", got)
	}
}

func TestDetectCycle_Clean(t *testing.T) {
	svc := NewService("TEST")
	a := NewAction("a")
	b := NewAction("b")
	c := NewAction("c")
	svc.AddAction(a)
	svc.AddAction(b)
	svc.AddAction(c)
	AddDependency(b, a)
	AddDependency(c, b)
	if err := DetectCycle(svc); err != nil {
		t.Fatalf("DetectCycle on a clean DAG: %v", err)
	}
}

func TestDetectCycle_Cyclic(t *testing.T) {
	svc := NewService("TEST")
	a := NewAction("a")
	b := NewAction("b")
	svc.AddAction(a)
	svc.AddAction(b)
	AddDependency(b, a)
	AddDependency(a, b)
	if err := DetectCycle(svc); err == nil {
		t.Fatalf("DetectCycle did not report the a<->b cycle")
	}
}

func TestPrepare_PropagatesThroughChain(t *testing.T) {
	resetSingletons(t)
	svc := NewService("TEST")
	svc.Simulate = true
	first := NewAction("first")
	second := NewAction("second")
	third := NewAction("third")
	svc.AddAction(first)
	svc.AddAction(second)
	svc.AddAction(third)
	AddDependency(second, first)
	AddDependency(third, second)

	third.Prepare()

	if first.Status != Done || second.Status != Done || third.Status != Done {
		t.Fatalf("chain did not fully complete: first=%v second=%v third=%v",
			first.Status, second.Status, third.Status)
	}
}
