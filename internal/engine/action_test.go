package engine

import (
	"testing"
	"time"
)

func TestAction_Reset_RestoresRetryBackupAndClearsTiming(t *testing.T) {
	a := NewAction("a")
	a.Delay = time.Second
	a.SetRetry(3)
	a.SetRetry(1) // consume some of the budget
	a.Status = Done
	a.StartTime = time.Now()
	a.StopTime = a.StartTime.Add(time.Millisecond)

	a.Reset()

	if a.Status != NoStatus {
		t.Fatalf("status after reset = %v, want NoStatus", a.Status)
	}
	if !a.StartTime.IsZero() || !a.StopTime.IsZero() {
		t.Fatalf("timing not cleared by Reset")
	}
	if a.Retry() != 3 {
		t.Fatalf("retry after reset = %d, want 3 (retryBackup)", a.Retry())
	}
}

func TestAction_SetRetry_RequiresDelay(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("SetRetry on an action with no delay did not panic")
		}
	}()
	a := NewAction("a")
	a.SetRetry(2)
}

func TestAction_SetRetry_RejectsNegative(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("SetRetry(-1) did not panic")
		}
	}()
	a := NewAction("a")
	a.Delay = time.Second
	a.SetRetry(-1)
}

func TestAction_Duration_RequiresBothTimestamps(t *testing.T) {
	a := NewAction("a")
	if _, ok := a.Duration(); ok {
		t.Fatalf("Duration available before Start/StopTime are set")
	}
	a.StartTime = time.Now()
	if _, ok := a.Duration(); ok {
		t.Fatalf("Duration available with only StartTime set")
	}
	a.StopTime = a.StartTime.Add(2 * time.Second)
	d, ok := a.Duration()
	if !ok || d != 2*time.Second {
		t.Fatalf("Duration = %v, %v; want 2s, true", d, ok)
	}
}

func TestAction_UpdateStatus_RejectsUnknown(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("UpdateStatus(999) did not panic")
		}
	}()
	a := NewAction("a")
	a.UpdateStatus(Status(999))
}

func TestAction_UpdateStatus_TriggersReadyChildren(t *testing.T) {
	parent := NewAction("parent")
	child := NewAction("child")
	AddDependency(child, parent)

	var triggered bool
	SetSink(sinkFunc(func(kind EventKind, payload any) {
		if kind == EvTriggerDep {
			triggered = true
		}
	}))
	defer SetSink(nil)

	parent.UpdateStatus(Done)
	if !triggered {
		t.Fatalf("EvTriggerDep was not emitted when parent completed")
	}
	if child.Status != Done {
		t.Fatalf("child status = %v, want Done (all parents satisfied)", child.Status)
	}
}

func TestAction_HasTooManyErrors_NilWorker(t *testing.T) {
	a := NewAction("a")
	if a.HasTooManyErrors() {
		t.Fatalf("HasTooManyErrors true with nil worker")
	}
	if a.HasTimedOut() {
		t.Fatalf("HasTimedOut true with nil worker")
	}
}
