package engine

import (
	"context"
	"testing"
)

func TestService_Run_UnknownAction(t *testing.T) {
	resetSingletons(t)
	svc := NewService("web")
	if err := svc.Run(context.Background(), "missing"); err == nil {
		t.Fatalf("Run with an unknown action name did not error")
	}
}

func TestService_EvalDepsStatus_Empty(t *testing.T) {
	svc := NewService("web")
	if got := svc.EvalDepsStatus(); got != NoStatus {
		t.Fatalf("EvalDepsStatus of an empty service = %v, want NoStatus", got)
	}
}

func TestService_EvalDepsStatus_AllDone(t *testing.T) {
	svc := NewService("web")
	a1 := NewAction("a1")
	a1.Status = Done
	a2 := NewAction("a2")
	a2.Status = Done
	svc.AddAction(a1)
	svc.AddAction(a2)
	if got := svc.EvalDepsStatus(); got != Done {
		t.Fatalf("EvalDepsStatus = %v, want Done", got)
	}
}

func TestServiceManagerSelf_Singleton(t *testing.T) {
	resetSingletons(t)
	a := ServiceManagerSelf()
	b := ServiceManagerSelf()
	if a != b {
		t.Fatalf("ServiceManagerSelf returned two different instances")
	}
}

func TestServiceManager_RegisterAndLookup(t *testing.T) {
	resetSingletons(t)
	mgr := ServiceManagerSelf()
	svc := NewService("web")
	mgr.Register(svc)
	got, ok := mgr.Service("web")
	if !ok || got != svc {
		t.Fatalf("Service(%q) = %v, %v; want the registered service", "web", got, ok)
	}
}
