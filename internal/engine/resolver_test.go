package engine

import "testing"

func TestResolvedCommand_NoTokens(t *testing.T) {
	a := NewAction("a")
	a.Command = "systemctl restart httpd"
	got, err := a.ResolvedCommand()
	if err != nil {
		t.Fatalf("ResolvedCommand: %v", err)
	}
	if got != a.Command {
		t.Fatalf("ResolvedCommand = %q, want input unchanged", got)
	}
}

func TestResolvedCommand_ActionAttribute(t *testing.T) {
	a := NewAction("start")
	a.Target = "node[1-4]"
	a.Command = "service run on $TARGET"
	got, err := a.ResolvedCommand()
	if err != nil {
		t.Fatalf("ResolvedCommand: %v", err)
	}
	if got != "service run on node[1-4]" {
		t.Fatalf("ResolvedCommand = %q", got)
	}
}

func TestResolvedCommand_ActionVariableMap(t *testing.T) {
	a := NewAction("start")
	a.Command = "echo $MODE"
	a.Variables = map[string]string{"MODE": "fast"}
	got, err := a.ResolvedCommand()
	if err != nil {
		t.Fatalf("ResolvedCommand: %v", err)
	}
	if got != "echo fast" {
		t.Fatalf("ResolvedCommand = %q", got)
	}
}

func TestResolvedCommand_ServiceLayersBeforeManager(t *testing.T) {
	resetSingletons(t)
	mgr := ServiceManagerSelf()
	mgr.Variables["LEVEL"] = "manager-level"

	svc := NewService("web")
	svc.Variables["LEVEL"] = "service-level"

	a := NewAction("start")
	a.Command = "echo $LEVEL"
	svc.AddAction(a)

	got, err := a.ResolvedCommand()
	if err != nil {
		t.Fatalf("ResolvedCommand: %v", err)
	}
	if got != "echo service-level" {
		t.Fatalf("ResolvedCommand = %q, want the service layer to win over the manager layer", got)
	}
}

func TestResolvedCommand_FallsBackToManager(t *testing.T) {
	resetSingletons(t)
	mgr := ServiceManagerSelf()
	mgr.Variables["ENV"] = "prod"

	svc := NewService("web")
	a := NewAction("start")
	a.Command = "deploy --env=$ENV"
	svc.AddAction(a)

	got, err := a.ResolvedCommand()
	if err != nil {
		t.Fatalf("ResolvedCommand: %v", err)
	}
	if got != "deploy --env=prod" {
		t.Fatalf("ResolvedCommand = %q", got)
	}
}

func TestResolvedCommand_UndefinedVariableFailsLoud(t *testing.T) {
	resetSingletons(t)
	a := NewAction("start")
	a.Command = "echo $NOPE"
	_, err := a.ResolvedCommand()
	if err == nil {
		t.Fatalf("expected an UndefinedVariableError")
	}
	uv, ok := err.(*UndefinedVariableError)
	if !ok {
		t.Fatalf("error type = %T, want *UndefinedVariableError", err)
	}
	if uv.VarName != "NOPE" {
		t.Fatalf("VarName = %q, want NOPE", uv.VarName)
	}
}

func TestResolvedCommand_NoRecursiveExpansion(t *testing.T) {
	a := NewAction("start")
	a.Command = "echo $OUTER"
	a.Variables = map[string]string{"OUTER": "$INNER"}
	got, err := a.ResolvedCommand()
	if err != nil {
		t.Fatalf("ResolvedCommand: %v", err)
	}
	if got != "echo $INNER" {
		t.Fatalf("ResolvedCommand = %q, want literal $INNER (no recursive expansion)", got)
	}
}

func TestVerifyCommands_ReportsFirstUndefined(t *testing.T) {
	resetSingletons(t)
	svc := NewService("web")
	a := NewAction("start")
	a.Command = "echo $MISSING"
	svc.AddAction(a)
	if err := VerifyCommands(svc); err == nil {
		t.Fatalf("VerifyCommands did not catch the undefined variable")
	}
}
