package engine

import "fmt"

// Dependency is one edge of an action's dependency graph, pointing at the
// action on the other end.
type Dependency struct {
	Name   string
	Target *Action
}

// AddDependency wires a -> dep as a parent/child pair: dep must complete
// (reach a terminal status) before a is eligible for preparation.
func AddDependency(a, dep *Action) {
	if a == nil || dep == nil {
		panic("cannot add a dependency between nil actions")
	}
	a.Parents[dep.Name] = &Dependency{Name: dep.Name, Target: dep}
	dep.Children[a.Name] = &Dependency{Name: a.Name, Target: a}
}

// EvalDepsStatus aggregates the status of a's parents into one of
// NoStatus, Done, Error or WaitingStatus:
//
//   - NoStatus, if a has no parents.
//   - Done, if every parent is Done.
//   - Error, if any parent is in a non-Done terminal status.
//   - WaitingStatus, if no parent has errored but at least one is still
//     WaitingStatus.
//   - NoStatus, otherwise (some parent hasn't been prepared yet).
func (a *Action) EvalDepsStatus() Status {
	if len(a.Parents) == 0 {
		return NoStatus
	}
	total := len(a.Parents)
	doneCount := 0
	anyError := false
	anyWaiting := false
	for _, dep := range a.Parents {
		switch dep.Target.Status {
		case Done:
			doneCount++
		case WaitingStatus:
			anyWaiting = true
		case TimedOut, TooManyErrors, Error:
			anyError = true
		}
	}
	switch {
	case doneCount == total:
		return Done
	case anyError:
		return Error
	case anyWaiting:
		return WaitingStatus
	default:
		return NoStatus
	}
}

// IsReady reports whether a may be prepared: every parent is Done, or at
// least one parent ended in a non-Done terminal status. In the second case
// other parents may still be WaitingStatus; a failed parent is enough.
func (a *Action) IsReady() bool {
	ds := a.EvalDepsStatus()
	return ds == Done || ds == Error
}

// ResetChain resets a and every action transitively reachable through its
// Parents edges. Prepare only recurses into a parent still at NoStatus —
// an already-terminal parent from a previous run makes EvalDepsStatus
// report Done or Error immediately, short-circuiting past it — so
// re-arming one action for another run means resetting its whole
// ancestor chain, not just the action itself. Used to re-trigger a
// scheduled action on a fresh cron tick.
func ResetChain(a *Action) {
	visited := make(map[*Action]bool)
	var walk func(n *Action)
	walk = func(n *Action) {
		if visited[n] {
			return
		}
		visited[n] = true
		n.Reset()
		for _, dep := range n.Parents {
			walk(dep.Target)
		}
	}
	walk(a)
}

// DetectCycle walks svc's action graph and returns an error describing the
// first cycle found, or nil if the graph is a DAG. There is no YAML/graph
// loader in this port, so callers build graphs with AddDependency directly
// and are expected to call DetectCycle once after wiring a service up.
func DetectCycle(svc *Service) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(svc.actions))
	var path []string

	var visit func(a *Action) error
	visit = func(a *Action) error {
		color[a.Name] = gray
		path = append(path, a.Name)
		for _, dep := range a.Children {
			switch color[dep.Target.Name] {
			case gray:
				return fmt.Errorf("dependency cycle detected: %v -> %s", path, dep.Target.Name)
			case white:
				if err := visit(dep.Target); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		color[a.Name] = black
		return nil
	}

	for _, a := range svc.actions {
		if color[a.Name] == white {
			if err := visit(a); err != nil {
				return err
			}
		}
	}
	return nil
}
