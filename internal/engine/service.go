package engine

import (
	"context"
	"fmt"
	"sync"
)

// Service groups a named set of actions that share a variable scope and a
// simulate flag. A service with Simulate set never dispatches any of its
// actions to the node executor — its actions still flow through the same
// state machine and dependency propagation, they just resolve their
// terminal status from dependency evaluation instead of a worker result.
type Service struct {
	Name      string
	Simulate  bool
	Variables map[string]string
	Status    Status

	actions map[string]*Action
}

// NewService constructs an empty Service.
func NewService(name string) *Service {
	return &Service{
		Name:      name,
		Variables: make(map[string]string),
		actions:   make(map[string]*Action),
		Status:    NoStatus,
	}
}

// AddAction registers a under s, wiring a.Service back to s so the
// resolver and event propagation can find it.
func (s *Service) AddAction(a *Action) {
	a.Service = s
	s.actions[a.Name] = a
}

// Action looks up one of s's actions by name.
func (s *Service) Action(name string) (*Action, bool) {
	a, ok := s.actions[name]
	return a, ok
}

// Actions returns every action registered under s, in no particular order.
func (s *Service) Actions() []*Action {
	out := make([]*Action, 0, len(s.actions))
	for _, a := range s.actions {
		out = append(out, a)
	}
	return out
}

// EvalDepsStatus aggregates the status of every action owned by s using
// the same Done/Error/Waiting/NoStatus priority as Action.EvalDepsStatus,
// treating s's own actions as if they were s's dependencies. The simulate
// path uses this to decide a ghost service's terminal status without ever
// dispatching anything.
func (s *Service) EvalDepsStatus() Status {
	if len(s.actions) == 0 {
		return NoStatus
	}
	total := len(s.actions)
	doneCount := 0
	anyError := false
	anyWaiting := false
	for _, a := range s.actions {
		switch a.Status {
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

// UpdateStatus records s's aggregated status. It does not notify the
// callback sink itself — that contract belongs to Action, whose
// UpdateStatus calls this once it has no children left to trigger.
func (s *Service) UpdateStatus(status Status) {
	s.Status = status
}

// Run prepares the named action within s and blocks until the Action
// Manager's run loop drains everything it transitively scheduled.
func (s *Service) Run(ctx context.Context, actionName string) error {
	a, ok := s.actions[actionName]
	if !ok {
		return fmt.Errorf("engine: action %q not found in service %q", actionName, s.Name)
	}
	return a.Run(ctx)
}

// ServiceManager is the top-level singleton variable scope: the last tier
// the resolver checks before failing. It also holds every Service passed
// to Register, mirroring the original's module-level service registry.
type ServiceManager struct {
	Variables map[string]string

	mu       sync.Mutex
	services map[string]*Service
}

var (
	serviceManagerOnce     sync.Once
	serviceManagerInstance *ServiceManager
)

// ServiceManagerSelf returns the process-wide ServiceManager, constructing
// it on first use.
func ServiceManagerSelf() *ServiceManager {
	serviceManagerOnce.Do(func() {
		serviceManagerInstance = &ServiceManager{
			Variables: make(map[string]string),
			services:  make(map[string]*Service),
		}
	})
	return serviceManagerInstance
}

// ResetServiceManagerForTest discards the singleton so the next call to
// ServiceManagerSelf constructs a fresh one. Tests that rely on the
// manager's isolation call this in a cleanup function, mirroring the
// original test suite's practice of nilling out the class-level instance
// between cases.
func ResetServiceManagerForTest() {
	serviceManagerOnce = sync.Once{}
	serviceManagerInstance = nil
}

// Register makes s resolvable by name through Service and Services. The
// variable resolver does not look services up here.
func (m *ServiceManager) Register(s *Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[s.Name] = s
}

// Service looks up a registered service by name.
func (m *ServiceManager) Service(name string) (*Service, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[name]
	return s, ok
}

// Services returns every registered service.
func (m *ServiceManager) Services() []*Service {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Service, 0, len(m.services))
	for _, s := range m.services {
		out = append(out, s)
	}
	return out
}
