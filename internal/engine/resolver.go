package engine

import (
	"regexp"
	"strings"
)

var varTokenRe = regexp.MustCompile(`\$[A-Za-z0-9_]+`)

// ResolvedCommand expands every $VAR token in a.Command, checking scopes
// in order — action attributes, the action's own variable map, the owning
// service's attributes, the service's variable map, the global manager's
// attributes, and finally the manager's variable map — and failing loud
// the first time a token resolves in none of them. Resolution does not
// recurse: a value substituted in is never itself rescanned for $VAR
// tokens.
func (a *Action) ResolvedCommand() (string, error) {
	tokens := varTokenRe.FindAllString(a.Command, -1)
	if len(tokens) == 0 {
		return a.Command, nil
	}
	resolved := make(map[string]string, len(tokens))
	for _, tok := range tokens {
		if _, done := resolved[tok]; done {
			continue
		}
		name := strings.TrimPrefix(tok, "$")
		value, ok := resolveVar(a, name)
		if !ok {
			return "", &UndefinedVariableError{VarName: name, Command: a.Command}
		}
		resolved[tok] = value
	}
	// One pass over the original template: substituted text is never
	// matched again.
	return varTokenRe.ReplaceAllStringFunc(a.Command, func(tok string) string {
		return resolved[tok]
	}), nil
}

func resolveVar(a *Action, name string) (string, bool) {
	lname := strings.ToLower(name)

	if v, ok := actionAttr(a, lname); ok {
		return v, true
	}
	if v, ok := a.Variables[name]; ok {
		return v, true
	}
	if a.Service != nil {
		if v, ok := serviceAttr(a.Service, lname); ok {
			return v, true
		}
		if v, ok := a.Service.Variables[name]; ok {
			return v, true
		}
	}
	mgr := ServiceManagerSelf()
	if v, ok := managerAttr(mgr, lname); ok {
		return v, true
	}
	if v, ok := mgr.Variables[name]; ok {
		return v, true
	}
	return "", false
}

// actionAttr exposes the handful of Action fields that are meaningful as
// string substitutions. Unlike the original's attribute reflection, this
// is an explicit allow-list: most Action fields (timeouts, graph edges,
// the worker) have no sensible string form, and exposing them by name
// would turn a typo into a silent, wrong substitution instead of an
// UndefinedVariableError.
func actionAttr(a *Action, lname string) (string, bool) {
	switch lname {
	case "name":
		return a.Name, true
	case "target":
		return a.Target, true
	case "command":
		return a.Command, true
	default:
		return "", false
	}
}

func serviceAttr(s *Service, lname string) (string, bool) {
	switch lname {
	case "name":
		return s.Name, true
	default:
		return "", false
	}
}

func managerAttr(m *ServiceManager, lname string) (string, bool) {
	switch lname {
	default:
		return "", false
	}
}

// VerifyCommands resolves every action's command in svc up front, without
// dispatching anything, returning the first UndefinedVariableError
// encountered. Useful for validating a graph before Run.
func VerifyCommands(svc *Service) error {
	for _, a := range svc.Actions() {
		if _, err := a.ResolvedCommand(); err != nil {
			return err
		}
	}
	return nil
}
