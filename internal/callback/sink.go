// Package callback provides concrete engine.Sink implementations: a
// structured-logging sink, a durable append-only audit trail, and an
// optional NATS publisher, each adapting the engine's notifications to an
// outside system (the audit trail keeps only terminal-action ones) without
// ever feeding state back into the engine.
package callback

import (
	"fmt"

	"github.com/actionfleet/actionfleet/internal/engine"
)

// describe renders a callback payload into a short, stable set of fields
// usable by any of this package's sinks. It never panics on an
// unrecognized payload shape — new EventKinds are additive.
func describe(kind engine.EventKind, payload any) (service, action string, status string, ok bool) {
	switch p := payload.(type) {
	case *engine.Action:
		svc := ""
		if p.Service != nil {
			svc = p.Service.Name
		}
		return svc, p.Name, p.Status.String(), true
	case [2]*engine.Action:
		from, to := p[0], p[1]
		svc := ""
		if to.Service != nil {
			svc = to.Service.Name
		}
		return svc, fmt.Sprintf("%s->%s", from.Name, to.Name), "", true
	case engine.NodeInfo:
		return "", p.Node, fmt.Sprintf("exit=%d", p.ExitCode), true
	default:
		return "", "", "", false
	}
}
