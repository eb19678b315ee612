package callback

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/actionfleet/actionfleet/internal/engine"
	"github.com/actionfleet/actionfleet/pkg/core/natsctx"
	nats "github.com/nats-io/nats.go"
)

// NATSSink publishes each engine notification as a small JSON payload to
// subject "actionfleet.events.<kind>", propagating the current trace
// context the way the teacher's libs/go/core/natsctx helper does for its
// own NATS publish/subscribe call sites.
type NATSSink struct {
	nc *nats.Conn
}

// NewNATSSink wraps an already-connected NATS client.
func NewNATSSink(nc *nats.Conn) *NATSSink {
	return &NATSSink{nc: nc}
}

type eventMessage struct {
	Kind    string `json:"kind"`
	Service string `json:"service,omitempty"`
	Action  string `json:"action,omitempty"`
	Status  string `json:"status,omitempty"`
}

func (s *NATSSink) Notify(kind engine.EventKind, payload any) {
	service, action, status, ok := describe(kind, payload)
	if !ok {
		return
	}
	msg := eventMessage{Kind: kind.String(), Service: service, Action: action, Status: status}
	buf, err := json.Marshal(msg)
	if err != nil {
		return
	}
	subject := fmt.Sprintf("actionfleet.events.%s", kind.String())
	_ = natsctx.Publish(context.Background(), s.nc, subject, buf)
}
