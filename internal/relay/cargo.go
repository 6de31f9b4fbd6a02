package relay

import (
	"context"
	"log/slog"

	"github.com/a-essam23/go-signal/pkg/state"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Cargo carries one inbound event through its handler. Handlers mutate state
// through StateManager and queue outbound messages; the relay delivers the
// queue only after the handler returns successfully.
type Cargo struct {
	Ctx          context.Context
	Logger       *slog.Logger
	ConnID       uuid.UUID
	Event        string
	Payload      []byte
	StateManager state.Manager

	outbox []outbound
}

type outbound struct {
	targets []uuid.UUID
	event   string
	payload any
}

// Field reads a payload field with gjson path syntax.
func (c *Cargo) Field(path string) gjson.Result {
	return gjson.GetBytes(c.Payload, path)
}

// StringField reads an optional string field. A missing or null field yields
// "", any other non-string value is a validation error.
func (c *Cargo) StringField(path string) (string, error) {
	v := c.Field(path)
	switch v.Type {
	case gjson.Null:
		return "", nil
	case gjson.String:
		return v.Str, nil
	}
	return "", state.Validation(path + " must be a string")
}

// Reply queues a message to the originating connection.
func (c *Cargo) Reply(event string, payload any) {
	c.SendTo(c.ConnID, event, payload)
}

// SendTo queues a message to a single connection.
func (c *Cargo) SendTo(to uuid.UUID, event string, payload any) {
	c.outbox = append(c.outbox, outbound{targets: []uuid.UUID{to}, event: event, payload: payload})
}

// Broadcast queues a message to every member, skipping the ids in exclude.
func (c *Cargo) Broadcast(members []state.Presence, event string, payload any, exclude ...uuid.UUID) {
	targets := make([]uuid.UUID, 0, len(members))
outer:
	for _, m := range members {
		for _, ex := range exclude {
			if m.ID == ex {
				continue outer
			}
		}
		targets = append(targets, m.ID)
	}
	if len(targets) == 0 {
		return
	}
	c.outbox = append(c.outbox, outbound{targets: targets, event: event, payload: payload})
}
