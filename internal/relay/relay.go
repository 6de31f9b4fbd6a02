package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/a-essam23/go-signal/pkg/config"
	"github.com/a-essam23/go-signal/pkg/state"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// Sender delivers an encoded frame to one connection. It reports false when
// the connection is unknown or closed.
type Sender interface {
	SendTo(connID uuid.UUID, msg []byte) bool
}

type Options struct {
	ICEServers []webrtc.ICEServer
	RateLimit  config.Rate
}

// Relay interprets inbound events, applies them to the state manager and
// fans out the resulting messages through the Sender.
type Relay struct {
	logger       *slog.Logger
	stateManager state.Manager
	sender       Sender
	registry     *Registry
	limiter      *limiter
	iceServers   []webrtc.ICEServer
}

func New(logger *slog.Logger, stateManager state.Manager, sender Sender, opts Options) *Relay {
	registry := NewRegistry()
	registry.registerCore()

	iceServers := opts.ICEServers
	if iceServers == nil {
		iceServers = []webrtc.ICEServer{}
	}
	r := &Relay{
		logger:       logger.With(slog.String("component", "relay")),
		stateManager: stateManager,
		sender:       sender,
		registry:     registry,
		limiter:      newLimiter(opts.RateLimit, time.Now, stateManager.IsOnline),
		iceServers:   iceServers,
	}
	r.logger.Info("Registered event handlers", slog.Int("count", registry.Len()))
	return r
}

// OnConnect registers a new connection and acknowledges it.
func (r *Relay) OnConnect(ctx context.Context, connID uuid.UUID, ipAddr string) error {
	if _, err := r.stateManager.RegisterConnection(connID, ipAddr); err != nil {
		return fmt.Errorf("register connection %s: %w", connID, err)
	}
	c := r.newCargo(ctx, connID, "connect", nil)
	c.Reply(EventConnected, ConnectedPayload{
		Message:    "connected to server",
		UserID:     connID.String(),
		ICEServers: r.iceServers,
	})
	r.flush(c)
	return nil
}

// OnDisconnect removes every trace of the connection and tells its room.
// It is idempotent.
func (r *Relay) OnDisconnect(connID uuid.UUID) {
	departure, err := r.stateManager.DeregisterConnection(connID)
	// after deregistering, so a concurrent event cannot reopen the window.
	r.limiter.forget(connID)
	if err != nil {
		r.logger.Error("Failed to deregister connection", slog.String("connID", connID.String()), slog.Any("error", err))
		return
	}
	if departure == nil {
		return
	}
	c := r.newCargo(context.Background(), connID, "disconnect", nil)
	c.Broadcast(departure.Remaining, EventUserLeft, userEntry(departure.Who))
	r.flush(c)
}

// HandleMessage decodes one frame and runs its handler. It matches transport.MessageHandler.
func (r *Relay) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	var clientMsg ClientMessage
	if err := json.Unmarshal(msg, &clientMsg); err != nil {
		r.logger.Warn("Failed to unmarshal client message", slog.String("connID", connID.String()), slog.Any("error", err))
		r.sendError(connID, EventError, "malformed message")
		return
	}

	rt, ok := r.registry.lookup(clientMsg.Event)
	if !ok {
		r.logger.Warn("Received unknown event", slog.String("event", clientMsg.Event), slog.String("connID", connID.String()))
		r.sendError(connID, EventError, "unknown event: "+clientMsg.Event)
		return
	}

	if !r.limiter.allow(connID) {
		r.logger.Warn("Rate limit exceeded", slog.String("event", clientMsg.Event), slog.String("connID", connID.String()))
		r.sendError(connID, rt.errorEvent, fmt.Sprintf("rate limit for event '%s' exceeded", clientMsg.Event))
		return
	}

	c := r.newCargo(ctx, connID, clientMsg.Event, clientMsg.Payload)
	c.Logger.Debug("Executing event handler")
	if err := rt.handler(c); err != nil {
		r.fail(c, rt.errorEvent, err)
		return
	}
	r.flush(c)
}

func (r *Relay) newCargo(ctx context.Context, connID uuid.UUID, event string, payload []byte) *Cargo {
	return &Cargo{
		Ctx:          ctx,
		Logger:       r.logger.With(slog.String("connID", connID.String()), slog.String("event", event)),
		ConnID:       connID,
		Event:        event,
		Payload:      payload,
		StateManager: r.stateManager,
	}
}

// fail reports err to the sender only; queued messages are discarded.
func (r *Relay) fail(c *Cargo, errorEvent string, err error) {
	var routed *routedError
	if errors.As(err, &routed) {
		errorEvent = routed.event
	}

	var stateErr *state.Error
	if errors.As(err, &stateErr) {
		c.Logger.Debug("Event rejected", slog.String("reason", stateErr.Message))
		r.sendError(c.ConnID, errorEvent, stateErr.Message)
		return
	}
	c.Logger.Error("Event handler failed", slog.Any("error", err))
	r.sendError(c.ConnID, errorEvent, "internal error")
}

func (r *Relay) sendError(connID uuid.UUID, event, message string) {
	r.deliver(connID, event, ErrorPayload{Message: message})
}

// flush delivers the outbox. No state locks are held at this point.
func (r *Relay) flush(c *Cargo) {
	for _, out := range c.outbox {
		data, err := json.Marshal(serverMessage{Event: out.event, Payload: out.payload})
		if err != nil {
			c.Logger.Error("Failed to marshal outbound message", slog.String("outEvent", out.event), slog.Any("error", err))
			continue
		}
		for _, target := range out.targets {
			if !r.sender.SendTo(target, data) {
				c.Logger.Debug("Dropped message for offline connection", slog.String("target", target.String()), slog.String("outEvent", out.event))
			}
		}
	}
	c.outbox = nil
}

func (r *Relay) deliver(connID uuid.UUID, event string, payload any) {
	data, err := json.Marshal(serverMessage{Event: event, Payload: payload})
	if err != nil {
		r.logger.Error("Failed to marshal outbound message", slog.String("outEvent", event), slog.Any("error", err))
		return
	}
	r.sender.SendTo(connID, data)
}

// routedError overrides the event a handler failure is reported on.
type routedError struct {
	event string
	err   error
}

func (e *routedError) Error() string { return e.err.Error() }

func (e *routedError) Unwrap() error { return e.err }

func reportAs(event string, err error) error {
	return &routedError{event: event, err: err}
}
