// Package events mirrors session state onto the MQTT bus and applies
// logout commands received from it.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hirehub/hirehub-core/internal/auth"
	"github.com/hirehub/hirehub-core/internal/infrastructure/mqtt"
)

// CommandLogout is the only command a session topic accepts.
const CommandLogout = "logout"

// queueSize bounds the backlog of unpublished state events.
const queueSize = 256

// ErrUnknownCommand is returned for command payloads other than logout.
var ErrUnknownCommand = errors.New("unknown session command")

// Bus is the part of the MQTT client the bridge needs.
type Bus interface {
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// SessionLookup finds open sessions. *auth.SessionManager satisfies it.
type SessionLookup interface {
	Lookup(id string) (*auth.Session, bool)
}

// StateEvent is the retained payload of hirehub/session/{id}/state.
type StateEvent struct {
	SessionID string    `json:"session_id"`
	LoggedIn  bool      `json:"logged_in"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	UserID    string    `json:"user_id,omitempty"`
	Role      auth.Role `json:"role,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Command is the payload of hirehub/session/{id}/command.
type Command struct {
	Action string `json:"action"`
}

// Bridge publishes session transitions and handles session commands.
type Bridge struct {
	bus    Bus
	logger *slog.Logger
	now    auth.Clock
	queue  chan StateEvent
}

// NewBridge creates a bridge. Call Run to start publishing.
func NewBridge(bus Bus, now auth.Clock, logger *slog.Logger) *Bridge {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		bus:    bus,
		logger: logger.With("component", "session-events"),
		now:    now,
		queue:  make(chan StateEvent, queueSize),
	}
}

// Observe queues a state event. It never blocks; events beyond the queue
// capacity are dropped with a warning. Use it as ManagerOptions.Observer.
func (b *Bridge) Observe(s *auth.Session, st auth.State) {
	ev := StateEvent{
		SessionID: s.ID(),
		LoggedIn:  st.LoggedIn,
		ExpiresAt: st.ExpiresAt,
		Timestamp: b.now().UTC(),
	}
	if st.LoggedIn {
		u := s.CurrentUser(context.Background())
		ev.UserID, ev.Role = u.ID, u.Role
	}

	select {
	case b.queue <- ev:
	default:
		b.logger.Warn("session event queue full, dropping event", "session_id", ev.SessionID)
	}
}

// Run publishes queued events until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.queue:
			b.publish(ev)
		}
	}
}

func (b *Bridge) publish(ev StateEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("encoding session event", "error", err)
		return
	}
	if err := b.bus.PublishRetained(mqtt.Topics{}.SessionState(ev.SessionID), payload); err != nil {
		b.logger.Warn("publishing session event failed", "session_id", ev.SessionID, "error", err)
	}
}

// ListenCommands subscribes to every session command topic. A logout
// command logs the addressed session out; commands for sessions that are
// not open are ignored.
func (b *Bridge) ListenCommands(ctx context.Context, sessions SessionLookup) error {
	handler := func(topic string, payload []byte) error {
		return b.handleCommand(ctx, sessions, topic, payload)
	}
	if err := b.bus.Subscribe(mqtt.Topics{}.AllSessionCommands(), 1, handler); err != nil {
		return fmt.Errorf("subscribing to session commands: %w", err)
	}
	return nil
}

// StopCommands removes the command subscription.
func (b *Bridge) StopCommands() error {
	return b.bus.Unsubscribe(mqtt.Topics{}.AllSessionCommands())
}

func (b *Bridge) handleCommand(ctx context.Context, sessions SessionLookup, topic string, payload []byte) error {
	id, ok := mqtt.SessionIDFromTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected command topic %q", topic)
	}

	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("decoding session command: %w", err)
	}
	if cmd.Action != CommandLogout {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Action)
	}

	s, ok := sessions.Lookup(id)
	if !ok {
		b.logger.Debug("logout command for unknown session", "session_id", id)
		return nil
	}
	b.logger.Info("remote logout", "session_id", id)
	s.Logout(ctx)
	return nil
}
