package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventSessionOpened    EventType = "session.opened"
	EventSessionClosed    EventType = "session.closed"
	EventCommandQueued    EventType = "command.queued"
	EventCommandStarted   EventType = "command.started"
	EventCommandDone      EventType = "command.done"
	EventCommandFailed    EventType = "command.failed"
	EventPermissionProbed EventType = "permission.probed"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventHandler processes a published event.
type EventHandler func(ctx context.Context, event Event)

// EventBus is the publish/subscribe contract between components.
type EventBus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventType EventType, handler EventHandler) func()
	SubscribeAll(handler EventHandler) func()
	Close()
}

// SessionEvent is the payload for session lifecycle events.
type SessionEvent struct {
	SessionID string `json:"session_id"`
	Elevated  bool   `json:"elevated"`
	Reason    string `json:"reason,omitempty"`
}

// CommandEvent is the payload for command lifecycle events.
type CommandEvent struct {
	SessionID string `json:"session_id"`
	CommandID int64  `json:"command_id"`
	Text      string `json:"text"`
	ExitCode  int    `json:"exit_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PermissionEvent is the payload for elevation probe events.
type PermissionEvent struct {
	Granted bool `json:"granted"`
	Cached  bool `json:"cached"`
}
