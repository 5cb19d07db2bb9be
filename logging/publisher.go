package logging

import (
	"context"
	"time"
)

// EventType names a discrete occurrence worth recording.
type EventType string

const (
	EventLifecycleJoin  EventType = "lifecycle.join"
	EventLifecycleLeave EventType = "lifecycle.leave"

	EventCombatHit      EventType = "combat.hit"
	EventCombatRespawn  EventType = "combat.respawn"
	EventCombatGameOver EventType = "combat.game_over"

	EventNetworkSendFailed   EventType = "network.send_failed"
	EventNetworkFrameDropped EventType = "network.frame_dropped"
	EventNetworkTimeout      EventType = "network.heartbeat_timeout"
)

// Severity orders events for sink filtering.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

// EntityKind classifies the actor of an event.
type EntityKind string

const (
	EntityKindUnknown EntityKind = "unknown"
	EntityKindPlayer  EntityKind = "player"
	EntityKindRoom    EntityKind = "room"
)

// EntityRef identifies the entity an event is about.
type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind,omitempty"`
}

// Event is the structured record routed to sinks.
type Event struct {
	Type     EventType      `json:"type"`
	Time     time.Time      `json:"time"`
	Severity Severity       `json:"severity"`
	Actor    EntityRef      `json:"actor"`
	Targets  []EntityRef    `json:"targets,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Publisher accepts events from hot paths. Implementations must never block.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Clock() Clock
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

func (NopPublisher) Clock() Clock { return SystemClock{} }

func cloneEvent(event Event) Event {
	cloned := event
	if len(event.Targets) > 0 {
		cloned.Targets = append([]EntityRef(nil), event.Targets...)
	}
	if event.Extra != nil {
		copied := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			copied[k] = v
		}
		cloned.Extra = copied
	}
	return cloned
}
