package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event. Provider callbacks carry no user.
type ActorRef struct {
	UserID *uuid.UUID `json:"userId,omitempty"`
	Source string     `json:"source"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// UserActor builds an actor reference for a customer-initiated change.
func UserActor(userID uuid.UUID) *ActorRef {
	id := userID
	return &ActorRef{UserID: &id, Source: "customer"}
}

// SystemActor builds an actor reference for provider callbacks and jobs.
func SystemActor(source string) *ActorRef {
	return &ActorRef{Source: source}
}
