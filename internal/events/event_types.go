package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/marketplace-session/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	// EventCredentialBroadcast carries a credential written programmatically in
	// this process, outside the store's own change notifications.
	EventCredentialBroadcast EventType = "credential_broadcast"
	EventSessionChanged      EventType = "session_changed"
	EventNavigated           EventType = "navigated"
)

// Event represents a message exchanged on the in-process dispatcher.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps a new event with an id and the current time.
func NewEvent(eventType EventType, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// CredentialBroadcastPayload payload. An empty token means the credential was removed.
type CredentialBroadcastPayload struct {
	Token string `json:"token"`
}

// SessionChangedPayload payload.
type SessionChangedPayload struct {
	OldState   domain.SessionState `json:"old_state"`
	NewState   domain.SessionState `json:"new_state"`
	IdentityID *int64              `json:"identity_id,omitempty"`
	Role       domain.Role         `json:"role,omitempty"`
	Cause      string              `json:"cause"`
}

// NavigatedPayload payload.
type NavigatedPayload struct {
	Target string                  `json:"target"`
	Reason domain.NavigationReason `json:"reason"`
}
