package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/tokengate/auth-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered EventType = "user_registered"
	EventUserLoggedIn   EventType = "user_logged_in"
	EventLoginFailed    EventType = "login_failed"
	EventTokenRefreshed EventType = "token_refreshed"
	EventUserUpdated    EventType = "user_updated"
)

// Event represents an audit event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Username  string      `json:"username"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps a new event with an id and the current time.
func NewEvent(eventType EventType, username string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Username:  username,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TokenRefreshedPayload payload.
type TokenRefreshedPayload struct {
	Kind      domain.TokenKind `json:"kind"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// LoginFailedPayload payload.
type LoginFailedPayload struct {
	Reason string `json:"reason"`
}

// UserUpdatedPayload payload.
type UserUpdatedPayload struct {
	EmailChanged    bool `json:"email_changed"`
	PasswordChanged bool `json:"password_changed"`
}
