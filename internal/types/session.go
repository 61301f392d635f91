package types

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a conversation session stays alive without
// being explicitly deleted.
const DefaultSessionTTL = 24 * time.Hour

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ConversationTurn is a single message in a session's history. Turns are
// append-only and chronologically ordered.
type ConversationTurn struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	POIIDs    []uuid.UUID `json:"poi_ids,omitempty"`
}

// Session holds the conversational context tracked across discovery turns.
// DisplayedPOIIDs only ever grows while the session is alive;
// LastDisplayedPOIIDs is replaced wholesale on every turn that surfaced POIs.
type Session struct {
	ID                  uuid.UUID          `json:"id"`
	UserID              *uuid.UUID         `json:"user_id,omitempty"`
	ConversationHistory []ConversationTurn `json:"conversation_history"`
	DisplayedPOIIDs     map[uuid.UUID]bool `json:"displayed_poi_ids"`
	LastDisplayedPOIIDs []uuid.UUID        `json:"last_displayed_poi_ids"`
	TurnCount           int                `json:"turn_count"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
	ExpiresAt           time.Time          `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionUpdate carries the optional fields merged into a session by
// Store.Update. Nil fields are left untouched.
type SessionUpdate struct {
	LastDisplayedPOIIDs []uuid.UUID
	ExpiresAt           *time.Time
}
