package models

import (
	"time"

	"github.com/google/uuid"
)

type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// TurnKind tags a transcript entry so placeholder replacement is a structural
// check instead of a content match.
type TurnKind string

const (
	TurnFinal       TurnKind = "final"
	TurnPlaceholder TurnKind = "placeholder"
)

// ConversationTurn is a single transcript entry. Turns are append-only for the
// lifetime of a session; the only permitted mutation is replacing a trailing
// placeholder turn with its final assistant turn.
type ConversationTurn struct {
	ID             uuid.UUID          `json:"id"`
	ConversationID uuid.UUID          `json:"conversation_id,omitempty"`
	Role           TurnRole           `json:"role"`
	Content        string             `json:"content"`
	Kind           TurnKind           `json:"kind"`
	Itinerary      *ItineraryDocument `json:"itinerary,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// ChatMessage is the wire shape the intake classifier expects.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserLocation carries the ambient location hints forwarded to the intake
// classifier alongside the transcript.
type UserLocation struct {
	Country string `json:"country,omitempty"`
	State   string `json:"state,omitempty"`
	City    string `json:"city,omitempty"`
}
