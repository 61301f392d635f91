package types

import "github.com/google/uuid"

// DiscoverRequest is a single conversational turn submitted to the engine.
// SessionID is nil on the first turn; the engine creates a session and
// returns its id in the response.
type DiscoverRequest struct {
	Query     string     `json:"query"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	// Collection overrides the configured vector-store collection for this
	// turn. Empty means use the default.
	Collection string `json:"collection,omitempty"`
	// MaxResults caps the number of POIs returned. Zero means the configured
	// default.
	MaxResults int `json:"max_results,omitempty"`
}

// DiscoverResponse is the payload shape fixed by the engine; the wire
// transport around it is owned by the API layer.
type DiscoverResponse struct {
	SessionID           uuid.UUID   `json:"session_id"`
	ResolvedPOIs        []ScoredPOI `json:"resolved_pois"`
	TextualSummary      string      `json:"textual_summary"`
	DetectedIntent      Intent      `json:"detected_intent"`
	TotalCandidateCount int         `json:"total_candidate_count"`
	IsFollowUp          bool        `json:"is_follow_up"`
}
