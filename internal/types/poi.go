package types

import "github.com/google/uuid"

// POIDetailedInfo is the canonical place record used throughout the discovery
// engine. Heterogeneous vector-store metadata (nested vs. flat fields, string
// vs. object descriptors) is normalized into this shape at the store boundary
// so nothing downstream has to sniff shapes.
type POIDetailedInfo struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`

	// OpeningHoursCalendar is the compact per-hour encoding
	// ("Mo:0:open;Mo:1:open;...") when the upstream pipeline produced one.
	OpeningHoursCalendar string `json:"opening_hours_calendar,omitempty"`
	// OpeningHours maps lowercase weekday names to human-readable period
	// strings ("9 AM to 5 PM", "Closed", "Open 24 hours").
	OpeningHours map[string]string `json:"opening_hours,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// ScoredPOI is a POI with the relevance the pipeline (or the follow-up
// resolver) assigned to it for the current turn.
type ScoredPOI struct {
	POI           POIDetailedInfo `json:"poi"`
	Relevance     float64         `json:"relevance"`
	OpeningStatus string          `json:"opening_status,omitempty"`
}
