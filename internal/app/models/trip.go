package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const DateLayout = "2006-01-02"

// TripRequest is the structured set of trip parameters the intake classifier
// extracts from a conversation. Dates travel as YYYY-MM-DD strings.
type TripRequest struct {
	Destination     string   `json:"destination"`
	DestinationIATA string   `json:"destination_iata,omitempty"`
	Origin          string   `json:"origin"`
	OriginIATA      string   `json:"origin_iata,omitempty"`
	DepartureDate   string   `json:"departure_date"`
	ReturnDate      string   `json:"return_date"`
	Passengers      int      `json:"passengers"`
	Budget          *float64 `json:"budget,omitempty"`
	TravelStyle     string   `json:"travel_style,omitempty"`
	Language        string   `json:"language,omitempty"`
}

// Validate enforces the generator-side request contract before any outbound
// call: well-formed dates, departure <= return, 1-20 travelers, sane budget.
func (r *TripRequest) Validate() error {
	if r.Destination == "" {
		return fmt.Errorf("%w: destination is required", ErrInvalidTripRequest)
	}
	if r.Origin == "" {
		return fmt.Errorf("%w: origin is required", ErrInvalidTripRequest)
	}
	dep, err := time.Parse(DateLayout, r.DepartureDate)
	if err != nil {
		return fmt.Errorf("%w: departure date %q is not YYYY-MM-DD", ErrInvalidTripRequest, r.DepartureDate)
	}
	ret, err := time.Parse(DateLayout, r.ReturnDate)
	if err != nil {
		return fmt.Errorf("%w: return date %q is not YYYY-MM-DD", ErrInvalidTripRequest, r.ReturnDate)
	}
	if dep.After(ret) {
		return fmt.Errorf("%w: departure date is after return date", ErrInvalidTripRequest)
	}
	if r.Passengers < 1 || r.Passengers > 20 {
		return fmt.Errorf("%w: travelers must be between 1 and 20", ErrInvalidTripRequest)
	}
	if r.Budget != nil && (*r.Budget <= 0 || *r.Budget > 10_000_000) {
		return fmt.Errorf("%w: budget must be positive and at most 10,000,000", ErrInvalidTripRequest)
	}
	return nil
}

// DurationDays returns the inclusive day count of the trip (May 1 to May 20 is
// 20 days). Zero when either date is missing or unparsable.
func (r *TripRequest) DurationDays() int {
	dep, err := time.Parse(DateLayout, r.DepartureDate)
	if err != nil {
		return 0
	}
	ret, err := time.Parse(DateLayout, r.ReturnDate)
	if err != nil {
		return 0
	}
	days := int(ret.Sub(dep).Hours()/24) + 1
	if days < 1 {
		return 0
	}
	return days
}

// CompleteForRegeneration reports whether the snapshot carries enough to drive
// a speculative regeneration. Regeneration is skipped otherwise.
func (r *TripRequest) CompleteForRegeneration() bool {
	if r == nil {
		return false
	}
	return r.Destination != "" && r.Origin != "" && r.DepartureDate != "" && r.ReturnDate != ""
}

// Trip is the persisted pairing of a request with its generated document.
type Trip struct {
	ID             uuid.UUID         `json:"id"`
	UserID         uuid.UUID         `json:"user_id"`
	ConversationID uuid.UUID         `json:"conversation_id"`
	Title          string            `json:"title"`
	Request        TripRequest       `json:"request"`
	Document       ItineraryDocument `json:"document"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// AddedItem is a user-added entry kept apart from the generated document,
// keyed by (type, day, time).
type AddedItem struct {
	ID     uuid.UUID `json:"id"`
	TripID uuid.UUID `json:"trip_id"`
	Type   string    `json:"type"` // flight, hotel, car, activity
	Day    int       `json:"day"`
	Time   string    `json:"time"`
	Name   string    `json:"name"`
	Price  *float64  `json:"price,omitempty"`
}
