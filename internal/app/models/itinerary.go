package models

import (
	"fmt"
	"strings"
)

// ItineraryDocument is the full generated travel plan. It is created wholesale
// by the generator and only ever replaced wholesale on regeneration; edits
// never patch individual fields.
type ItineraryDocument struct {
	Summary   ItinerarySummary  `json:"summary"`
	Transport TransportSection  `json:"transport"`
	Lodging   LodgingSection    `json:"lodging"`
	Days      []ItineraryDay    `json:"days"`
	Comments  CommentsSection   `json:"comments"`
	LocalInfo LocalInfoSection  `json:"local_info"`
}

type ItinerarySummary struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	EstimatedBudget *float64 `json:"estimated_budget,omitempty"`
	DurationDays    int      `json:"duration_days"`
	Highlights      []string `json:"highlights"`
}

type TransportSection struct {
	Flights              []FlightOption `json:"flights"`
	LocalTransport       string         `json:"local_transport,omitempty"`
	CarRentalRecommended bool           `json:"car_rental_recommended"`
	CarOptions           []CarOption    `json:"car_options"`
}

type LodgingSection struct {
	Recommendation string                `json:"recommendation,omitempty"`
	Zone           string                `json:"zone,omitempty"`
	CostPerNight   *float64              `json:"cost_per_night,omitempty"`
	Options        []AccommodationOption `json:"options"`
}

type ItineraryDay struct {
	DayNumber  int           `json:"day_number"`
	Date       string        `json:"date"`
	DaySummary string        `json:"day_summary,omitempty"`
	Activities []DayActivity `json:"activities"`
}

type DayActivity struct {
	Time        string   `json:"time,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	Price       *float64 `json:"price,omitempty"`
}

type CommentsSection struct {
	Tips       []string `json:"tips"`
	Warnings   []string `json:"warnings"`
	BestSeason string   `json:"best_season,omitempty"`
}

type LocalInfoSection struct {
	Currency      string `json:"currency,omitempty"`
	Language      string `json:"language,omitempty"`
	Timezone      string `json:"timezone,omitempty"`
	Voltage       string `json:"voltage,omitempty"`
	TippingCustom string `json:"tipping_custom,omitempty"`
	Safety        string `json:"safety,omitempty"`
	Emergency     string `json:"emergency,omitempty"`
}

type FlightOption struct {
	ID           string   `json:"id,omitempty"`
	Airline      string   `json:"airline"`
	FlightNumber string   `json:"flight_number,omitempty"`
	Departure    string   `json:"departure,omitempty"`
	Arrival      string   `json:"arrival,omitempty"`
	Duration     string   `json:"duration,omitempty"` // "12h30m" style
	Stops        int      `json:"stops"`
	Price        *float64 `json:"price,omitempty"`
	Rating       *float64 `json:"rating,omitempty"`
	LogoURL      string   `json:"logo_url,omitempty"`
}

// IdentityKey is the stable identity used for de-duplication when merging top
// picks with the full list. Falls back to (airline, price, stops) when the
// generator supplied no id.
func (f FlightOption) IdentityKey() string {
	if f.ID != "" {
		return f.ID
	}
	price := "-"
	if f.Price != nil {
		price = fmt.Sprintf("%.2f", *f.Price)
	}
	return fmt.Sprintf("%s|%s|%d", strings.ToLower(f.Airline), price, f.Stops)
}

type AccommodationOption struct {
	ID               string   `json:"id,omitempty"`
	Name             string   `json:"name"`
	Type             string   `json:"type,omitempty"`
	Zone             string   `json:"zone,omitempty"`
	PricePerNight    *float64 `json:"price_per_night,omitempty"`
	Rating           *float64 `json:"rating,omitempty"`
	DistanceToCenter *float64 `json:"distance_to_center,omitempty"`
	Tags             []string `json:"tags,omitempty"`
}

func (a AccommodationOption) IdentityKey() string {
	if a.ID != "" {
		return a.ID
	}
	price := "-"
	if a.PricePerNight != nil {
		price = fmt.Sprintf("%.2f", *a.PricePerNight)
	}
	return fmt.Sprintf("%s|%s", strings.ToLower(a.Name), price)
}

type CarOption struct {
	Company     string   `json:"company"`
	CarType     string   `json:"car_type,omitempty"`
	PricePerDay *float64 `json:"price_per_day,omitempty"`
}

// OptionCategory is a display badge assigned by the ranking helpers. It never
// mutates option identity.
type OptionCategory string

const (
	CategoryCheapest     OptionCategory = "cheapest"
	CategoryFastest      OptionCategory = "fastest"
	CategoryBestRated    OptionCategory = "best-rated"
	CategoryBestLocation OptionCategory = "best-location"
)

type CategorizedFlight struct {
	FlightOption
	Category OptionCategory `json:"category"`
}

type CategorizedStay struct {
	AccommodationOption
	Category OptionCategory `json:"category"`
}

// EnsureSections backfills missing top-level sections with empty placeholders
// so the presentation layer stays total even on a sparse generator reply.
func (d *ItineraryDocument) EnsureSections() {
	if d.Summary.Highlights == nil {
		d.Summary.Highlights = []string{}
	}
	if d.Transport.Flights == nil {
		d.Transport.Flights = []FlightOption{}
	}
	if d.Transport.CarOptions == nil {
		d.Transport.CarOptions = []CarOption{}
	}
	if d.Lodging.Options == nil {
		d.Lodging.Options = []AccommodationOption{}
	}
	if d.Days == nil {
		d.Days = []ItineraryDay{}
	}
	if d.Comments.Tips == nil {
		d.Comments.Tips = []string{}
	}
	if d.Comments.Warnings == nil {
		d.Comments.Warnings = []string{}
	}
}

// EffectiveBudget prefers the generated summary budget over the raw request
// budget when present.
func (d *ItineraryDocument) EffectiveBudget(req *TripRequest) *float64 {
	if d != nil && d.Summary.EstimatedBudget != nil {
		return d.Summary.EstimatedBudget
	}
	if req != nil {
		return req.Budget
	}
	return nil
}
