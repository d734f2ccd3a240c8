package gateway

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/FACorreiaa/travesia/internal/app/models"
)

const generatorPath = "/generate-itinerary"

// GenerateRequest is the wire shape the itinerary generator expects. The
// change description for regenerations travels appended to Description; the
// structured fields always come from the snapshotted trip request.
type GenerateRequest struct {
	Description string   `json:"description"`
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	Travelers   int      `json:"travelers"`
	Budget      *float64 `json:"budget,omitempty"`
	Language    string   `json:"language,omitempty"`
}

type generatorResponse struct {
	Itinerary *models.ItineraryDocument `json:"itinerary"`
	Error     string                    `json:"error,omitempty"`
}

// NewGenerateRequest builds a generator request from a validated trip request
// plus an optional free-text change description.
func NewGenerateRequest(trip *models.TripRequest, changes string) GenerateRequest {
	description := fmt.Sprintf("%s trip from %s to %s for %d travelers",
		trip.TravelStyle, trip.Origin, trip.Destination, trip.Passengers)
	if trip.TravelStyle == "" {
		description = fmt.Sprintf("Trip from %s to %s for %d travelers",
			trip.Origin, trip.Destination, trip.Passengers)
	}
	if changes != "" {
		description += ". Requested changes: " + changes
	}
	return GenerateRequest{
		Description: description,
		Origin:      trip.Origin,
		Destination: trip.Destination,
		StartDate:   trip.DepartureDate,
		EndDate:     trip.ReturnDate,
		Travelers:   trip.Passengers,
		Budget:      trip.Budget,
		Language:    trip.Language,
	}
}

// Generate issues one itinerary generation call. The retry policy for the
// primary generation path lives with the caller; regeneration never retries.
func (c *Client) Generate(ctx context.Context, trip *models.TripRequest, changes string) (*models.ItineraryDocument, error) {
	if err := trip.Validate(); err != nil {
		return nil, err
	}

	var resp generatorResponse
	if err := c.post(ctx, generatorPath, NewGenerateRequest(trip, changes), &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", models.ErrBadGatewayReply, resp.Error)
	}
	if resp.Itinerary == nil {
		return nil, fmt.Errorf("%w: missing itinerary", models.ErrBadGatewayReply)
	}

	doc := resp.Itinerary
	doc.EnsureSections()

	if want := trip.DurationDays(); want > 0 && len(doc.Days) != want {
		c.logger.Warn("Generator returned unexpected day count",
			zap.Int("want", want),
			zap.Int("got", len(doc.Days)),
			zap.String("destination", trip.Destination))
	}
	if doc.Summary.DurationDays == 0 {
		doc.Summary.DurationDays = len(doc.Days)
	}

	return doc, nil
}
