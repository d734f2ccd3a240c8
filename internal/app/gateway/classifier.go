package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/FACorreiaa/travesia/internal/app/models"
)

const classifierPath = "/travesia-chat"

// IntakeReply is the discriminated result of a classifier call: either a
// clarifying question for the user, or a completed trip request.
type IntakeReply struct {
	Complete bool
	Text     string
	Trip     *models.TripRequest
}

type classifierRequest struct {
	Messages     []models.ChatMessage `json:"messages"`
	UserLocation *models.UserLocation `json:"userLocation,omitempty"`
}

type classifierResponse struct {
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error,omitempty"`
}

// tripRequestWire is the camelCase shape the classifier embeds as a JSON
// string inside a "complete" reply.
type tripRequestWire struct {
	Destination     string   `json:"destination"`
	DestinationIATA string   `json:"destinationIATA,omitempty"`
	Origin          string   `json:"origin"`
	OriginIATA      string   `json:"originIATA,omitempty"`
	DepartureDate   string   `json:"departureDate"`
	ReturnDate      string   `json:"returnDate"`
	Passengers      int      `json:"passengers"`
	Budget          *float64 `json:"budget,omitempty"`
	TravelStyle     string   `json:"travelStyle,omitempty"`
	Language        string   `json:"language,omitempty"`
}

func (w tripRequestWire) toModel() *models.TripRequest {
	return &models.TripRequest{
		Destination:     w.Destination,
		DestinationIATA: w.DestinationIATA,
		Origin:          w.Origin,
		OriginIATA:      w.OriginIATA,
		DepartureDate:   w.DepartureDate,
		ReturnDate:      w.ReturnDate,
		Passengers:      w.Passengers,
		Budget:          w.Budget,
		TravelStyle:     w.TravelStyle,
		Language:        w.Language,
	}
}

// Classify sends the full transcript plus ambient location hints to the intake
// classifier and decodes its discriminated reply.
func (c *Client) Classify(ctx context.Context, messages []models.ChatMessage, location *models.UserLocation) (*IntakeReply, error) {
	var resp classifierResponse
	err := c.post(ctx, classifierPath, classifierRequest{
		Messages:     messages,
		UserLocation: location,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", models.ErrBadGatewayReply, resp.Error)
	}

	switch resp.Status {
	case "incomplete":
		return &IntakeReply{Text: resp.Text}, nil
	case "complete":
		var wire tripRequestWire
		cleaned := CleanJSONResponse(resp.Text)
		if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
			c.logger.Warn("Classifier returned unparsable trip request",
				zap.String("payload", resp.Text),
				zap.Error(err))
			return nil, fmt.Errorf("%w: trip request payload: %v", models.ErrBadGatewayReply, err)
		}
		trip := wire.toModel()
		if trip.Passengers < 1 {
			trip.Passengers = 1
		}
		return &IntakeReply{Complete: true, Text: resp.Text, Trip: trip}, nil
	default:
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrBadGatewayReply, resp.Status)
	}
}
