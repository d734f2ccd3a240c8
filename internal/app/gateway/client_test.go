package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/travesia/internal/app/models"
	"github.com/FACorreiaa/travesia/internal/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.GatewayConfig{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		Timeout:        5 * time.Second,
		RequestsPerSec: 1000,
	}, zap.NewNop())
}

func validTrip() *models.TripRequest {
	return &models.TripRequest{
		Destination:   "Madrid",
		Origin:        "Buenos Aires",
		DepartureDate: "2026-05-01",
		ReturnDate:    "2026-05-20",
		Passengers:    2,
	}
}

func TestClassifyIncomplete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/travesia-chat", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req classifierRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)

		json.NewEncoder(w).Encode(classifierResponse{
			Status: "incomplete",
			Text:   "¿Cuándo viajas?",
		})
	})

	reply, err := c.Classify(context.Background(),
		[]models.ChatMessage{{Role: "user", Content: "quiero ir a Madrid"}}, nil)
	require.NoError(t, err)
	assert.False(t, reply.Complete)
	assert.Equal(t, "¿Cuándo viajas?", reply.Text)
	assert.Nil(t, reply.Trip)
}

func TestClassifyCompleteParsesFencedTrip(t *testing.T) {
	payload := "```json\n{\"destination\":\"Madrid\",\"destinationIATA\":\"MAD\"," +
		"\"origin\":\"Buenos Aires\",\"originIATA\":\"EZE\"," +
		"\"departureDate\":\"2026-05-01\",\"returnDate\":\"2026-05-20\"," +
		"\"passengers\":0,\"language\":\"es\"}\n```"

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(classifierResponse{Status: "complete", Text: payload})
	})

	reply, err := c.Classify(context.Background(),
		[]models.ChatMessage{{Role: "user", Content: "del 1 al 20 de mayo"}}, nil)
	require.NoError(t, err)
	require.True(t, reply.Complete)
	require.NotNil(t, reply.Trip)
	assert.Equal(t, "Madrid", reply.Trip.Destination)
	assert.Equal(t, "MAD", reply.Trip.DestinationIATA)
	assert.Equal(t, "2026-05-01", reply.Trip.DepartureDate)
	// Zero travelers from the model floors to one.
	assert.Equal(t, 1, reply.Trip.Passengers)
	assert.Equal(t, "es", reply.Trip.Language)
}

func TestClassifyUnknownStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(classifierResponse{Status: "thinking"})
	})

	_, err := c.Classify(context.Background(), nil, nil)
	require.ErrorIs(t, err, models.ErrBadGatewayReply)
}

func TestClassifyMalformedTripPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(classifierResponse{Status: "complete", Text: "not json at all"})
	})

	_, err := c.Classify(context.Background(), nil, nil)
	require.ErrorIs(t, err, models.ErrBadGatewayReply)
}

func TestPostStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"rate limited", http.StatusTooManyRequests, models.ErrRateLimited},
		{"quota exhausted", http.StatusPaymentRequired, models.ErrQuotaExceeded},
		{"internal error", http.StatusInternalServerError, models.ErrGatewayUnavailable},
		{"bad gateway", http.StatusBadGateway, models.ErrGatewayUnavailable},
		{"bad request", http.StatusBadRequest, models.ErrBadGatewayReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := c.Classify(context.Background(), nil, nil)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGenerateBackfillsSections(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate-itinerary", r.URL.Path)

		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2026-05-01", req.StartDate)
		assert.Equal(t, "2026-05-20", req.EndDate)
		assert.Equal(t, 2, req.Travelers)

		// Sparse reply: most sections missing.
		json.NewEncoder(w).Encode(generatorResponse{
			Itinerary: &models.ItineraryDocument{
				Summary: models.ItinerarySummary{Title: "Madrid"},
				Days: []models.ItineraryDay{
					{DayNumber: 1}, {DayNumber: 2},
				},
			},
		})
	})

	doc, err := c.Generate(context.Background(), validTrip(), "")
	require.NoError(t, err)

	assert.NotNil(t, doc.Transport.Flights)
	assert.NotNil(t, doc.Lodging.Options)
	assert.NotNil(t, doc.Comments.Tips)
	assert.Equal(t, 2, doc.Summary.DurationDays)
}

func TestGenerateAppendsChangeDescription(t *testing.T) {
	var got GenerateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(generatorResponse{
			Itinerary: &models.ItineraryDocument{},
		})
	})

	_, err := c.Generate(context.Background(), validTrip(), "más playa, menos museos")
	require.NoError(t, err)
	assert.Contains(t, got.Description, "Requested changes: más playa, menos museos")
}

func TestGenerateRejectsInvalidTripWithoutCalling(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	trip := validTrip()
	trip.ReturnDate = "2026-04-01" // before departure

	_, err := c.Generate(context.Background(), trip, "")
	require.ErrorIs(t, err, models.ErrInvalidTripRequest)
	assert.False(t, called)
}

func TestGenerateMissingItinerary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generatorResponse{})
	})

	_, err := c.Generate(context.Background(), validTrip(), "")
	require.ErrorIs(t, err, models.ErrBadGatewayReply)
}

func TestGenerateGatewayErrorEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generatorResponse{Error: "model overloaded"})
	})

	_, err := c.Generate(context.Background(), validTrip(), "")
	require.ErrorIs(t, err, models.ErrBadGatewayReply)
	assert.Contains(t, err.Error(), "model overloaded")
}
