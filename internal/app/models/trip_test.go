package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

func validRequest() *TripRequest {
	return &TripRequest{
		Destination:   "Madrid",
		Origin:        "Buenos Aires",
		DepartureDate: "2026-05-01",
		ReturnDate:    "2026-05-20",
		Passengers:    2,
	}
}

func TestTripRequestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TripRequest)
		ok     bool
	}{
		{"valid", func(r *TripRequest) {}, true},
		{"same day trip", func(r *TripRequest) { r.ReturnDate = r.DepartureDate }, true},
		{"missing destination", func(r *TripRequest) { r.Destination = "" }, false},
		{"missing origin", func(r *TripRequest) { r.Origin = "" }, false},
		{"bad departure format", func(r *TripRequest) { r.DepartureDate = "01/05/2026" }, false},
		{"bad return format", func(r *TripRequest) { r.ReturnDate = "mayo 20" }, false},
		{"return before departure", func(r *TripRequest) { r.ReturnDate = "2026-04-30" }, false},
		{"zero travelers", func(r *TripRequest) { r.Passengers = 0 }, false},
		{"too many travelers", func(r *TripRequest) { r.Passengers = 21 }, false},
		{"negative budget", func(r *TripRequest) { r.Budget = fptr(-100) }, false},
		{"absurd budget", func(r *TripRequest) { r.Budget = fptr(20_000_000) }, false},
		{"sane budget", func(r *TripRequest) { r.Budget = fptr(5000) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.mutate(r)
			err := r.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidTripRequest)
			}
		})
	}
}

func TestDurationDaysInclusive(t *testing.T) {
	r := validRequest()
	assert.Equal(t, 20, r.DurationDays())

	r.ReturnDate = r.DepartureDate
	assert.Equal(t, 1, r.DurationDays())

	r.ReturnDate = "garbage"
	assert.Equal(t, 0, r.DurationDays())
}

func TestCompleteForRegeneration(t *testing.T) {
	assert.True(t, validRequest().CompleteForRegeneration())

	r := validRequest()
	r.ReturnDate = ""
	assert.False(t, r.CompleteForRegeneration())

	var nilReq *TripRequest
	assert.False(t, nilReq.CompleteForRegeneration())
}

func TestEffectiveBudgetPrefersSummary(t *testing.T) {
	req := validRequest()
	req.Budget = fptr(3000)

	doc := &ItineraryDocument{}
	require.NotNil(t, doc.EffectiveBudget(req))
	assert.Equal(t, 3000.0, *doc.EffectiveBudget(req))

	doc.Summary.EstimatedBudget = fptr(4200)
	assert.Equal(t, 4200.0, *doc.EffectiveBudget(req))
}

func TestFlightIdentityKey(t *testing.T) {
	withID := FlightOption{ID: "f-1", Airline: "Iberia", Price: fptr(100)}
	assert.Equal(t, "f-1", withID.IdentityKey())

	a := FlightOption{Airline: "Iberia", Price: fptr(100), Stops: 1}
	b := FlightOption{Airline: "iberia", Price: fptr(100), Stops: 1}
	c := FlightOption{Airline: "Iberia", Price: fptr(100), Stops: 2}
	assert.Equal(t, a.IdentityKey(), b.IdentityKey())
	assert.NotEqual(t, a.IdentityKey(), c.IdentityKey())

	noPrice := FlightOption{Airline: "Iberia", Stops: 1}
	assert.NotEqual(t, a.IdentityKey(), noPrice.IdentityKey())
}
