package itinerary

import (
	"math"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/FACorreiaa/travesia/internal/app/models"
)

// FlightDecorator fills in display attributes (logo URLs) on flight options
// before they are categorized.
type FlightDecorator interface {
	DecorateFlights(flights []models.FlightOption) []models.FlightOption
}

// Service projects an ItineraryDocument into per-tab view data. The projection
// is pure: the underlying document is never mutated, and user-added items stay
// in their own list.
type Service struct {
	ranker    *Ranker
	decorator FlightDecorator
	logger    *zap.Logger
}

func NewService(premiumAirlines []string, decorator FlightDecorator, logger *zap.Logger) *Service {
	return &Service{
		ranker:    NewRanker(premiumAirlines),
		decorator: decorator,
		logger:    logger,
	}
}

type TransportTab struct {
	TopPicks             []models.CategorizedFlight `json:"top_picks"`
	MoreFlights          []models.FlightOption      `json:"more_flights"`
	LocalTransport       string                     `json:"local_transport,omitempty"`
	CarRentalRecommended bool                       `json:"car_rental_recommended"`
	CarOptions           []models.CarOption         `json:"car_options"`
}

type LodgingTab struct {
	Recommendation string                       `json:"recommendation,omitempty"`
	Zone           string                       `json:"zone,omitempty"`
	CostPerNight   *float64                     `json:"cost_per_night,omitempty"`
	TopPicks       []models.CategorizedStay     `json:"top_picks"`
	MoreOptions    []models.AccommodationOption `json:"more_options"`
}

type ActivitiesTab struct {
	Days       []models.ItineraryDay `json:"days"`
	AddedItems []models.AddedItem    `json:"added_items"`
}

type LocalInfoTab struct {
	models.LocalInfoSection
	Comments models.CommentsSection `json:"comments"`
}

type CostTotals struct {
	Flights    float64 `json:"flights"`
	Hotels     float64 `json:"hotels"`
	Cars       float64 `json:"cars"`
	Activities float64 `json:"activities"`
	Total      float64 `json:"total"`
}

type TripView struct {
	Summary         models.ItinerarySummary `json:"summary"`
	EffectiveBudget *float64                `json:"effective_budget,omitempty"`
	Transport       TransportTab            `json:"transport"`
	Lodging         LodgingTab              `json:"lodging"`
	Activities      ActivitiesTab           `json:"activities"`
	LocalInfo       LocalInfoTab            `json:"local_info"`
	Totals          CostTotals              `json:"totals"`
}

// Project builds the tab views and aggregate cost totals for a document plus
// any user-added items. The request, when known, supplies the budget fallback
// for documents whose summary carries no estimate.
func (s *Service) Project(doc *models.ItineraryDocument, req *models.TripRequest, added []models.AddedItem) *TripView {
	if doc == nil {
		return nil
	}
	if added == nil {
		added = []models.AddedItem{}
	}

	flightOptions := doc.Transport.Flights
	if s.decorator != nil && len(flightOptions) > 0 {
		// Decorate a copy; the stored document stays as generated.
		flightOptions = s.decorator.DecorateFlights(append([]models.FlightOption(nil), flightOptions...))
	}

	flights := s.ranker.CategorizeFlights(flightOptions)
	stays := s.ranker.CategorizeStays(doc.Lodging.Options)

	return &TripView{
		Summary:         doc.Summary,
		EffectiveBudget: doc.EffectiveBudget(req),
		Transport: TransportTab{
			TopPicks:             flights.TopPicks,
			MoreFlights:          flights.Overflow,
			LocalTransport:       doc.Transport.LocalTransport,
			CarRentalRecommended: doc.Transport.CarRentalRecommended,
			CarOptions:           doc.Transport.CarOptions,
		},
		Lodging: LodgingTab{
			Recommendation: doc.Lodging.Recommendation,
			Zone:           doc.Lodging.Zone,
			CostPerNight:   doc.Lodging.CostPerNight,
			TopPicks:       stays.TopPicks,
			MoreOptions:    stays.Overflow,
		},
		Activities: ActivitiesTab{
			Days:       doc.Days,
			AddedItems: addedOfType(added, "activity"),
		},
		LocalInfo: LocalInfoTab{
			LocalInfoSection: doc.LocalInfo,
			Comments:         doc.Comments,
		},
		Totals: s.costTotals(doc, added),
	}
}

// costTotals sums price-like fields by category across generated entries and
// user-added entries.
func (s *Service) costTotals(doc *models.ItineraryDocument, added []models.AddedItem) CostTotals {
	totals := CostTotals{}

	if price := cheapestFlightPrice(doc.Transport.Flights); price > 0 {
		totals.Flights = price
	}

	nights := doc.Summary.DurationDays - 1
	if nights < 0 {
		nights = 0
	}
	if doc.Lodging.CostPerNight != nil {
		totals.Hotels = *doc.Lodging.CostPerNight * float64(nights)
	}

	if doc.Transport.CarRentalRecommended {
		if perDay := cheapestCarPrice(doc.Transport.CarOptions); perDay > 0 {
			totals.Cars = perDay * float64(doc.Summary.DurationDays)
		}
	}

	for _, day := range doc.Days {
		totals.Activities += lo.SumBy(day.Activities, func(a models.DayActivity) float64 {
			if a.Price == nil {
				return 0
			}
			return *a.Price
		})
	}

	for _, item := range added {
		if item.Price == nil {
			continue
		}
		switch item.Type {
		case "flight":
			totals.Flights += *item.Price
		case "hotel":
			totals.Hotels += *item.Price
		case "car":
			totals.Cars += *item.Price
		default:
			totals.Activities += *item.Price
		}
	}

	totals.Total = totals.Flights + totals.Hotels + totals.Cars + totals.Activities
	return totals
}

func addedOfType(added []models.AddedItem, itemType string) []models.AddedItem {
	return lo.Filter(added, func(i models.AddedItem, _ int) bool { return i.Type == itemType })
}

func cheapestFlightPrice(flights []models.FlightOption) float64 {
	cheapest := math.Inf(1)
	for _, f := range flights {
		if f.Price != nil && *f.Price < cheapest {
			cheapest = *f.Price
		}
	}
	if math.IsInf(cheapest, 1) {
		return 0
	}
	return cheapest
}

func cheapestCarPrice(cars []models.CarOption) float64 {
	cheapest := math.Inf(1)
	for _, c := range cars {
		if c.PricePerDay != nil && *c.PricePerDay < cheapest {
			cheapest = *c.PricePerDay
		}
	}
	if math.IsInf(cheapest, 1) {
		return 0
	}
	return cheapest
}
