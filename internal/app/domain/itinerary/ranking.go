package itinerary

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
	"github.com/samber/lo"

	"github.com/FACorreiaa/travesia/internal/app/models"
)

// locationTagKeywords break ties for the best-location category. Tags carrying
// one of these mark an option as well situated.
var locationTagKeywords = []string{
	"center", "centro", "downtown", "historic", "central", "beach", "playa", "location",
}

var durationPattern = regexp.MustCompile(`^(\d+)h\s*(?:(\d+)m)?$`)

// Ranker assigns display categories to flight and accommodation options. Up to
// three disjoint top picks are selected; everything else lands in an overflow
// list. The premium airline allow-list is injectable configuration.
type Ranker struct {
	premium    ahocorasick.AhoCorasick
	location   ahocorasick.AhoCorasick
	hasPremium bool
}

func NewRanker(premiumAirlines []string) *Ranker {
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	return &Ranker{
		premium:    builder.Build(premiumAirlines),
		location:   builder.Build(locationTagKeywords),
		hasPremium: len(premiumAirlines) > 0,
	}
}

type FlightPicks struct {
	TopPicks []models.CategorizedFlight `json:"top_picks"`
	Overflow []models.FlightOption      `json:"overflow"`
}

type StayPicks struct {
	TopPicks []models.CategorizedStay     `json:"top_picks"`
	Overflow []models.AccommodationOption `json:"overflow"`
}

// CategorizeFlights selects up to three top picks with disjoint categories, in
// output order cheapest, best-rated, fastest. Missing prices rank worst for
// cheapest; unparsable durations rank worst for fastest; when no option has an
// explicit rating, best-rated falls back to the premium airline allow-list.
func (r *Ranker) CategorizeFlights(flights []models.FlightOption) FlightPicks {
	if len(flights) == 0 {
		return FlightPicks{TopPicks: []models.CategorizedFlight{}, Overflow: []models.FlightOption{}}
	}

	used := make(map[string]bool, 3)
	take := func(idx int, cat models.OptionCategory, picks *[]models.CategorizedFlight) {
		used[flights[idx].IdentityKey()] = true
		*picks = append(*picks, models.CategorizedFlight{FlightOption: flights[idx], Category: cat})
	}

	picks := make([]models.CategorizedFlight, 0, 3)

	// cheapest
	cheapest := -1
	for i, f := range flights {
		if used[f.IdentityKey()] {
			continue
		}
		if cheapest == -1 || flightPrice(f) < flightPrice(flights[cheapest]) {
			cheapest = i
		}
	}
	take(cheapest, models.CategoryCheapest, &picks)

	// best-rated: explicit ratings first, premium allow-list as fallback
	bestRated := -1
	anyRated := lo.SomeBy(flights, func(f models.FlightOption) bool { return f.Rating != nil })
	if anyRated {
		for i, f := range flights {
			if used[f.IdentityKey()] || f.Rating == nil {
				continue
			}
			if bestRated == -1 || *f.Rating > *flights[bestRated].Rating {
				bestRated = i
			}
		}
	} else if r.hasPremium {
		for i, f := range flights {
			if used[f.IdentityKey()] {
				continue
			}
			if len(r.premium.FindAll(strings.ToLower(f.Airline))) > 0 {
				bestRated = i
				break
			}
		}
	}
	if bestRated != -1 {
		take(bestRated, models.CategoryBestRated, &picks)
	}

	// fastest: fewest stops, tie-broken by parsed duration
	fastest := -1
	for i, f := range flights {
		if used[f.IdentityKey()] {
			continue
		}
		if fastest == -1 || flightSpeedLess(f, flights[fastest]) {
			fastest = i
		}
	}
	if fastest != -1 {
		take(fastest, models.CategoryFastest, &picks)
	}

	picks = backfillFlights(flights, picks, used)

	overflow := lo.Filter(flights, func(f models.FlightOption, _ int) bool {
		return !used[f.IdentityKey()]
	})
	return FlightPicks{TopPicks: orderFlightPicks(picks), Overflow: overflow}
}

// backfillFlights tops the pick list up to min(3, len) when a category went
// unfilled, assigning remaining options by rating order.
func backfillFlights(flights []models.FlightOption, picks []models.CategorizedFlight, used map[string]bool) []models.CategorizedFlight {
	want := 3
	if len(flights) < want {
		want = len(flights)
	}
	if len(picks) >= want {
		return picks
	}

	remaining := lo.Filter(flights, func(f models.FlightOption, _ int) bool {
		return !used[f.IdentityKey()]
	})
	sort.SliceStable(remaining, func(i, j int) bool {
		return flightRating(remaining[i]) > flightRating(remaining[j])
	})

	unfilled := missingFlightCategories(picks)
	for _, f := range remaining {
		if len(picks) >= want || len(unfilled) == 0 {
			break
		}
		used[f.IdentityKey()] = true
		picks = append(picks, models.CategorizedFlight{FlightOption: f, Category: unfilled[0]})
		unfilled = unfilled[1:]
	}
	return picks
}

func missingFlightCategories(picks []models.CategorizedFlight) []models.OptionCategory {
	present := make(map[models.OptionCategory]bool, len(picks))
	for _, p := range picks {
		present[p.Category] = true
	}
	out := []models.OptionCategory{}
	for _, cat := range []models.OptionCategory{models.CategoryBestRated, models.CategoryFastest} {
		if !present[cat] {
			out = append(out, cat)
		}
	}
	return out
}

func orderFlightPicks(picks []models.CategorizedFlight) []models.CategorizedFlight {
	rank := map[models.OptionCategory]int{
		models.CategoryCheapest:  0,
		models.CategoryBestRated: 1,
		models.CategoryFastest:   2,
	}
	sort.SliceStable(picks, func(i, j int) bool {
		return rank[picks[i].Category] < rank[picks[j].Category]
	})
	return picks
}

// CategorizeStays mirrors CategorizeFlights with categories cheapest,
// best-rated, best-location.
func (r *Ranker) CategorizeStays(stays []models.AccommodationOption) StayPicks {
	if len(stays) == 0 {
		return StayPicks{TopPicks: []models.CategorizedStay{}, Overflow: []models.AccommodationOption{}}
	}

	used := make(map[string]bool, 3)
	take := func(idx int, cat models.OptionCategory, picks *[]models.CategorizedStay) {
		used[stays[idx].IdentityKey()] = true
		*picks = append(*picks, models.CategorizedStay{AccommodationOption: stays[idx], Category: cat})
	}

	picks := make([]models.CategorizedStay, 0, 3)

	cheapest := -1
	for i, s := range stays {
		if used[s.IdentityKey()] {
			continue
		}
		if cheapest == -1 || stayPrice(s) < stayPrice(stays[cheapest]) {
			cheapest = i
		}
	}
	take(cheapest, models.CategoryCheapest, &picks)

	bestRated := -1
	for i, s := range stays {
		if used[s.IdentityKey()] || s.Rating == nil {
			continue
		}
		if bestRated == -1 || *s.Rating > *stays[bestRated].Rating {
			bestRated = i
		}
	}
	if bestRated != -1 {
		take(bestRated, models.CategoryBestRated, &picks)
	}

	bestLocation := -1
	for i, s := range stays {
		if used[s.IdentityKey()] {
			continue
		}
		if bestLocation == -1 || r.stayLocationLess(s, stays[bestLocation]) {
			bestLocation = i
		}
	}
	if bestLocation != -1 {
		take(bestLocation, models.CategoryBestLocation, &picks)
	}

	picks = r.backfillStays(stays, picks, used)

	overflow := lo.Filter(stays, func(s models.AccommodationOption, _ int) bool {
		return !used[s.IdentityKey()]
	})
	return StayPicks{TopPicks: orderStayPicks(picks), Overflow: overflow}
}

func (r *Ranker) backfillStays(stays []models.AccommodationOption, picks []models.CategorizedStay, used map[string]bool) []models.CategorizedStay {
	want := 3
	if len(stays) < want {
		want = len(stays)
	}
	if len(picks) >= want {
		return picks
	}

	remaining := lo.Filter(stays, func(s models.AccommodationOption, _ int) bool {
		return !used[s.IdentityKey()]
	})
	sort.SliceStable(remaining, func(i, j int) bool {
		return stayRating(remaining[i]) > stayRating(remaining[j])
	})

	present := make(map[models.OptionCategory]bool, len(picks))
	for _, p := range picks {
		present[p.Category] = true
	}
	unfilled := []models.OptionCategory{}
	for _, cat := range []models.OptionCategory{models.CategoryBestRated, models.CategoryBestLocation} {
		if !present[cat] {
			unfilled = append(unfilled, cat)
		}
	}

	for _, s := range remaining {
		if len(picks) >= want || len(unfilled) == 0 {
			break
		}
		used[s.IdentityKey()] = true
		picks = append(picks, models.CategorizedStay{AccommodationOption: s, Category: unfilled[0]})
		unfilled = unfilled[1:]
	}
	return picks
}

func orderStayPicks(picks []models.CategorizedStay) []models.CategorizedStay {
	rank := map[models.OptionCategory]int{
		models.CategoryCheapest:     0,
		models.CategoryBestRated:    1,
		models.CategoryBestLocation: 2,
	}
	sort.SliceStable(picks, func(i, j int) bool {
		return rank[picks[i].Category] < rank[picks[j].Category]
	})
	return picks
}

func flightPrice(f models.FlightOption) float64 {
	if f.Price == nil {
		return math.Inf(1)
	}
	return *f.Price
}

func flightRating(f models.FlightOption) float64 {
	if f.Rating == nil {
		return math.Inf(-1)
	}
	return *f.Rating
}

func stayPrice(s models.AccommodationOption) float64 {
	if s.PricePerNight == nil {
		return math.Inf(1)
	}
	return *s.PricePerNight
}

func stayRating(s models.AccommodationOption) float64 {
	if s.Rating == nil {
		return math.Inf(-1)
	}
	return *s.Rating
}

func flightSpeedLess(a, b models.FlightOption) bool {
	if a.Stops != b.Stops {
		return a.Stops < b.Stops
	}
	return durationMinutes(a.Duration) < durationMinutes(b.Duration)
}

func stayDistance(s models.AccommodationOption) float64 {
	if s.DistanceToCenter == nil {
		return math.Inf(1)
	}
	return *s.DistanceToCenter
}

func (r *Ranker) stayLocationLess(a, b models.AccommodationOption) bool {
	da, db := stayDistance(a), stayDistance(b)
	if da != db {
		return da < db
	}
	return r.hasLocationTag(a) && !r.hasLocationTag(b)
}

func (r *Ranker) hasLocationTag(s models.AccommodationOption) bool {
	for _, tag := range s.Tags {
		if len(r.location.FindAll(strings.ToLower(tag))) > 0 {
			return true
		}
	}
	return false
}

// durationMinutes parses "12h30m" style strings; anything unparsable ranks
// worst.
func durationMinutes(d string) int {
	m := durationPattern.FindStringSubmatch(strings.TrimSpace(d))
	if m == nil {
		return math.MaxInt32
	}
	hours, _ := strconv.Atoi(m[1])
	minutes := 0
	if m[2] != "" {
		minutes, _ = strconv.Atoi(m[2])
	}
	return hours*60 + minutes
}
