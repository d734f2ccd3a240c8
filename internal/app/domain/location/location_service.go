package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/FACorreiaa/travesia/internal/app/models"
	"github.com/FACorreiaa/travesia/internal/pkg/config"
)

// Service resolves ambient location hints for the intake classifier and logo
// URLs for flight options. Lookups hit third-party services, so results are
// cached and concurrent identical requests are collapsed.
type Service struct {
	cfg        config.LocationConfig
	httpClient *http.Client
	cache      *gocache.Cache
	group      singleflight.Group
	logger     *zap.Logger
}

func NewService(cfg config.LocationConfig, logger *zap.Logger) *Service {
	return &Service{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger:     logger,
	}
}

type geocodeResult struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Country string `json:"country"`
		State   string `json:"state"`
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
	} `json:"address"`
}

// Geocode resolves a free-text place query to the country/state/city hints the
// classifier consumes.
func (s *Service) Geocode(ctx context.Context, query string) (*models.UserLocation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty location query", models.ErrBadRequest)
	}

	cacheKey := "geocode:" + strings.ToLower(query)
	if cached, found := s.cache.Get(cacheKey); found {
		return cached.(*models.UserLocation), nil
	}

	v, err, _ := s.group.Do(cacheKey, func() (any, error) {
		loc, err := s.fetchGeocode(ctx, query)
		if err != nil {
			return nil, err
		}
		s.cache.Set(cacheKey, loc, gocache.DefaultExpiration)
		return loc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.UserLocation), nil
}

func (s *Service) fetchGeocode(ctx context.Context, query string) (*models.UserLocation, error) {
	endpoint := fmt.Sprintf("%s/search?format=json&addressdetails=1&limit=1&q=%s",
		s.cfg.GeocoderBaseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", "travesia/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var results []geocodeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode geocode response: %w", err)
	}
	if len(results) == 0 {
		return nil, models.ErrNotFound
	}

	addr := results[0].Address
	city := addr.City
	if city == "" {
		city = addr.Town
	}
	if city == "" {
		city = addr.Village
	}

	loc := &models.UserLocation{
		Country: addr.Country,
		State:   addr.State,
		City:    city,
	}
	s.logger.Debug("Geocoded location",
		zap.String("query", query),
		zap.String("city", loc.City),
		zap.String("country", loc.Country))
	return loc, nil
}

// AirlineLogoURL builds the logo URL for an airline name. Kept here so flight
// options across the app resolve logos consistently.
func (s *Service) AirlineLogoURL(airline string) string {
	slug := strings.ToLower(strings.TrimSpace(airline))
	if slug == "" {
		return ""
	}
	slug = strings.ReplaceAll(slug, " ", "")
	return fmt.Sprintf("%s/%s.com", s.cfg.LogoBaseURL, slug)
}

// DecorateFlights fills in logo URLs on flight options that lack one.
func (s *Service) DecorateFlights(flights []models.FlightOption) []models.FlightOption {
	for i := range flights {
		if flights[i].LogoURL == "" {
			flights[i].LogoURL = s.AirlineLogoURL(flights[i].Airline)
		}
	}
	return flights
}
