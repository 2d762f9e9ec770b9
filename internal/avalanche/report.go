package avalanche

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"treksafer/internal/config"
	"treksafer/internal/geo"
	"treksafer/internal/httpcache"
	"treksafer/internal/types"
)

var (
	// ErrOutOfRange means no provider's coverage reaches the coordinate.
	ErrOutOfRange = errors.New("no avalanche forecast region within range")

	// ErrNoForecast means the selected provider has no current bulletin.
	ErrNoForecast = errors.New("no avalanche forecast available")
)

// Service reports avalanche conditions for a coordinate.
type Service interface {
	// Report renders the date-filtered forecast from the best-matching
	// provider. Returns ErrOutOfRange or ErrNoForecast when nothing applies.
	Report(c types.Coords, filters types.AvalancheFilters) (string, error)

	// HasData probes whether any provider currently has a forecast for the
	// coordinate. Used to break ties when a request names no data type.
	HasData(c types.Coords) bool
}

type service struct {
	providers []Provider
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds the dispatcher from the configured providers, in sorted
// region-code order so selection ties are deterministic.
func NewService(settings *config.Settings, index *geo.Index, http httpcache.Client, logger *slog.Logger) Service {
	logger = logger.With("component", "avalanche")
	deps := providerDeps{settings: settings, index: index, http: http, logger: logger}

	codes := make([]string, 0, len(settings.Avalanche.Providers))
	for code := range settings.Avalanche.Providers {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var providers []Provider
	for _, code := range codes {
		factory, ok := providerFactories[code]
		if !ok {
			logger.Warn("unknown avalanche provider in configuration, skipping", "provider", code)
			continue
		}
		providers = append(providers, factory(code, settings.Avalanche.Providers[code], deps))
	}

	return &service{providers: providers, logger: logger, now: time.Now}
}

// NewServiceWithProviders wires an explicit provider list, for tests.
func NewServiceWithProviders(providers []Provider, logger *slog.Logger) Service {
	return &service{providers: providers, logger: logger.With("component", "avalanche"), now: time.Now}
}

// selectProvider picks the provider for a coordinate: the first whose region
// contains it, else the one with the smallest finite buffer distance.
func (s *service) selectProvider(c types.Coords) Provider {
	var nearest Provider
	nearestKM := math.Inf(1)

	for _, p := range s.providers {
		contained, km := p.DistanceFromRegion(c)
		if contained {
			return p
		}
		if km < nearestKM {
			nearest = p
			nearestKM = km
		}
	}
	if math.IsInf(nearestKM, 1) {
		return nil
	}
	return nearest
}

func (s *service) Report(c types.Coords, filters types.AvalancheFilters) (string, error) {
	p := s.selectProvider(c)
	if p == nil {
		return "", ErrOutOfRange
	}

	forecast, err := p.GetForecast(c)
	if err != nil {
		return "", fmt.Errorf("provider %s: %w", p.Name(), err)
	}
	if forecast == nil || len(forecast.Forecasts) == 0 {
		return "", ErrNoForecast
	}

	filter := filters.Forecast
	if filter == "" {
		filter = "current"
	}
	dates := forecast.FilterDates(filter, p.ForecastCutoffHour(), s.now())
	return forecast.Format(dates), nil
}

func (s *service) HasData(c types.Coords) bool {
	p := s.selectProvider(c)
	if p == nil {
		return false
	}
	forecast, err := p.GetForecast(c)
	if err != nil {
		s.logger.Warn("avalanche probe failed", "provider", p.Name(), "error", err)
		return false
	}
	return forecast != nil && len(forecast.Forecasts) > 0
}
