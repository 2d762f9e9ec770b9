// Package router orchestrates one inbound message: parse, dispatch to the
// fire or avalanche pipeline, and render the reply. Every path produces a
// user-facing string; transports never see errors.
package router

import (
	"errors"
	"log/slog"

	"treksafer/internal/aqi"
	"treksafer/internal/avalanche"
	"treksafer/internal/config"
	"treksafer/internal/fires"
	"treksafer/internal/parser"
	"treksafer/internal/reply"
	"treksafer/internal/types"
)

// Service handles inbound messages end to end.
type Service interface {
	// Handle produces the reply text for one inbound message.
	Handle(message string) string
}

// FireFinder is the slice of the fire search the router needs.
type FireFinder interface {
	Nearby(c types.Coords, filters types.FireFilters) ([]fires.Perimeter, error)
	EffectiveRadiusKM(filters types.FireFilters) float64
}

type service struct {
	settings  *config.Settings
	finder    FireFinder
	avalanche avalanche.Service
	aqi       aqi.Service
	logger    *slog.Logger
}

func NewService(settings *config.Settings, finder FireFinder, av avalanche.Service, air aqi.Service, logger *slog.Logger) Service {
	return &service{
		settings:  settings,
		finder:    finder,
		avalanche: av,
		aqi:       air,
		logger:    logger.With("component", "router"),
	}
}

func (s *service) Handle(message string) string {
	req, err := parser.Parse(message)
	if err != nil {
		s.logger.Warn("no GPS coordinates found in message", "message", message)
		return reply.NoGPS()
	}

	s.logger.Info("handling request",
		"lat", req.Coords.Latitude,
		"lon", req.Coords.Longitude,
		"data_type", req.DataType,
	)

	dataType := req.DataType
	if dataType == types.DataTypeAuto {
		// One forecast probe decides the branch; the HTTP cache makes the
		// follow-up fetch free.
		if s.avalanche.HasData(req.Coords) {
			dataType = types.DataTypeAvalanche
		} else {
			dataType = types.DataTypeFire
		}
	}

	if dataType == types.DataTypeAvalanche {
		return s.avalancheReply(req)
	}
	return s.fireReply(req)
}

func (s *service) fireReply(req types.ParsedRequest) string {
	found, err := s.finder.Nearby(req.Coords, req.Fire)
	if err != nil {
		if errors.Is(err, fires.ErrOutOfRange) {
			return reply.OutsideOfArea()
		}
		s.logger.Error("fire search failed", "error", err)
		return reply.OutsideOfArea()
	}
	if len(found) == 0 {
		return reply.NoFires(s.finder.EffectiveRadiusKM(req.Fire))
	}

	text := reply.FireEntries(found)
	if s.settings.IncludeAQI && s.aqi != nil {
		if value, ok := s.aqi.Current(req.Coords); ok {
			text = reply.AQILine(value) + "\n\n" + text
		}
	}
	return text
}

func (s *service) avalancheReply(req types.ParsedRequest) string {
	text, err := s.avalanche.Report(req.Coords, req.Avalanche)
	if err != nil {
		switch {
		case errors.Is(err, avalanche.ErrOutOfRange):
			return reply.AvalancheOutsideOfArea()
		case errors.Is(err, avalanche.ErrNoForecast):
			return reply.NoForecast()
		default:
			s.logger.Error("avalanche report failed", "error", err)
			return reply.NoForecast()
		}
	}
	return text
}
