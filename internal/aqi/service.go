// Package aqi fetches the current US AQI for a coordinate from the
// Open-Meteo air-quality API. AQI is a best-effort garnish on fire replies:
// every failure path reports the value as absent rather than erroring.
package aqi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"time"

	"treksafer/internal/httpcache"
	"treksafer/internal/timezone"
	"treksafer/internal/types"
)

const (
	baseAirQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"

	// fallbackTimezone is used when the coordinate's timezone cannot be
	// resolved locally.
	fallbackTimezone = "America/Los_Angeles"

	hourLayout = "2006-01-02T15:00"
)

// Service resolves the current air quality index for a coordinate.
type Service interface {
	// Current returns the US AQI for the present hour at the coordinate.
	// ok is false whenever the value cannot be determined.
	Current(c types.Coords) (value int, ok bool)
}

type service struct {
	baseURL  string
	http     httpcache.Client
	timezone timezone.Service
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(http httpcache.Client, tz timezone.Service, logger *slog.Logger) Service {
	return &service{
		baseURL:  baseAirQualityURL,
		http:     http,
		timezone: tz,
		logger:   logger.With("component", "aqi"),
		now:      time.Now,
	}
}

type airQualityResponse struct {
	Timezone string `json:"timezone"`
	Hourly   struct {
		Time  []string   `json:"time"`
		USAQI []*float64 `json:"us_aqi"`
	} `json:"hourly"`
}

func (s *service) Current(c types.Coords) (int, bool) {
	tz := fallbackTimezone
	if s.timezone != nil {
		if name, err := s.timezone.GetTimezone(c.Latitude, c.Longitude); err == nil {
			tz = name
		}
	}

	body, err := s.http.Get(s.requestURL(c, tz))
	if err != nil {
		s.logger.Warn("air quality request failed", "error", err)
		return 0, false
	}

	var resp airQualityResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		s.logger.Warn("air quality response is not valid JSON", "error", err)
		return 0, false
	}

	// Hour matching uses the timezone the API actually applied, which may
	// differ from the one requested.
	loc, err := time.LoadLocation(resp.Timezone)
	if err != nil {
		s.logger.Warn("unknown timezone in air quality response", "timezone", resp.Timezone)
		return 0, false
	}
	currentHour := s.now().In(loc).Format(hourLayout)

	for i, t := range resp.Hourly.Time {
		if t != currentHour {
			continue
		}
		if i >= len(resp.Hourly.USAQI) || resp.Hourly.USAQI[i] == nil {
			return 0, false
		}
		return int(math.Round(*resp.Hourly.USAQI[i])), true
	}
	s.logger.Warn("current hour missing from air quality response", "hour", currentHour)
	return 0, false
}

func (s *service) requestURL(c types.Coords, tz string) string {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%v", c.Latitude))
	q.Set("longitude", fmt.Sprintf("%v", c.Longitude))
	q.Set("hourly", "us_aqi")
	q.Set("forecast_days", "1")
	q.Set("timezone", tz)
	return s.baseURL + "?" + q.Encode()
}
