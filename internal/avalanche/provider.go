// Package avalanche selects the best forecast provider for a coordinate and
// turns its bulletin into a compact, date-filtered report. Two providers
// exist: Avalanche Canada (subregion polygons + point API) and Avalanche
// Quebec (province-gated single bulletin).
package avalanche

import (
	"log/slog"
	"time"

	"treksafer/internal/config"
	"treksafer/internal/geo"
	"treksafer/internal/httpcache"
	"treksafer/internal/types"
)

const (
	// defaultCutoffHour is the local hour after which "current" rolls over
	// to tomorrow's forecast when a provider does not configure its own.
	defaultCutoffHour = 16

	noRating = "No Rating"

	ratingDateLayout = "2006-01-02T15:04:05Z"
)

// Provider is one avalanche forecast source.
type Provider interface {
	// Name is the provider's region code from configuration.
	Name() string

	// DistanceFromRegion applies the standard contract: contained=true when
	// the point lies inside the provider's coverage; otherwise km is the
	// nearest-region distance when within the buffer, and +Inf beyond it or
	// when the region index is unavailable.
	DistanceFromRegion(c types.Coords) (contained bool, km float64)

	// GetForecast fetches and normalizes the bulletin for the coordinate.
	// A nil forecast with nil error means the provider has no current data.
	GetForecast(c types.Coords) (*Forecast, error)

	// ForecastCutoffHour is the local hour after which "current" means
	// tomorrow's forecast.
	ForecastCutoffHour() int
}

// providerDeps carries the shared collaborators a provider constructor needs.
type providerDeps struct {
	settings *config.Settings
	index    *geo.Index
	http     httpcache.Client
	logger   *slog.Logger
}

// providerFactories is the closed set of known provider variants keyed by
// region code.
var providerFactories = map[string]func(string, config.ProviderConfig, providerDeps) Provider{
	"CA": newCanadaProvider,
	"QC": newQuebecProvider,
}

func cutoffHour(cfg config.ProviderConfig) int {
	if cfg.ForecastCutoffHour > 0 {
		return cfg.ForecastCutoffHour
	}
	return defaultCutoffHour
}

// parseRatingDate reduces an API rating timestamp to its calendar day.
func parseRatingDate(value string) (string, error) {
	t, err := time.Parse(ratingDateLayout, value)
	if err != nil {
		return "", err
	}
	return t.Format(dateLayout), nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
