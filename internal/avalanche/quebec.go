package avalanche

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"treksafer/internal/config"
	"treksafer/internal/geo"
	"treksafer/internal/httpcache"
	"treksafer/internal/types"
)

const (
	quebecRegion   = "Chic-Chocs"
	quebecTimezone = "America/Toronto"

	// quebecPostalCode keys the province polygon used as the coverage gate.
	quebecPostalCode = "QC"
)

// quebecProvider serves the single Avalanche Quebec bulletin for the
// Chic-Chocs. Coverage is the whole province; the bulletin itself carries no
// geometry.
type quebecProvider struct {
	name   string
	cfg    config.ProviderConfig
	buffer float64
	index  *geo.Index
	http   httpcache.Client
	logger *slog.Logger
}

func newQuebecProvider(name string, cfg config.ProviderConfig, deps providerDeps) Provider {
	return &quebecProvider{
		name:   name,
		cfg:    cfg,
		buffer: deps.settings.AvalancheDistanceBuffer,
		index:  deps.index,
		http:   deps.http,
		logger: deps.logger.With("component", "avalanche-quebec"),
	}
}

func (p *quebecProvider) Name() string            { return p.name }
func (p *quebecProvider) ForecastCutoffHour() int { return cutoffHour(p.cfg) }

func (p *quebecProvider) DistanceFromRegion(c types.Coords) (bool, float64) {
	return p.index.ProvinceDistanceKM(quebecPostalCode, c, p.buffer)
}

func (p *quebecProvider) GetForecast(c types.Coords) (*Forecast, error) {
	url := strings.ReplaceAll(p.cfg.APIURL, "{lang}", p.cfg.Language)

	body, err := p.http.Get(url)
	if err != nil {
		p.logger.Warn("avalanche quebec request failed", "url", url, "error", err)
		return nil, fmt.Errorf("avalanche quebec fetch failed: %w", err)
	}

	var resp quebecResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		p.logger.Warn("avalanche quebec response is not valid JSON", "url", url, "error", err)
		return nil, fmt.Errorf("failed to decode avalanche quebec response: %w", err)
	}
	return p.parseForecast(&resp), nil
}

// quebecResponse is the flat single-bulletin schema: no report wrapper, and
// problems carry only a type.
type quebecResponse struct {
	ID         json.RawMessage `json:"id"`
	DateIssued string          `json:"dateIssued"`

	DangerRatings []struct {
		Date struct {
			Value string `json:"value"`
		} `json:"date"`
		Ratings map[string]struct {
			Rating struct {
				Display string `json:"display"`
			} `json:"rating"`
		} `json:"ratings"`
	} `json:"dangerRatings"`

	Problems []struct {
		Type struct {
			Display string `json:"display"`
		} `json:"type"`
	} `json:"problems"`
}

func (p *quebecProvider) parseForecast(resp *quebecResponse) *Forecast {
	id := strings.TrimSpace(string(resp.ID))
	if id == "" || id == "null" {
		return nil
	}

	forecast := &Forecast{
		Region:     quebecRegion,
		DateIssued: resp.DateIssued,
		Timezone:   quebecTimezone,
		Forecasts:  make(map[string]DangerRatings, len(resp.DangerRatings)),
	}

	for _, dr := range resp.DangerRatings {
		date, err := parseRatingDate(dr.Date.Value)
		if err != nil {
			p.logger.Warn("unparseable danger rating date", "value", dr.Date.Value, "error", err)
			continue
		}

		ratings := DangerRatings{Alpine: noRating, Treeline: noRating, BelowTreeline: noRating}
		for band, value := range dr.Ratings {
			display := value.Rating.Display
			if display == "" {
				display = noRating
			}
			switch band {
			case "alp":
				ratings.Alpine = display
			case "tln":
				ratings.Treeline = display
			case "btl":
				ratings.BelowTreeline = display
			default:
				p.logger.Warn("invalid avalanche band in API response", "band", band)
			}
		}
		forecast.Forecasts[date] = ratings
	}

	for _, problem := range resp.Problems {
		forecast.Problems = append(forecast.Problems, Problem{
			Type: orUnknown(problem.Type.Display),
		})
	}
	return forecast
}
