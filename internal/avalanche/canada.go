package avalanche

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"treksafer/internal/config"
	"treksafer/internal/geo"
	"treksafer/internal/httpcache"
	"treksafer/internal/types"
)

const canadaDefaultTimezone = "America/Vancouver"

// subregionNameField is the DBF attribute holding the forecast region name.
const subregionNameField = "polygon_na"

// canadaProvider serves Avalanche Canada bulletins. Coverage is the set of
// forecast subregion polygons loaded once at construction.
type canadaProvider struct {
	name       string
	cfg        config.ProviderConfig
	buffer     float64
	subregions *geo.PolygonSet
	http       httpcache.Client
	logger     *slog.Logger
}

func newCanadaProvider(name string, cfg config.ProviderConfig, deps providerDeps) Provider {
	p := &canadaProvider{
		name:   name,
		cfg:    cfg,
		buffer: deps.settings.AvalancheDistanceBuffer,
		http:   deps.http,
		logger: deps.logger.With("component", "avalanche-canada"),
	}

	path := filepath.Join(deps.settings.Boundaries, "canadian_subregions.shp.zip")
	set, err := geo.LoadPolygonSet(path)
	if err != nil {
		p.logger.Warn("subregion boundary set unavailable, provider degrades to out of range",
			"path", path,
			"error", err,
		)
		set = &geo.PolygonSet{}
	}
	p.subregions = set
	return p
}

func (p *canadaProvider) Name() string            { return p.name }
func (p *canadaProvider) ForecastCutoffHour() int { return cutoffHour(p.cfg) }

func (p *canadaProvider) DistanceFromRegion(c types.Coords) (bool, float64) {
	return p.subregions.DistanceFromKM(geo.ProjectPoint(c), p.buffer)
}

// subregionName resolves the forecast region name for a coordinate: the
// containing subregion, or the nearest one within the buffer.
func (p *canadaProvider) subregionName(c types.Coords) (string, bool) {
	return p.subregions.CoverOrNearest(geo.ProjectPoint(c), p.buffer, subregionNameField)
}

func (p *canadaProvider) GetForecast(c types.Coords) (*Forecast, error) {
	base := strings.ReplaceAll(p.cfg.APIURL, "{lang}", p.cfg.Language)
	url := fmt.Sprintf("%s/products/point?lat=%v&long=%v", strings.TrimRight(base, "/"), c.Latitude, c.Longitude)

	body, err := p.http.Get(url)
	if err != nil {
		p.logger.Warn("avalanche canada request failed", "url", url, "error", err)
		return nil, fmt.Errorf("avalanche canada fetch failed: %w", err)
	}

	var resp canadaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		p.logger.Warn("avalanche canada response is not valid JSON", "url", url, "error", err)
		return nil, fmt.Errorf("failed to decode avalanche canada response: %w", err)
	}
	return p.parseForecast(&resp, c), nil
}

type canadaResponse struct {
	Report struct {
		ID         json.RawMessage `json:"id"`
		Title      string          `json:"title"`
		DateIssued string          `json:"dateIssued"`
		Timezone   string          `json:"timezone"`

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
			Data struct {
				Elevations []struct {
					Display string `json:"display"`
				} `json:"elevations"`
				Aspects []struct {
					Value string `json:"value"`
				} `json:"aspects"`
				Likelihood struct {
					Display string `json:"display"`
				} `json:"likelihood"`
				ExpectedSize struct {
					Min string `json:"min"`
					Max string `json:"max"`
				} `json:"expectedSize"`
			} `json:"data"`
		} `json:"problems"`
	} `json:"report"`
}

// parseForecast maps the point-product response onto the domain bulletin.
// A report without an id means no forecast exists for the point.
func (p *canadaProvider) parseForecast(resp *canadaResponse, c types.Coords) *Forecast {
	id := strings.TrimSpace(string(resp.Report.ID))
	if id == "" || id == "null" {
		return nil
	}

	tz := resp.Report.Timezone
	if tz == "" {
		tz = canadaDefaultTimezone
	}

	region := "Unknown"
	if name, ok := p.subregionName(c); ok && name != "" {
		region = name
	} else if resp.Report.Title != "" {
		region = resp.Report.Title
	}

	forecast := &Forecast{
		Region:     region,
		DateIssued: resp.Report.DateIssued,
		Timezone:   tz,
		Forecasts:  make(map[string]DangerRatings, len(resp.Report.DangerRatings)),
	}

	for _, dr := range resp.Report.DangerRatings {
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

	for _, problem := range resp.Report.Problems {
		prob := Problem{
			Type:       orUnknown(problem.Type.Display),
			Likelihood: problem.Data.Likelihood.Display,
			SizeMin:    problem.Data.ExpectedSize.Min,
			SizeMax:    problem.Data.ExpectedSize.Max,
		}
		for _, e := range problem.Data.Elevations {
			prob.Elevations = append(prob.Elevations, e.Display)
		}
		for _, a := range problem.Data.Aspects {
			prob.Aspects = append(prob.Aspects, a.Value)
		}
		forecast.Problems = append(forecast.Problems, prob)
	}

	return forecast
}
