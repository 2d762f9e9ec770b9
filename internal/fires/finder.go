package fires

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"treksafer/internal/config"
	"treksafer/internal/geo"
	"treksafer/internal/httpcache"
	"treksafer/internal/types"
)

// ErrOutOfRange means no configured data source covers the coordinate.
var ErrOutOfRange = errors.New("no fire data sources within range")

// Finder locates and normalizes fire perimeters near a coordinate.
type Finder struct {
	settings *config.Settings
	index    *geo.Index
	http     httpcache.Client
	logger   *slog.Logger
}

func NewFinder(settings *config.Settings, index *geo.Index, http httpcache.Client, logger *slog.Logger) *Finder {
	return &Finder{
		settings: settings,
		index:    index,
		http:     http,
		logger:   logger.With("component", "fire-finder"),
	}
}

// EffectiveRadiusKM resolves the search radius for a request: the user's
// distance when supplied, else the configured default, clamped to max_radius.
func (f *Finder) EffectiveRadiusKM(filters types.FireFilters) float64 {
	radius := f.settings.FireRadius
	if filters.DistanceKM > 0 {
		radius = filters.DistanceKM
	}
	if radius > f.settings.MaxRadius {
		radius = f.settings.MaxRadius
	}
	return radius
}

// Nearby returns the filtered perimeter records for every data source
// covering the coordinate, in per-source iteration order. ErrOutOfRange is
// returned when no source's boundary lies within max_radius.
func (f *Finder) Nearby(c types.Coords, filters types.FireFilters) ([]Perimeter, error) {
	covering := f.index.SourcesFor(c, f.settings.MaxRadius)
	if len(covering) == 0 {
		return nil, ErrOutOfRange
	}

	inRange := make(map[string]bool, len(covering))
	for _, code := range covering {
		inRange[code] = true
	}

	point := geo.ProjectPoint(c)
	limitMeters := f.EffectiveRadiusKM(filters) * 1000

	status := filters.Status
	if status == "" {
		status = f.settings.FireStatus
	}

	var results []Perimeter
	for _, source := range f.settings.Data {
		if !inRange[source.Location] {
			continue
		}
		path, ok := f.latestPerimeterFile(source)
		if !ok {
			f.logger.Warn("no perimeter file found for source", "source", source.Location)
			continue
		}

		set, err := f.index.Perimeters(path)
		if err != nil {
			f.logger.Warn("failed to load perimeter file", "path", path, "error", err)
			continue
		}

		var found []Perimeter
		for _, rec := range set.Records {
			distance := geo.DistanceMeters(rec.Geometry, point)
			if distance > limitMeters {
				continue
			}
			closest := geo.ClosestPoint(rec.Geometry, point)
			found = append(found, f.normalizeRow(source, rec, distance, geo.CompassDirection(point, closest)))
		}

		found = f.filterStatus(found, status, source)
		found = filterSize(found, f.settings.FireSize)
		results = append(results, found...)
	}
	return results, nil
}

// latestPerimeterFile resolves the newest daily shapefile for a source.
// Dates are zero-padded YYYYMMDD, so the lexically greatest match is the
// most recent.
func (f *Finder) latestPerimeterFile(source config.DataSource) (string, bool) {
	pattern := filepath.Join(
		f.settings.Shapefiles,
		source.Location,
		strings.ReplaceAll(source.Filename, "{DATE}", "*"),
	)
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return "", false
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches[0], true
}

// filterStatus keeps records whose urgency level is at or below the filter
// level. Unknown filter values fall back to the configured default.
func (f *Finder) filterStatus(items []Perimeter, status string, source config.DataSource) []Perimeter {
	if status == "all" {
		return items
	}
	maxLevel, ok := statusLevels[status]
	if !ok {
		f.logger.Warn("unknown status filter, using default",
			"status", status,
			"default", f.settings.FireStatus,
			"source", source.Location,
		)
		maxLevel = statusLevels[f.settings.FireStatus]
		if maxLevel == 0 {
			return items
		}
	}

	kept := items[:0]
	for _, item := range items {
		if item.StatusLevel <= maxLevel {
			kept = append(kept, item)
		}
	}
	return kept
}

// filterSize requires a known size of at least minHa hectares.
func filterSize(items []Perimeter, minHa float64) []Perimeter {
	kept := items[:0]
	for _, item := range items {
		if item.HasSize && item.Size >= minHa {
			kept = append(kept, item)
		}
	}
	return kept
}
