package geo

import (
	"log/slog"
	"math"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"

	"treksafer/internal/types"
)

// perimeterCacheSize bounds the number of opened perimeter files kept in
// memory; sized to the number of configured sources.
const perimeterCacheSize = 16

// Layer is a named boundary set with the DBF field that keys its polygons
// (ISO code for countries, postal code for provinces).
type Layer struct {
	set      *PolygonSet
	keyField string
}

// Index owns the process-wide boundary layers and the cache of opened
// perimeter files. Layers are loaded once at construction and read-only
// afterwards; a missing or corrupt boundary file degrades that layer to
// empty rather than failing.
type Index struct {
	logger    *slog.Logger
	countries Layer
	provinces Layer

	mu         sync.Mutex
	perimeters *lru.Cache[string, *PolygonSet]
}

// NewIndex loads the world-country and Canadian-province boundary layers
// from dir and prepares the perimeter cache.
func NewIndex(dir string, logger *slog.Logger) *Index {
	cache, _ := lru.New[string, *PolygonSet](perimeterCacheSize)
	idx := &Index{
		logger:     logger.With("component", "geo-index"),
		perimeters: cache,
	}
	idx.countries = Layer{set: idx.loadBoundary(filepath.Join(dir, "countries.zip")), keyField: "ISO"}
	idx.provinces = Layer{set: idx.loadBoundary(filepath.Join(dir, "canada_provinces.zip")), keyField: "postal"}
	return idx
}

func (x *Index) loadBoundary(path string) *PolygonSet {
	set, err := LoadPolygonSet(path)
	if err != nil {
		x.logger.Warn("boundary layer unavailable, queries will degrade to empty",
			"path", path,
			"error", err,
		)
		return &PolygonSet{}
	}
	x.logger.Debug("boundary layer loaded", "path", path, "polygons", len(set.Records))
	return set
}

// SourcesFor returns the region codes of every country and Canadian province
// whose boundary lies within maxKM of the coordinate. The two layers are
// queried independently and the results unioned.
func (x *Index) SourcesFor(c types.Coords, maxKM float64) []string {
	point := ProjectPoint(c)
	limit := maxKM * 1000

	var codes []string
	for _, layer := range []Layer{x.countries, x.provinces} {
		for _, rec := range layer.set.Records {
			if DistanceMeters(rec.Geometry, point) <= limit {
				codes = append(codes, rec.Attr(layer.keyField))
			}
		}
	}
	return codes
}

// ProvinceSet exposes the province boundary layer for providers that gate on
// a single province polygon.
func (x *Index) ProvinceSet() *PolygonSet {
	return x.provinces.set
}

// ProvinceDistanceKM applies the standard distance contract against one
// province selected by postal code.
func (x *Index) ProvinceDistanceKM(postal string, c types.Coords, bufferKM float64) (contained bool, km float64) {
	point := ProjectPoint(c)
	for _, rec := range x.provinces.set.Records {
		if rec.Attr(x.provinces.keyField) != postal {
			continue
		}
		d := DistanceMeters(rec.Geometry, point)
		if d == 0 {
			return true, 0
		}
		if km := d / 1000; km <= bufferKM {
			return false, km
		}
		return false, math.Inf(1)
	}
	return false, math.Inf(1)
}

// Perimeters returns the polygon set for path, loading it on first use. The
// cache is bounded and shared by every request; the mutex covers the whole
// miss-load-insert path so a file is read at most once.
func (x *Index) Perimeters(path string) (*PolygonSet, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if set, ok := x.perimeters.Get(path); ok {
		return set, nil
	}
	set, err := LoadPolygonSet(path)
	if err != nil {
		return nil, err
	}
	x.perimeters.Add(path, set)
	x.logger.Debug("perimeter file loaded", "path", path, "polygons", len(set.Records))
	return set, nil
}

// ClosestPoint returns the point on the geometry boundary nearest to point.
// When the point lies inside the geometry it is returned unchanged.
func ClosestPoint(g orb.MultiPolygon, point orb.Point) orb.Point {
	if DistanceMeters(g, point) == 0 {
		return point
	}

	best := point
	bestDist := math.Inf(1)
	for _, poly := range g {
		for _, ring := range poly {
			for i := 0; i+1 < len(ring); i++ {
				cand := closestOnSegment(ring[i], ring[i+1], point)
				d := distSquared(cand, point)
				if d < bestDist {
					bestDist = d
					best = cand
				}
			}
		}
	}
	return best
}

func closestOnSegment(a, b, p orb.Point) orb.Point {
	dx, dy := b[0]-a[0], b[1]-a[1]
	if dx == 0 && dy == 0 {
		return a
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / (dx*dx + dy*dy)
	if t < 0 {
		return a
	}
	if t > 1 {
		return b
	}
	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}

func distSquared(a, b orb.Point) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return dx*dx + dy*dy
}
