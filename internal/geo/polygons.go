// Package geo loads polygon boundary sets from zipped ESRI shapefiles and
// answers containment and nearest-polygon queries. All distance work happens
// in EPSG:3857 (meters); geometries are projected once at load time and
// query points once per query.
package geo

import (
	"fmt"
	"math"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"

	"treksafer/internal/types"
)

// Record is one polygon row from a shapefile: its DBF attributes plus the
// projected geometry.
type Record struct {
	Attrs    map[string]string
	Geometry orb.MultiPolygon // EPSG:3857
}

// Attr returns the named DBF attribute, or "" when absent.
func (r Record) Attr(name string) string {
	return r.Attrs[name]
}

// PolygonSet is a read-only collection of polygon records.
type PolygonSet struct {
	Records []Record
}

// LoadPolygonSet reads every polygon row of a zipped shapefile and projects
// the geometries to EPSG:3857.
func LoadPolygonSet(path string) (*PolygonSet, error) {
	zr, err := shp.OpenZip(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile %s: %w", path, err)
	}
	defer zr.Close()

	fields := zr.Fields()
	set := &PolygonSet{}
	for zr.Next() {
		_, shape := zr.Shape()
		mp := multiPolygonFromShape(shape)
		if mp == nil {
			continue
		}

		attrs := make(map[string]string, len(fields))
		for i, f := range fields {
			attrs[f.String()] = zr.Attribute(i)
		}

		projected := project.MultiPolygon(mp, project.WGS84.ToMercator)
		set.Records = append(set.Records, Record{Attrs: attrs, Geometry: projected})
	}
	if err := zr.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shapefile %s: %w", path, err)
	}
	return set, nil
}

// multiPolygonFromShape converts a go-shp polygon shape into an orb
// MultiPolygon. Shapefile outer rings wind clockwise; counter-clockwise rings
// are holes belonging to the preceding outer ring.
func multiPolygonFromShape(shape shp.Shape) orb.MultiPolygon {
	var points []shp.Point
	var parts []int32

	switch s := shape.(type) {
	case *shp.Polygon:
		points, parts = s.Points, s.Parts
	case *shp.PolygonZ:
		points, parts = s.Points, s.Parts
	case *shp.PolygonM:
		points, parts = s.Points, s.Parts
	default:
		return nil
	}

	var mp orb.MultiPolygon
	for i, start := range parts {
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		ring := make(orb.Ring, 0, end-int(start))
		for _, p := range points[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		if len(ring) < 3 {
			continue
		}

		if ring.Orientation() == orb.CW || len(mp) == 0 {
			mp = append(mp, orb.Polygon{ring})
		} else {
			mp[len(mp)-1] = append(mp[len(mp)-1], ring)
		}
	}
	return mp
}

// ProjectPoint transforms a WGS84 coordinate into an EPSG:3857 point.
// Axis order is explicit: (lon, lat) in, (x, y) out.
func ProjectPoint(c types.Coords) orb.Point {
	return project.Point(orb.Point{c.Longitude, c.Latitude}, project.WGS84.ToMercator)
}

// DistanceMeters returns the planar distance from point to geometry, zero
// when the point lies inside.
func DistanceMeters(g orb.MultiPolygon, point orb.Point) float64 {
	if planar.MultiPolygonContains(g, point) {
		return 0
	}
	return planar.DistanceFrom(g, point)
}

// Contains reports the index of the first record containing point.
func (s *PolygonSet) Contains(point orb.Point) (int, bool) {
	for i, rec := range s.Records {
		if planar.MultiPolygonContains(rec.Geometry, point) {
			return i, true
		}
	}
	return 0, false
}

// Nearest returns the index of the record closest to point and its distance
// in meters. ok is false for an empty set.
func (s *PolygonSet) Nearest(point orb.Point) (idx int, meters float64, ok bool) {
	meters = math.Inf(1)
	for i, rec := range s.Records {
		if d := planar.DistanceFrom(rec.Geometry, point); d < meters {
			meters = d
			idx = i
			ok = true
		}
	}
	return idx, meters, ok
}

// DistanceFromKM implements the standard provider distance contract:
// contained=true when the point is inside any record; otherwise km holds the
// nearest record distance when it is within bufferKM, and +Inf when the set
// is empty or everything is farther than the buffer.
func (s *PolygonSet) DistanceFromKM(point orb.Point, bufferKM float64) (contained bool, km float64) {
	if _, ok := s.Contains(point); ok {
		return true, 0
	}
	_, meters, ok := s.Nearest(point)
	if !ok {
		return false, math.Inf(1)
	}
	km = meters / 1000
	if km > bufferKM {
		return false, math.Inf(1)
	}
	return false, km
}

// CoverOrNearest resolves the nameField attribute of the record containing
// point, or of the nearest record within bufferKM. ok is false when neither
// exists.
func (s *PolygonSet) CoverOrNearest(point orb.Point, bufferKM float64, nameField string) (string, bool) {
	if i, ok := s.Contains(point); ok {
		return s.Records[i].Attr(nameField), true
	}
	i, meters, ok := s.Nearest(point)
	if !ok || meters > bufferKM*1000 {
		return "", false
	}
	return s.Records[i].Attr(nameField), true
}
