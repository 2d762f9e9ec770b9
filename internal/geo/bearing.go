package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// compassRose is the 16-wind rose in 22.5 degree steps.
var compassRose = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// CompassDirection returns the 16-point compass bearing from one projected
// point to another. Both points are unprojected back to WGS84 before the
// great-circle bearing is taken.
func CompassDirection(from, to orb.Point) string {
	a := project.Point(from, project.Mercator.ToWGS84)
	b := project.Point(to, project.Mercator.ToWGS84)

	bearing := initialBearing(a[1], a[0], b[1], b[0])
	idx := int(math.Round(bearing/22.5)) % len(compassRose)
	return compassRose[idx]
}

// initialBearing computes the forward azimuth between two WGS84 coordinates
// in degrees normalized to [0, 360).
func initialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := lat1 * math.Pi / 180
	p2 := lat2 * math.Pi / 180
	dl := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(dl) * math.Cos(p2)
	x := math.Cos(p1)*math.Sin(p2) - math.Sin(p1)*math.Cos(p2)*math.Cos(dl)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}
