// Package fires locates wildfire perimeters near a coordinate. Data sources
// are declared in configuration; each contributes daily perimeter shapefiles
// plus a mapping that normalizes its raw attributes into the common record.
package fires

import "math"

// Status urgency levels. Filtering by a level keeps every record at that
// level or more urgent; "all" disables the filter entirely.
const (
	StatusActive     = 1 // out of control
	StatusManaged    = 2 // being held
	StatusControlled = 3 // under control
	StatusOut        = 4 // extinguished
)

// statusLevels orders the filter keywords by urgency.
var statusLevels = map[string]int{
	"active":     StatusActive,
	"managed":    StatusManaged,
	"controlled": StatusControlled,
	"out":        StatusOut,
}

// statusLevelUnknown marks a raw status string absent from the source's
// status_map; such records survive only a "status all" filter.
const statusLevelUnknown = math.MaxInt

// Perimeter is the normalized form of one wildfire polygon row.
type Perimeter struct {
	Fire     string // source fire id
	Name     string // optional display name
	Location string // optional locality text

	Size    float64 // hectares
	HasSize bool

	Status      string // raw status string from the source
	StatusLevel int    // 1-4, or statusLevelUnknown

	Distance  float64 // meters from the query point to the perimeter
	Direction string  // 16-point compass bearing toward the perimeter
}
