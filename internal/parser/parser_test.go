package parser

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"treksafer/internal/types"
)

const coordTolerance = 1e-9

func closeTo(a, b float64) bool {
	return math.Abs(a-b) <= coordTolerance
}

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		message string
		lat     float64
		lon     float64
	}{
		{
			name:    "trailing inreach pair",
			message: "Fire check inreachlink.com/ABC (50.7021714, -121.9725246)",
			lat:     50.7021714,
			lon:     -121.9725246,
		},
		{
			name:    "bare pair mid message",
			message: "am at 49.25, -123.1 please check",
			lat:     49.25,
			lon:     -123.1,
		},
		{
			name:    "integer pair",
			message: "(50, -121)",
			lat:     50,
			lon:     -121,
		},
		{
			name:    "degree hemisphere form",
			message: "50.58225° N, 122.09114° W",
			lat:     50.58225,
			lon:     -122.09114,
		},
		{
			name:    "hemisphere before degrees",
			message: "N 50.58225, W 122.09114",
			lat:     50.58225,
			lon:     -122.09114,
		},
		{
			name:    "southern and eastern hemispheres",
			message: "33.8688 S 151.2093 E",
			lat:     -33.8688,
			lon:     151.2093,
		},
		{
			name:    "hemisphere letter overrides sign",
			message: "-50.5° N, -122.1° W",
			lat:     50.5,
			lon:     -122.1,
		},
		{
			name:    "apple maps url",
			message: "I am here https://maps.apple.com/?coordinate=50.7021714,-121.9725246",
			lat:     50.7021714,
			lon:     -121.9725246,
		},
		{
			name:    "google maps at-path url",
			message: "https://www.google.com/maps/@49.2827,-123.1207,12z",
			lat:     49.2827,
			lon:     -123.1207,
		},
		{
			name:    "google maps query url",
			message: "https://www.google.com/maps?q=49.2827,-123.1207",
			lat:     49.2827,
			lon:     -123.1207,
		},
		{
			name:    "url wins over trailing pair",
			message: "https://maps.apple.com/?coordinate=48.0,-120.0 (50.0, -121.0)",
			lat:     48.0,
			lon:     -120.0,
		},
		{
			name:    "trailing pair wins over mid-string pair",
			message: "saw smoke at 49.0, -122.0 im at (50.0, -121.0)",
			lat:     50.0,
			lon:     -121.0,
		},
		{
			name:    "out of range pair skipped for valid later pair",
			message: "95.0, -121.0 then 50.0, -121.0",
			lat:     50.0,
			lon:     -121.0,
		},
		{
			name:    "padding inside brackets keeps the sign",
			message: "im at ( -50.7021714, 121.9725246 )",
			lat:     -50.7021714,
			lon:     121.9725246,
		},
		{
			name:    "newlines inside brackets",
			message: "im at (\n-50.7021714,\n121.9725246\n)",
			lat:     -50.7021714,
			lon:     121.9725246,
		},
		{
			name:    "north pole",
			message: "(90, 0)",
			lat:     90,
			lon:     0,
		},
		{
			name:    "south pole",
			message: "(-90, 0)",
			lat:     -90,
			lon:     0,
		},
		{
			name:    "antimeridian east",
			message: "(0, 180)",
			lat:     0,
			lon:     180,
		},
		{
			name:    "antimeridian west",
			message: "(0, -180)",
			lat:     0,
			lon:     -180,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Parse(tt.message)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.message, err)
			}
			if !closeTo(req.Coords.Latitude, tt.lat) || !closeTo(req.Coords.Longitude, tt.lon) {
				t.Errorf("Parse(%q) coords = (%v, %v), want (%v, %v)",
					tt.message, req.Coords.Latitude, req.Coords.Longitude, tt.lat, tt.lon)
			}
		})
	}
}

func TestParseNoCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{name: "empty message", message: ""},
		{name: "plain text", message: "is there a fire near me?"},
		{name: "latitude out of range", message: "(95.0, -121.0)"},
		{name: "longitude out of range", message: "(50.0, -190.0)"},
		{name: "latitude just past the pole", message: "(91, 0)"},
		{name: "longitude just past the antimeridian", message: "(0, 181)"},
		{name: "unrecognized url only", message: "https://example.com/nothing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.message)
			if !errors.Is(err, ErrNoCoordinates) {
				t.Errorf("Parse(%q) error = %v, want ErrNoCoordinates", tt.message, err)
			}
		})
	}
}

// Rendering a parsed coordinate back into the bracket notation and parsing
// again must land on the same point.
func TestParseRoundTrip(t *testing.T) {
	coords := []types.Coords{
		{Latitude: 50.7021714, Longitude: -121.9725246},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 90, Longitude: 0},
		{Latitude: 0, Longitude: -180},
		{Latitude: 50.12345678, Longitude: -121.87654321},
	}

	const tolerance = 1e-6
	for _, c := range coords {
		rendered := fmt.Sprintf("(%v, %v)", c.Latitude, c.Longitude)
		req, err := Parse(rendered)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", rendered, err)
		}
		if math.Abs(req.Coords.Latitude-c.Latitude) > tolerance ||
			math.Abs(req.Coords.Longitude-c.Longitude) > tolerance {
			t.Errorf("Parse(%q) = (%v, %v), want (%v, %v)",
				rendered, req.Coords.Latitude, req.Coords.Longitude, c.Latitude, c.Longitude)
		}
	}
}

func TestParseDataType(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected types.DataType
	}{
		{
			name:     "fire keyword",
			message:  "fire check (50.0, -121.0)",
			expected: types.DataTypeFire,
		},
		{
			name:     "plural fires",
			message:  "any fires nearby? (50.0, -121.0)",
			expected: types.DataTypeFire,
		},
		{
			name:     "avalanche keyword",
			message:  "avalanche conditions (50.0, -121.0)",
			expected: types.DataTypeAvalanche,
		},
		{
			name:     "avalanche beats fire",
			message:  "fire and avalanche (50.0, -121.0)",
			expected: types.DataTypeAvalanche,
		},
		{
			name:     "no keyword is auto",
			message:  "(50.0, -121.0)",
			expected: types.DataTypeAuto,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Parse(tt.message)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.message, err)
			}
			if req.DataType != tt.expected {
				t.Errorf("Parse(%q) data type = %v, want %v", tt.message, req.DataType, tt.expected)
			}
		})
	}
}

func TestParseFireFilters(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		status   string
		distance float64
	}{
		{
			name:    "status keyword",
			message: "fire active (50.0, -121.0)",
			status:  "active",
		},
		{
			name:    "active wins over all",
			message: "all active fires (50.0, -121.0)",
			status:  "active",
		},
		{
			name:     "distance in km",
			message:  "fires 25km (50.0, -121.0)",
			distance: 25,
		},
		{
			name:     "distance in miles",
			message:  "fires 10mi (50.0, -121.0)",
			distance: 16.09344,
		},
		{
			name:    "no filters",
			message: "(50.0, -121.0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Parse(tt.message)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.message, err)
			}
			if req.Fire.Status != tt.status {
				t.Errorf("status = %q, want %q", req.Fire.Status, tt.status)
			}
			if !closeTo(req.Fire.DistanceKM, tt.distance) {
				t.Errorf("distance = %v, want %v", req.Fire.DistanceKM, tt.distance)
			}
		})
	}
}

func TestParseAvalancheFilters(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		forecast string
	}{
		{
			name:     "tomorrow",
			message:  "avalanche tomorrow (50.0, -121.0)",
			forecast: "tomorrow",
		},
		{
			name:     "current beats tomorrow",
			message:  "avalanche current and tomorrow (50.0, -121.0)",
			forecast: "current",
		},
		{
			name:     "all dates",
			message:  "avalanche all (50.0, -121.0)",
			forecast: "all",
		},
		{
			name:    "no filter",
			message: "avalanche (50.0, -121.0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Parse(tt.message)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.message, err)
			}
			if req.Avalanche.Forecast != tt.forecast {
				t.Errorf("forecast = %q, want %q", req.Avalanche.Forecast, tt.forecast)
			}
		})
	}
}
