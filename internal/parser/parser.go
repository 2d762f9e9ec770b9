// Package parser extracts coordinates and filter directives from freeform
// inbound text. Messages arrive from satellite messengers, phone SMS, or map
// share links, so several coordinate notations have to be recognized:
//
//   - Apple/Google Maps URLs
//   - inReach-style trailing "(lat, lon)" pairs
//   - bare decimal pairs anywhere in the message
//   - degree + hemisphere forms like "50.58225° N, 122.09114° W"
package parser

import (
	"errors"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"treksafer/internal/types"
)

// ErrNoCoordinates is returned when no extraction step produced a valid pair.
var ErrNoCoordinates = errors.New("no coordinates found in message")

const milesToKM = 1.609344

var (
	urlPattern = regexp.MustCompile(`https?://\S+`)

	// inReach puts the coordinates at the end of the message in brackets.
	// Whitespace, including newlines, may appear anywhere inside them.
	trailingPairPattern = regexp.MustCompile(
		`\(\s*(-?\d{1,2}(?:\.\d{1,8})?)\s*,\s*(-?\d{1,3}(?:\.\d{1,8})?)\s*\)\s*$`)

	// Decimal pairs anywhere in the string.
	anyPairPattern = regexp.MustCompile(
		`\b(-?\d{1,2}(?:\.\d{1,8})?)\s*,\s*(-?\d{1,3}(?:\.\d{1,8})?)\b`)

	// "50.58225° N, 122.09114° W"
	degHemiPattern = regexp.MustCompile(
		`(?i)(-?\d{1,2}(?:\.\d{1,8})?)\s*[°º]?\s*([NS])\s*[,;]?\s*(-?\d{1,3}(?:\.\d{1,8})?)\s*[°º]?\s*([EW])`)

	// "N 50.58225°, W 122.09114°"
	hemiDegPattern = regexp.MustCompile(
		`(?i)([NS])\s*(-?\d{1,2}(?:\.\d{1,8})?)\s*[°º]?\s*[,;]?\s*([EW])\s*(-?\d{1,3}(?:\.\d{1,8})?)\s*[°º]?`)

	// Google Maps path form "@lat,lon,zoom".
	googleAtPattern = regexp.MustCompile(
		`@(-?\d{1,2}(?:\.\d+)?),(-?\d{1,3}(?:\.\d+)?)`)

	statusPattern    = regexp.MustCompile(`(?i)\b(active|managed|controlled|out|all)\b`)
	distancePattern  = regexp.MustCompile(`(?i)\b(\d+)(km|mi)\b`)
	fireWordPattern  = regexp.MustCompile(`(?i)\bfires?\b`)
	avyWordPattern   = regexp.MustCompile(`(?i)\bavalanches?\b`)
	forecastPattern  = regexp.MustCompile(`(?i)\b(current|today|tomorrow|all)\b`)
	coordPairPattern = regexp.MustCompile(`^\s*(-?\d{1,3}(?:\.\d+)?)\s*,\s*(-?\d{1,3}(?:\.\d+)?)\s*$`)
)

// Parse extracts coordinates and filter directives from message. It returns
// ErrNoCoordinates when no notation yields an in-bounds pair; filter absence
// is never an error, callers apply defaults.
func Parse(message string) (types.ParsedRequest, error) {
	req := types.ParsedRequest{
		DataType:  extractDataType(message),
		Fire:      extractFireFilters(message),
		Avalanche: extractAvalancheFilters(message),
	}

	coords, ok := extractCoords(message)
	if !ok {
		return req, ErrNoCoordinates
	}
	req.Coords = coords
	return req, nil
}

func extractCoords(message string) (types.Coords, bool) {
	// Map share links take precedence over anything else in the text.
	for _, token := range urlPattern.FindAllString(message, -1) {
		if c, ok := coordsFromURL(token); ok {
			return c, true
		}
	}

	if m := trailingPairPattern.FindStringSubmatch(message); m != nil {
		if c, ok := makeCoords(m[1], m[2]); ok {
			return c, true
		}
	}

	// First in-range pair anywhere wins.
	for _, m := range anyPairPattern.FindAllStringSubmatch(message, -1) {
		if c, ok := makeCoords(m[1], m[2]); ok {
			return c, true
		}
	}

	if m := degHemiPattern.FindStringSubmatch(message); m != nil {
		c := types.NewCoords(
			applyHemisphere(parseFloat(m[1]), m[2]),
			applyHemisphere(parseFloat(m[3]), m[4]),
		)
		if c.Valid() {
			return c, true
		}
	}
	if m := hemiDegPattern.FindStringSubmatch(message); m != nil {
		c := types.NewCoords(
			applyHemisphere(parseFloat(m[2]), m[1]),
			applyHemisphere(parseFloat(m[4]), m[3]),
		)
		if c.Valid() {
			return c, true
		}
	}

	return types.Coords{}, false
}

func coordsFromURL(raw string) (types.Coords, bool) {
	u, err := url.Parse(strings.TrimRight(raw, ".,;)"))
	if err != nil {
		return types.Coords{}, false
	}

	host := u.Hostname()
	switch {
	case strings.Contains(host, "maps.apple.com"):
		return coordsFromApple(u)
	case (strings.Contains(host, "google.") || strings.Contains(host, "goo.gl")) &&
		strings.Contains(u.Path, "/maps"):
		return coordsFromGoogle(u)
	}
	return types.Coords{}, false
}

func coordsFromApple(u *url.URL) (types.Coords, bool) {
	if v := u.Query().Get("coordinate"); v != "" {
		if m := coordPairPattern.FindStringSubmatch(v); m != nil {
			return makeCoords(m[1], m[2])
		}
	}
	return types.Coords{}, false
}

func coordsFromGoogle(u *url.URL) (types.Coords, bool) {
	// Path form: .../maps/@49.123,-123.456,12z
	if m := googleAtPattern.FindStringSubmatch(u.Path); m != nil {
		if c, ok := makeCoords(m[1], m[2]); ok {
			return c, true
		}
	}

	// Query form: ?q=lat,lon or ?query=lat,lon
	q := u.Query()
	for _, key := range []string{"q", "query"} {
		if v := q.Get(key); v != "" {
			if m := coordPairPattern.FindStringSubmatch(v); m != nil {
				if c, ok := makeCoords(m[1], m[2]); ok {
					return c, true
				}
			}
		}
	}
	return types.Coords{}, false
}

func makeCoords(latStr, lonStr string) (types.Coords, bool) {
	c := types.NewCoords(parseFloat(latStr), parseFloat(lonStr))
	return c, c.Valid()
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// applyHemisphere resolves a hemisphere letter against a possibly signed
// value. The letter wins: "-50 N" means +50.
func applyHemisphere(value float64, hemi string) float64 {
	v := math.Abs(value)
	if h := strings.ToUpper(hemi); h == "S" || h == "W" {
		return -v
	}
	return v
}

func extractFireFilters(message string) types.FireFilters {
	var f types.FireFilters

	// "active" wins over "all" when both are present.
	seen := map[string]bool{}
	for _, m := range statusPattern.FindAllStringSubmatch(message, -1) {
		seen[strings.ToLower(m[1])] = true
	}
	for _, status := range []string{"active", "managed", "controlled", "out", "all"} {
		if seen[status] {
			f.Status = status
			break
		}
	}

	if m := distancePattern.FindStringSubmatch(message); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			f.DistanceKM = float64(n)
			if strings.EqualFold(m[2], "mi") {
				f.DistanceKM *= milesToKM
			}
		}
	}
	return f
}

func extractDataType(message string) types.DataType {
	if avyWordPattern.MatchString(message) {
		return types.DataTypeAvalanche
	}
	if fireWordPattern.MatchString(message) {
		return types.DataTypeFire
	}
	return types.DataTypeAuto
}

func extractAvalancheFilters(message string) types.AvalancheFilters {
	seen := map[string]bool{}
	for _, m := range forecastPattern.FindAllStringSubmatch(message, -1) {
		seen[strings.ToLower(m[1])] = true
	}
	// Priority order, not first match.
	for _, choice := range []string{"current", "today", "tomorrow", "all"} {
		if seen[choice] {
			return types.AvalancheFilters{Forecast: choice}
		}
	}
	return types.AvalancheFilters{}
}
