// Package reply renders the outbound message text: size-bounded fire entries
// and the fixed error catalog. Satellite SMS segments cap at 159 UTF-16 code
// units, so entries degrade through full, medium, and short renderings until
// they fit.
package reply

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"treksafer/internal/fires"
)

const smsLimit = 159

type entrySize int

const (
	sizeFull entrySize = iota
	sizeMedium
	sizeShort
)

// NoGPS is the reply when no coordinates could be extracted.
func NoGPS() string {
	return `TrekSafer ERROR: No GPS location found. Ensure device is setup to include location in sent message or manually include coordinates with "(lat, long)".`
}

// OutsideOfArea is the reply when no fire data source covers the coordinate.
func OutsideOfArea() string {
	return "TrekSafer ERROR: GPS coordinates outside of supported fire perimeter area. No data available."
}

// NoFires is the reply when the search found nothing within the effective
// radius. The radius is rounded the same way entry distances are, so a
// miles-derived value reads as a round number.
func NoFires(radiusKM float64) string {
	return fmt.Sprintf("No fires reported within a %skm radius of your location.", FormatDistance(radiusKM*1000))
}

// AvalancheOutsideOfArea is the reply when no avalanche provider covers the
// coordinate.
func AvalancheOutsideOfArea() string {
	return "TrekSafer ERROR: GPS coordinates outside of supported avalanche forecast area. No data available."
}

// NoForecast is the reply when the selected provider has no current bulletin.
func NoForecast() string {
	return "No avalanche forecast available for this location."
}

// AQILine renders the air quality prefix line for fire replies.
func AQILine(value int) string {
	return fmt.Sprintf("AQI: %d", value)
}

// FireEntries renders every perimeter and joins the entries with blank lines.
func FireEntries(items []fires.Perimeter) string {
	entries := make([]string, 0, len(items))
	for _, item := range items {
		entries = append(entries, FireEntry(item))
	}
	return strings.Join(entries, "\n\n")
}

// FireEntry renders one perimeter, stepping down the sizing ladder until the
// entry fits the SMS budget. A short entry is returned as-is even when it
// still exceeds the budget.
func FireEntry(p fires.Perimeter) string {
	for _, size := range []entrySize{sizeFull, sizeMedium, sizeShort} {
		entry := renderEntry(p, size)
		if messageLength(entry) <= smsLimit || size == sizeShort {
			return entry
		}
	}
	return "" // unreachable
}

func renderEntry(p fires.Perimeter, size entrySize) string {
	distDir := strings.TrimSpace(fmt.Sprintf("%skm %s", FormatDistance(p.Distance), p.Direction))

	var lines []string
	add := func(value, template string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf(template, value))
		}
	}

	switch size {
	case sizeFull:
		add(fullName(p, size), "Fire: %s")
		add(strings.TrimSpace(p.Location), "Location: %s")
		add(distDir, "%s")
		add(sizeHectares(p), "Size: %s ha")
		add(strings.TrimSpace(p.Status), "Status: %s")
	case sizeMedium:
		add(fullName(p, size), "Fire: %s")
		add(distDir, "%s")
		add(sizeHectares(p), "Size: %s ha")
	case sizeShort:
		add(strings.TrimSpace(p.Fire), "%s")
		add(distDir, "%s")
		add(sizeHectares(p), "%sha")
	}
	return strings.Join(lines, "\n")
}

// fullName renders the fire identifier: name plus code when they differ, the
// bare code otherwise. The short rendering always uses the bare code.
func fullName(p fires.Perimeter, size entrySize) string {
	code := strings.TrimSpace(p.Fire)
	name := strings.TrimSpace(p.Name)
	if name == "" || name == code {
		return code
	}
	if size == sizeFull {
		return fmt.Sprintf("%s (%s)", name, code)
	}
	return fmt.Sprintf("%s %s", name, code)
}

func sizeHectares(p fires.Perimeter) string {
	if !p.HasSize {
		return ""
	}
	return strconv.FormatFloat(math.Round(p.Size), 'f', -1, 64)
}

// FormatDistance renders meters as kilometers: one decimal below 10 km via
// round(km*10)/10 (plain round avoids the inconsistent half-even behavior at
// .x5 boundaries), whole kilometers at or above, trailing .0 stripped.
func FormatDistance(meters float64) string {
	km := meters / 1000
	if km < 10 {
		km = math.Round(km*10) / 10
	} else {
		km = math.Round(km)
	}
	return formatNumber(km)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// messageLength counts UTF-16 code units, the unit satellite SMS budgets are
// expressed in.
func messageLength(s string) int {
	return len(utf16.Encode([]rune(s)))
}
