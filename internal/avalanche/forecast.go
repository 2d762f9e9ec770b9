package avalanche

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// DangerRatings holds the display strings for the three elevation bands of
// one forecast day.
type DangerRatings struct {
	Alpine        string
	Treeline      string
	BelowTreeline string
}

// Problem describes one avalanche problem from a bulletin.
type Problem struct {
	Type       string
	Elevations []string
	Aspects    []string
	Likelihood string
	SizeMin    string
	SizeMax    string
}

// Forecast is the provider-agnostic bulletin.
type Forecast struct {
	Region     string
	DateIssued string
	Timezone   string                   // IANA name
	Forecasts  map[string]DangerRatings // keyed by YYYY-MM-DD
	Problems   []Problem
}

// location resolves the forecast timezone, falling back to UTC when the name
// is unknown.
func (f *Forecast) location() *time.Location {
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FilterDates resolves which forecast dates a filter selects, evaluated at
// now in the forecast's timezone. "current" rolls over to tomorrow at the
// cutoff hour; unrecognized filters are treated as "current".
func (f *Forecast) FilterDates(filter string, cutoffHour int, now time.Time) []string {
	local := now.In(f.location())
	today := local.Format(dateLayout)
	tomorrow := local.AddDate(0, 0, 1).Format(dateLayout)

	switch filter {
	case "today":
		return []string{today}
	case "tomorrow":
		return []string{tomorrow}
	case "all":
		dates := make([]string, 0, len(f.Forecasts))
		for d := range f.Forecasts {
			dates = append(dates, d)
		}
		sort.Strings(dates)
		return dates
	default: // "current"
		if local.Hour() >= cutoffHour {
			return []string{tomorrow}
		}
		return []string{today}
	}
}

// Format renders the forecast for the selected dates: region header, a Date
// line for single-date renderings (Issued otherwise), per-date danger
// ratings, and one trailing Problems block shared across dates.
func (f *Forecast) Format(dates []string) string {
	parts := []string{fmt.Sprintf("Avalanche Forecast: %s", f.Region)}

	if len(dates) == 1 {
		parts = append(parts, fmt.Sprintf("Date: %s", dates[0]))
	} else {
		parts = append(parts, fmt.Sprintf("Issued: %s", f.DateIssued))
	}
	parts = append(parts, "")

	indent := "  "
	if len(dates) > 1 {
		indent = "    "
	}

	for _, date := range dates {
		ratings, ok := f.Forecasts[date]
		if !ok {
			continue
		}
		if len(dates) > 1 {
			parts = append(parts, fmt.Sprintf("Date: %s", date))
		}
		parts = append(parts,
			"Danger Ratings:",
			fmt.Sprintf("%sAlpine: %s", indent, ratings.Alpine),
			fmt.Sprintf("%sTreeline: %s", indent, ratings.Treeline),
			fmt.Sprintf("%sBelow Treeline: %s", indent, ratings.BelowTreeline),
			"",
		)
	}

	if len(f.Problems) > 0 {
		parts = append(parts, f.formatProblems()...)
	}
	return strings.TrimRight(strings.Join(parts, "\n"), "\n")
}

func (f *Forecast) formatProblems() []string {
	parts := []string{"Problems:"}
	for _, p := range f.Problems {
		parts = append(parts, fmt.Sprintf("  • %s", p.Type))
		if len(p.Elevations) > 0 {
			parts = append(parts, fmt.Sprintf("    Elevations: %s", strings.Join(p.Elevations, ", ")))
		}
		if len(p.Aspects) > 0 {
			parts = append(parts, fmt.Sprintf("    Aspects: %s", strings.Join(p.Aspects, ", ")))
		}
		if p.Likelihood != "" && p.SizeMin != "" {
			parts = append(parts, fmt.Sprintf("    %s, Size %s-%s", p.Likelihood, p.SizeMin, p.SizeMax))
		}
	}
	return parts
}
