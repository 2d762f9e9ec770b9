package fires

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"treksafer/internal/config"
	"treksafer/internal/geo"
)

const acresPerHectare = 2.4710538147

// transforms are the per-field conversions a mapping may declare.
var transforms = map[string]func(string) (string, bool){
	"acres_to_hectares": acresToHectares,
}

func acresToHectares(raw string) (string, bool) {
	acres, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", false
	}
	ha := math.Round(acres/acresPerHectare*100) / 100
	return strconv.FormatFloat(ha, 'f', -1, 64), true
}

var (
	templateFieldPattern = regexp.MustCompile(`\{(\w+)\}`)

	// Substituted row values must stay inside this set; anything that could
	// break the URL structure skips enrichment for the row.
	safeFieldValuePattern = regexp.MustCompile(`^[A-Za-z0-9 ._-]+$`)
)

// normalizeRow builds a Perimeter from a raw shapefile record using the
// source's field mapping, transforms, status map, and optional REST
// enrichment.
func (f *Finder) normalizeRow(source config.DataSource, rec geo.Record, distance float64, direction string) Perimeter {
	values := make(map[string]string)
	for key, attr := range source.Mapping.Fields {
		raw := strings.TrimSpace(rec.Attr(attr))
		if raw == "" {
			continue
		}
		values[key] = f.applyTransform(source, key, raw)
	}

	if source.Mapping.API != nil {
		f.enrich(source, rec, values)
	}

	p := Perimeter{
		Fire:      values["Fire"],
		Name:      values["Name"],
		Location:  values["Location"],
		Status:    values["Status"],
		Distance:  distance,
		Direction: direction,
	}
	if raw, ok := values["Size"]; ok {
		if size, err := strconv.ParseFloat(raw, 64); err == nil {
			p.Size = size
			p.HasSize = true
		}
	}
	p.StatusLevel = resolveStatusLevel(source.StatusMap, p.Status)
	if p.StatusLevel == statusLevelUnknown && p.Status != "" {
		f.logger.Warn("unknown fire status for source",
			"source", source.Location,
			"status", p.Status,
			"fire", p.Fire,
		)
	}
	return p
}

func (f *Finder) applyTransform(source config.DataSource, key, raw string) string {
	name := source.Mapping.Transforms[key]
	if name == "" {
		return raw
	}
	fn, ok := transforms[name]
	if !ok {
		f.logger.Warn("unknown transform in mapping", "source", source.Location, "transform", name)
		return raw
	}
	out, ok := fn(raw)
	if !ok {
		f.logger.Warn("transform failed, keeping raw value",
			"source", source.Location,
			"transform", name,
			"value", raw,
		)
		return raw
	}
	return out
}

// enrich expands the source's API URL template from row attributes, performs
// a cached GET, and merges the mapped response fields. Any failure leaves the
// base record intact.
func (f *Finder) enrich(source config.DataSource, rec geo.Record, values map[string]string) {
	api := source.Mapping.API

	url := api.URL
	for _, m := range templateFieldPattern.FindAllStringSubmatch(api.URL, -1) {
		field := m[1]
		value := strings.TrimSpace(rec.Attr(field))
		if !safeFieldValuePattern.MatchString(value) {
			f.logger.Warn("unsafe row value in enrichment template, skipping enrichment",
				"source", source.Location,
				"field", field,
				"value", value,
			)
			return
		}
		url = strings.ReplaceAll(url, m[0], value)
	}

	body, err := f.http.Get(url)
	if err != nil {
		f.logger.Warn("fire enrichment request failed",
			"source", source.Location,
			"url", url,
			"fire", values["Fire"],
			"error", err,
		)
		return
	}

	var response map[string]any
	if err := json.Unmarshal(body, &response); err != nil {
		f.logger.Warn("fire enrichment response is not valid JSON",
			"source", source.Location,
			"url", url,
			"error", err,
		)
		return
	}

	for key, field := range api.Fields {
		raw, ok := response[field]
		if !ok || raw == nil {
			continue
		}
		values[key] = f.applyTransform(source, key, stringify(raw))
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// resolveStatusLevel maps a raw source status string onto the urgency scale
// through the source's status_map.
func resolveStatusLevel(statusMap map[string][]string, raw string) int {
	if raw == "" {
		return statusLevelUnknown
	}
	for category, rawValues := range statusMap {
		level, ok := statusLevels[category]
		if !ok {
			continue
		}
		for _, v := range rawValues {
			if strings.EqualFold(v, raw) {
				return level
			}
		}
	}
	return statusLevelUnknown
}
