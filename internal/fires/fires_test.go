package fires

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"treksafer/internal/config"
	"treksafer/internal/geo"
	"treksafer/internal/types"
)

type mockHTTPClient struct {
	responses map[string][]byte
	err       error
	calls     []string
}

func (m *mockHTTPClient) Get(url string) ([]byte, error) {
	m.calls = append(m.calls, url)
	if m.err != nil {
		return nil, m.err
	}
	body, ok := m.responses[url]
	if !ok {
		return nil, errors.New("unexpected url: " + url)
	}
	return body, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSettings() *config.Settings {
	return &config.Settings{
		FireRadius: 50,
		MaxRadius:  100,
		FireStatus: "controlled",
		FireSize:   1,
	}
}

func newTestFinder(settings *config.Settings, http *mockHTTPClient) *Finder {
	if http == nil {
		http = &mockHTTPClient{}
	}
	return NewFinder(settings, nil, http, testLogger())
}

func TestEffectiveRadiusKM(t *testing.T) {
	tests := []struct {
		name     string
		filters  types.FireFilters
		expected float64
	}{
		{
			name:     "default radius",
			filters:  types.FireFilters{},
			expected: 50,
		},
		{
			name:     "user radius",
			filters:  types.FireFilters{DistanceKM: 75},
			expected: 75,
		},
		{
			name:     "clamped to max radius",
			filters:  types.FireFilters{DistanceKM: 250},
			expected: 100,
		},
	}

	f := newTestFinder(testSettings(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.EffectiveRadiusKM(tt.filters); got != tt.expected {
				t.Errorf("EffectiveRadiusKM = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFilterStatus(t *testing.T) {
	items := []Perimeter{
		{Fire: "F1", StatusLevel: StatusActive},
		{Fire: "F2", StatusLevel: StatusManaged},
		{Fire: "F3", StatusLevel: StatusControlled},
		{Fire: "F4", StatusLevel: StatusOut},
		{Fire: "F5", StatusLevel: statusLevelUnknown},
	}

	tests := []struct {
		name     string
		status   string
		expected []string
	}{
		{
			name:     "active keeps only active",
			status:   "active",
			expected: []string{"F1"},
		},
		{
			name:     "managed keeps active and managed",
			status:   "managed",
			expected: []string{"F1", "F2"},
		},
		{
			name:     "controlled keeps everything but out",
			status:   "controlled",
			expected: []string{"F1", "F2", "F3"},
		},
		{
			name:     "out keeps all known statuses",
			status:   "out",
			expected: []string{"F1", "F2", "F3", "F4"},
		},
		{
			name:     "all disables filtering",
			status:   "all",
			expected: []string{"F1", "F2", "F3", "F4", "F5"},
		},
		{
			name:     "unknown falls back to default",
			status:   "bogus",
			expected: []string{"F1", "F2", "F3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFinder(testSettings(), nil)
			input := make([]Perimeter, len(items))
			copy(input, items)

			got := f.filterStatus(input, tt.status, config.DataSource{Location: "BC"})
			if len(got) != len(tt.expected) {
				t.Fatalf("kept %d records, want %d", len(got), len(tt.expected))
			}
			for i, want := range tt.expected {
				if got[i].Fire != want {
					t.Errorf("kept[%d] = %q, want %q", i, got[i].Fire, want)
				}
			}
		})
	}
}

func TestFilterSize(t *testing.T) {
	items := []Perimeter{
		{Fire: "big", Size: 120, HasSize: true},
		{Fire: "exact", Size: 1, HasSize: true},
		{Fire: "small", Size: 0.4, HasSize: true},
		{Fire: "unknown"},
	}

	got := filterSize(items, 1)
	if len(got) != 2 {
		t.Fatalf("kept %d records, want 2", len(got))
	}
	if got[0].Fire != "big" || got[1].Fire != "exact" {
		t.Errorf("kept = [%q, %q], want [big, exact]", got[0].Fire, got[1].Fire)
	}
}

func TestNormalizeRow(t *testing.T) {
	source := config.DataSource{
		Location: "BC",
		Mapping: config.Mapping{
			Fields: map[string]string{
				"Fire":   "FIRE_NUM",
				"Size":   "FIRE_SZ_HA",
				"Status": "FIRE_STAT",
			},
		},
		StatusMap: map[string][]string{
			"active":     {"OUT_CNTRL"},
			"controlled": {"UNDR_CNTRL"},
		},
	}

	rec := geo.Record{Attrs: map[string]string{
		"FIRE_NUM":   "K52125",
		"FIRE_SZ_HA": "119.6",
		"FIRE_STAT":  "OUT_CNTRL",
	}}

	f := newTestFinder(testSettings(), nil)
	p := f.normalizeRow(source, rec, 3200, "NW")

	if p.Fire != "K52125" {
		t.Errorf("Fire = %q, want K52125", p.Fire)
	}
	if !p.HasSize || p.Size != 119.6 {
		t.Errorf("Size = (%v, %v), want (119.6, true)", p.Size, p.HasSize)
	}
	if p.Status != "OUT_CNTRL" || p.StatusLevel != StatusActive {
		t.Errorf("Status = (%q, %d), want (OUT_CNTRL, %d)", p.Status, p.StatusLevel, StatusActive)
	}
	if p.Distance != 3200 || p.Direction != "NW" {
		t.Errorf("Distance/Direction = (%v, %q), want (3200, NW)", p.Distance, p.Direction)
	}
}

func TestNormalizeRowUnknownStatus(t *testing.T) {
	source := config.DataSource{
		Location:  "BC",
		Mapping:   config.Mapping{Fields: map[string]string{"Status": "FIRE_STAT"}},
		StatusMap: map[string][]string{"active": {"OUT_CNTRL"}},
	}
	rec := geo.Record{Attrs: map[string]string{"FIRE_STAT": "Mystery"}}

	f := newTestFinder(testSettings(), nil)
	p := f.normalizeRow(source, rec, 0, "N")
	if p.StatusLevel != statusLevelUnknown {
		t.Errorf("StatusLevel = %d, want unknown", p.StatusLevel)
	}
}

func TestAcresToHectares(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "round number", input: "247.10538147", expected: "100", ok: true},
		{name: "fractional", input: "10", expected: "4.05", ok: true},
		{name: "not a number", input: "lots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := acresToHectares(tt.input)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.expected {
				t.Errorf("acresToHectares(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestEnrichMergesAPIFields(t *testing.T) {
	apiURL := "https://example.com/incident/K52125"
	http := &mockHTTPClient{responses: map[string][]byte{
		apiURL: []byte(`{"incidentName": "Casper Creek", "geographicDescription": "5 km W of Lillooet"}`),
	}}

	source := config.DataSource{
		Location: "BC",
		Mapping: config.Mapping{
			Fields: map[string]string{"Fire": "FIRE_NUM"},
			API: &config.APIEnrichment{
				URL: "https://example.com/incident/{FIRE_NUM}",
				Fields: map[string]string{
					"Name":     "incidentName",
					"Location": "geographicDescription",
				},
			},
		},
	}
	rec := geo.Record{Attrs: map[string]string{"FIRE_NUM": "K52125"}}

	f := newTestFinder(testSettings(), http)
	p := f.normalizeRow(source, rec, 0, "N")

	if p.Name != "Casper Creek" {
		t.Errorf("Name = %q, want Casper Creek", p.Name)
	}
	if p.Location != "5 km W of Lillooet" {
		t.Errorf("Location = %q, want the geographic description", p.Location)
	}
}

func TestEnrichRejectsUnsafeTemplateValues(t *testing.T) {
	http := &mockHTTPClient{responses: map[string][]byte{}}
	source := config.DataSource{
		Location: "BC",
		Mapping: config.Mapping{
			Fields: map[string]string{"Fire": "FIRE_NUM"},
			API: &config.APIEnrichment{
				URL:    "https://example.com/incident/{FIRE_NUM}",
				Fields: map[string]string{"Name": "incidentName"},
			},
		},
	}
	rec := geo.Record{Attrs: map[string]string{"FIRE_NUM": "../../etc/passwd"}}

	f := newTestFinder(testSettings(), http)
	p := f.normalizeRow(source, rec, 0, "N")

	if len(http.calls) != 0 {
		t.Errorf("enrichment fetched %v despite unsafe template value", http.calls)
	}
	if p.Name != "" {
		t.Errorf("Name = %q, want empty", p.Name)
	}
}

func TestEnrichFailureKeepsBaseRecord(t *testing.T) {
	http := &mockHTTPClient{err: errors.New("gateway timeout")}
	source := config.DataSource{
		Location: "BC",
		Mapping: config.Mapping{
			Fields: map[string]string{"Fire": "FIRE_NUM"},
			API: &config.APIEnrichment{
				URL:    "https://example.com/incident/{FIRE_NUM}",
				Fields: map[string]string{"Name": "incidentName"},
			},
		},
	}
	rec := geo.Record{Attrs: map[string]string{"FIRE_NUM": "K52125"}}

	f := newTestFinder(testSettings(), http)
	p := f.normalizeRow(source, rec, 0, "N")

	if p.Fire != "K52125" {
		t.Errorf("Fire = %q, want the base record intact", p.Fire)
	}
}
