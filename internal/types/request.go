package types

// DataType selects which report a request is asking for.
type DataType string

const (
	DataTypeAuto      DataType = "auto"
	DataTypeFire      DataType = "fire"
	DataTypeAvalanche DataType = "avalanche"
)

// FireFilters carries the per-request overrides recognized by the parser.
// Zero values mean "not supplied"; defaults come from settings at merge time.
type FireFilters struct {
	Status     string  // active, managed, controlled, out, all
	DistanceKM float64 // 0 = not supplied
}

// AvalancheFilters carries forecast-date selection for avalanche requests.
type AvalancheFilters struct {
	Forecast string // current, today, tomorrow, all
}

// ParsedRequest is the structured form of one inbound message.
type ParsedRequest struct {
	Coords    Coords
	DataType  DataType
	Fire      FireFilters
	Avalanche AvalancheFilters
}
