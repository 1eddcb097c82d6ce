package domain

import (
	"fmt"
	"strings"
)

// Canonical borough names plus the sentinel for unresolved rows.
const (
	BoroughManhattan    = "Manhattan"
	BoroughBronx        = "Bronx"
	BoroughBrooklyn     = "Brooklyn"
	BoroughQueens       = "Queens"
	BoroughStatenIsland = "Staten Island"
	BoroughUnknown      = "Unknown"
)

// CanonicalBoroughs lists the five boroughs in code order (1-5).
var CanonicalBoroughs = []string{
	BoroughManhattan,
	BoroughBronx,
	BoroughBrooklyn,
	BoroughQueens,
	BoroughStatenIsland,
}

// RawTable is an in-memory tabular dataset as read from a CSV source.
// Header names are matched case-insensitively after trimming.
type RawTable struct {
	Name   string
	Header []string
	Rows   [][]string
}

// ColumnIndex maps normalized (lower-cased, trimmed) header names to their
// positions. Later duplicates of a header name are ignored.
func (t *RawTable) ColumnIndex() map[string]int {
	idx := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, ok := idx[name]; !ok {
			idx[name] = i
		}
	}
	return idx
}

// Field returns the trimmed value of the named column for a row, or "" when
// the column is absent or the row is short.
func Field(row []string, idx map[string]int, column string) string {
	i, ok := idx[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// CollisionRecord is one cleaned crash report.
type CollisionRecord struct {
	Borough         string `json:"borough"`
	OnStreetName    string `json:"on_street_name"`
	OffStreetName   string `json:"off_street_name"`
	CrossStreetName string `json:"cross_street_name"`
	CrashDate       string `json:"crash_date"` // YYYY-MM-DD, never empty
	CrashTime       string `json:"crash_time"` // HH:MM, empty when unparseable
	VehicleType     string `json:"vehicle_type"`
	TotalFatalities int    `json:"total_fatalities"`
	TotalInjuries   int    `json:"total_injuries"`
}

// PopulationRecord is one aggregated borough population row.
type PopulationRecord struct {
	Borough         string `json:"borough"`
	TotalPopulation int64  `json:"total_population"`
}

// BoroughSummary aggregates collision records per borough.
type BoroughSummary struct {
	Borough           string  `json:"borough"`
	TotalIncidents    int     `json:"total_incidents"`
	TotalFatalities   int     `json:"total_fatalities"`
	TotalInjuries     int     `json:"total_injuries"`
	AverageFatalities float64 `json:"average_fatalities"`
}

// CombinedSummary merges population and collision aggregates for one borough.
type CombinedSummary struct {
	Borough           string  `json:"borough"`
	TotalPopulation   int64   `json:"total_population"`
	TotalIncidents    int     `json:"total_incidents"`
	TotalFatalities   int     `json:"total_fatalities"`
	TotalInjuries     int     `json:"total_injuries"`
	AverageFatalities float64 `json:"average_fatalities"`
	FatalityRiskPct   float64 `json:"fatality_risk_percentage"`
	InjuryRiskPct     float64 `json:"injury_risk_percentage"`
	FatalitiesPer100K float64 `json:"fatalities_per_100k"`
}

// SchemaError reports expected columns absent from a source dataset after
// header normalization. Always fatal.
type SchemaError struct {
	Dataset string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing expected column(s): %s", e.Dataset, strings.Join(e.Missing, ", "))
}

// CanonicalBorough normalizes a raw borough value to one of the five
// canonical names, or Unknown when it matches none of them.
func CanonicalBorough(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "MANHATTAN":
		return BoroughManhattan
	case "BRONX", "THE BRONX":
		return BoroughBronx
	case "BROOKLYN":
		return BoroughBrooklyn
	case "QUEENS":
		return BoroughQueens
	case "STATEN ISLAND":
		return BoroughStatenIsland
	default:
		return BoroughUnknown
	}
}

// BoroughFromCode maps a borough code (1-5) to its canonical name. Any other
// value is Unknown.
func BoroughFromCode(code string) string {
	switch strings.TrimSpace(code) {
	case "1":
		return BoroughManhattan
	case "2":
		return BoroughBronx
	case "3":
		return BoroughBrooklyn
	case "4":
		return BoroughQueens
	case "5":
		return BoroughStatenIsland
	default:
		return BoroughUnknown
	}
}

// NormalizeStreetName prepares a street name for reference comparison:
// trimmed, upper-cased, inner whitespace collapsed. Returns "" for blank input.
func NormalizeStreetName(raw string) string {
	fields := strings.Fields(strings.ToUpper(raw))
	return strings.Join(fields, " ")
}
