package domain

import (
	"sort"
	"strconv"
	"strings"
)

// RawPopulationColumn is the population column in the community-district
// source. Renamed to "population" during cleaning.
const RawPopulationColumn = "_2010_population"

// PopulationCleanStats counts what happened to the source rows.
type PopulationCleanStats struct {
	Input          int
	Duplicates     int
	InvalidValues  int // rows dropped for unparseable population
	UnknownBorough int // rows dropped for an unrecognized borough
	Kept           int // borough rows in the output, including the Unknown placeholder
}

// CleanPopulation aggregates district-level population rows per borough.
// Both the borough column and the raw population column are required; their
// absence is a fatal SchemaError naming them. Unparseable population values
// and rows with an unrecognized borough are dropped before summation. The
// output always contains exactly one row per canonical borough, in code
// order, followed by an Unknown placeholder with total_population 0.
func CleanPopulation(table *RawTable) ([]PopulationRecord, PopulationCleanStats, error) {
	idx := table.ColumnIndex()
	stats := PopulationCleanStats{Input: len(table.Rows)}

	var missing []string
	if _, ok := idx["borough"]; !ok {
		missing = append(missing, "borough")
	}
	if _, ok := idx[RawPopulationColumn]; !ok {
		missing = append(missing, RawPopulationColumn)
	}
	if len(missing) > 0 {
		return nil, stats, &SchemaError{Dataset: "population", Missing: missing}
	}

	totals := make(map[string]int64, len(CanonicalBoroughs))
	seen := make(map[string]struct{}, len(table.Rows))

	for _, row := range table.Rows {
		key := strings.Join(row, "\x1f")
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		value, ok := parsePopulation(Field(row, idx, RawPopulationColumn))
		if !ok {
			stats.InvalidValues++
			continue
		}

		borough := CanonicalBorough(Field(row, idx, "borough"))
		if borough == BoroughUnknown {
			stats.UnknownBorough++
			continue
		}
		totals[borough] += value
	}

	records := make([]PopulationRecord, 0, len(CanonicalBoroughs)+1)
	for _, borough := range CanonicalBoroughs {
		records = append(records, PopulationRecord{Borough: borough, TotalPopulation: totals[borough]})
	}
	// Placeholder so downstream joins never miss the Unknown key.
	records = append(records, PopulationRecord{Borough: BoroughUnknown, TotalPopulation: 0})

	stats.Kept = len(records)
	return records, stats, nil
}

// parsePopulation coerces a population value to a non-negative int64.
// Thousands separators are stripped; anything else unparseable fails.
func parsePopulation(raw string) (int64, bool) {
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int64(f), true
}

// SortPopulation orders records in canonical borough code order with Unknown
// last, for deterministic output.
func SortPopulation(records []PopulationRecord) {
	rank := boroughRank()
	sort.SliceStable(records, func(i, j int) bool {
		return rank[records[i].Borough] < rank[records[j].Borough]
	})
}

func boroughRank() map[string]int {
	rank := make(map[string]int, len(CanonicalBoroughs)+1)
	for i, b := range CanonicalBoroughs {
		rank[b] = i
	}
	rank[BoroughUnknown] = len(CanonicalBoroughs)
	return rank
}
