package domain

import (
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Accepted crash date layouts. Socrata exports floating timestamps; older
// snapshots use plain dates or US-style dates.
var crashDateLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// CollisionCleanStats counts what happened to the source rows during cleaning.
type CollisionCleanStats struct {
	Input          int
	Duplicates     int
	InvalidDates   int
	Kept           int
	MissingKilled  []string // expected killed columns absent from the source
	MissingInjured []string // expected injured columns absent from the source
}

// CleanCollisions normalizes the raw collisions table into CollisionRecords:
// exact duplicates removed, missing boroughs defaulted to Unknown, dates
// validated, count columns coerced, and row-wise totals computed.
//
// killedColumns and injuredColumns are the expected count column names. A
// fully absent group is a fatal SchemaError enumerating the missing names; a
// partial gap is logged and the absent columns contribute 0.
func CleanCollisions(table *RawTable, killedColumns, injuredColumns []string, logger *slog.Logger) ([]CollisionRecord, CollisionCleanStats, error) {
	idx := table.ColumnIndex()
	stats := CollisionCleanStats{Input: len(table.Rows)}

	stats.MissingKilled = missingColumns(idx, killedColumns)
	stats.MissingInjured = missingColumns(idx, injuredColumns)
	if len(stats.MissingKilled) == len(killedColumns) {
		return nil, stats, &SchemaError{Dataset: "collisions", Missing: stats.MissingKilled}
	}
	if len(stats.MissingInjured) == len(injuredColumns) {
		return nil, stats, &SchemaError{Dataset: "collisions", Missing: stats.MissingInjured}
	}
	if n := len(stats.MissingKilled); n > 0 {
		logger.Warn("collisions source missing some killed columns, defaulting to 0",
			"count", n, "columns", strings.Join(stats.MissingKilled, ","))
	}
	if n := len(stats.MissingInjured); n > 0 {
		logger.Warn("collisions source missing some injured columns, defaulting to 0",
			"count", n, "columns", strings.Join(stats.MissingInjured, ","))
	}

	records := make([]CollisionRecord, 0, len(table.Rows))
	seen := make(map[string]struct{}, len(table.Rows))

	for _, row := range table.Rows {
		key := strings.Join(row, "\x1f")
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		date, ok := parseCrashDate(Field(row, idx, "crash_date"))
		if !ok {
			stats.InvalidDates++
			continue
		}

		rec := CollisionRecord{
			Borough:         boroughOrUnknown(Field(row, idx, "borough")),
			OnStreetName:    Field(row, idx, "on_street_name"),
			OffStreetName:   Field(row, idx, "off_street_name"),
			CrossStreetName: Field(row, idx, "cross_street_name"),
			CrashDate:       date,
			CrashTime:       parseCrashTime(Field(row, idx, "crash_time")),
			VehicleType:     vehicleType(row, idx),
		}
		for _, col := range killedColumns {
			rec.TotalFatalities += parseCount(Field(row, idx, col))
		}
		for _, col := range injuredColumns {
			rec.TotalInjuries += parseCount(Field(row, idx, col))
		}

		records = append(records, rec)
	}

	stats.Kept = len(records)
	return records, stats, nil
}

func missingColumns(idx map[string]int, expected []string) []string {
	var missing []string
	for _, col := range expected {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// boroughOrUnknown defaults blank borough values to Unknown and canonicalizes
// the rest. Values outside the five boroughs also become Unknown.
func boroughOrUnknown(raw string) string {
	if raw == "" {
		return BoroughUnknown
	}
	return CanonicalBorough(raw)
}

// parseCrashDate returns the calendar date as YYYY-MM-DD, or ok=false when no
// accepted layout matches.
func parseCrashDate(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	for _, layout := range crashDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// parseCrashTime validates an HH:MM value. Unparseable times are kept as ""
// without dropping the row.
func parseCrashTime(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := time.Parse("15:04", raw)
	if err != nil {
		// Single-digit hours appear in older snapshots ("9:35").
		t, err = time.Parse("3:04", raw)
		if err != nil {
			return ""
		}
	}
	return t.Format("15:04")
}

// parseCount coerces a count column value to a non-negative int; missing,
// unparseable, and negative values become 0. Socrata occasionally emits
// float-formatted integers ("1.0").
func parseCount(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			return 0
		}
		n = int(f)
	}
	if n < 0 {
		return 0
	}
	return n
}

// vehicleType retains the primary per-vehicle detail column under its
// canonical name. Both historical spellings of the source column are accepted.
func vehicleType(row []string, idx map[string]int) string {
	if v := Field(row, idx, "vehicle_type_code1"); v != "" {
		return v
	}
	return Field(row, idx, "vehicle_type_code_1")
}
