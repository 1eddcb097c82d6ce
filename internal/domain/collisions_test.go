package domain

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKilledColumns = []string{
		"number_of_persons_killed",
		"number_of_pedestrians_killed",
		"number_of_cyclist_killed",
		"number_of_motorist_killed",
	}
	testInjuredColumns = []string{
		"number_of_persons_injured",
		"number_of_pedestrians_injured",
		"number_of_cyclist_injured",
		"number_of_motorist_injured",
	}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collisionsTable(rows [][]string) *RawTable {
	return &RawTable{
		Name: "collisions",
		Header: []string{
			"crash_date", "crash_time", "borough",
			"on_street_name", "off_street_name", "cross_street_name",
			"number_of_persons_killed", "number_of_pedestrians_killed",
			"number_of_cyclist_killed", "number_of_motorist_killed",
			"number_of_persons_injured", "number_of_pedestrians_injured",
			"number_of_cyclist_injured", "number_of_motorist_injured",
			"vehicle_type_code1",
		},
		Rows: rows,
	}
}

func TestCleanCollisions_Totals(t *testing.T) {
	table := collisionsTable([][]string{
		{"2024-04-26T00:00:00.000", "15:10", "BROOKLYN", "ATLANTIC AVENUE", "", "", "1", "0", "2", "0", "3", "1", "0", "2", "Sedan"},
	})

	records, stats, err := CleanCollisions(table, testKilledColumns, testInjuredColumns, discardLogger())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "Brooklyn", rec.Borough)
	assert.Equal(t, "2024-04-26", rec.CrashDate)
	assert.Equal(t, "15:10", rec.CrashTime)
	assert.Equal(t, "ATLANTIC AVENUE", rec.OnStreetName)
	assert.Equal(t, "Sedan", rec.VehicleType)
	assert.Equal(t, 3, rec.TotalFatalities, "1+0+2+0")
	assert.Equal(t, 6, rec.TotalInjuries, "3+1+0+2")
	assert.GreaterOrEqual(t, rec.TotalFatalities, 0)
	assert.GreaterOrEqual(t, rec.TotalInjuries, 0)
	assert.Equal(t, 1, stats.Kept)
}

func TestCleanCollisions_DuplicateAndBadDate(t *testing.T) {
	// Four rows: one duplicate pair, one unparseable date. Exactly two survive.
	dup := []string{"2024-04-26", "09:30", "QUEENS", "MAIN STREET", "", "", "0", "0", "0", "0", "1", "1", "0", "0", "Taxi"}
	table := collisionsTable([][]string{
		dup,
		append([]string(nil), dup...),
		{"not-a-date", "09:30", "QUEENS", "MAIN STREET", "", "", "0", "0", "0", "0", "0", "0", "0", "0", "Taxi"},
		{"2024-04-27", "", "", "BROADWAY", "", "", "0", "0", "0", "0", "0", "0", "0", "0", ""},
	})

	records, stats, err := CleanCollisions(table, testKilledColumns, testInjuredColumns, discardLogger())
	require.NoError(t, err)

	assert.Len(t, records, 2)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1, stats.InvalidDates)
	for _, rec := range records {
		assert.NotEmpty(t, rec.CrashDate, "no record may keep a null crash date")
	}
}

func TestCleanCollisions_BoroughDefaults(t *testing.T) {
	tests := []struct {
		name     string
		borough  string
		expected string
	}{
		{"missing", "", "Unknown"},
		{"upper case", "MANHATTAN", "Manhattan"},
		{"mixed case", "staten island", "Staten Island"},
		{"the bronx", "THE BRONX", "Bronx"},
		{"garbage", "QUEENS VILLAGE", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := collisionsTable([][]string{
				{"2024-04-26", "12:00", tt.borough, "", "", "", "0", "0", "0", "0", "0", "0", "0", "0", ""},
			})
			records, _, err := CleanCollisions(table, testKilledColumns, testInjuredColumns, discardLogger())
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, tt.expected, records[0].Borough)
		})
	}
}

func TestCleanCollisions_UnparseableTimeKeepsRow(t *testing.T) {
	table := collisionsTable([][]string{
		{"2024-04-26", "25:99", "BRONX", "", "", "", "0", "0", "0", "0", "0", "0", "0", "0", ""},
	})

	records, _, err := CleanCollisions(table, testKilledColumns, testInjuredColumns, discardLogger())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].CrashTime)
}

func TestCleanCollisions_CountCoercion(t *testing.T) {
	table := collisionsTable([][]string{
		{"2024-04-26", "12:00", "BRONX", "", "", "", "1.0", "", "junk", "-2", "2", "", "", "", ""},
	})

	records, _, err := CleanCollisions(table, testKilledColumns, testInjuredColumns, discardLogger())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].TotalFatalities, "float coerced, blanks/junk/negatives default to 0")
	assert.Equal(t, 2, records[0].TotalInjuries)
}

func TestCleanCollisions_WholeGroupMissingIsFatal(t *testing.T) {
	table := &RawTable{
		Name:   "collisions",
		Header: []string{"crash_date", "borough", "number_of_persons_injured"},
		Rows:   [][]string{{"2024-04-26", "QUEENS", "1"}},
	}

	_, _, err := CleanCollisions(table, testKilledColumns, testInjuredColumns, discardLogger())
	require.Error(t, err)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "collisions", schemaErr.Dataset)
	assert.Equal(t, testKilledColumns, schemaErr.Missing, "error must enumerate the missing names")
}

func TestCleanCollisions_PartialGroupMissingIsWarning(t *testing.T) {
	table := &RawTable{
		Name: "collisions",
		Header: []string{
			"crash_date", "borough",
			"number_of_persons_killed", "number_of_persons_injured",
		},
		Rows: [][]string{{"2024-04-26", "QUEENS", "2", "1"}},
	}

	records, stats, err := CleanCollisions(table, testKilledColumns, testInjuredColumns, discardLogger())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].TotalFatalities)
	assert.Equal(t, 1, records[0].TotalInjuries)
	assert.Len(t, stats.MissingKilled, 3)
	assert.Len(t, stats.MissingInjured, 3)
}

func TestParseCrashDate_Layouts(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
		ok       bool
	}{
		{"2024-04-26T15:04:05.000", "2024-04-26", true},
		{"2024-04-26T15:04:05", "2024-04-26", true},
		{"2024-04-26", "2024-04-26", true},
		{"04/26/2024", "2024-04-26", true},
		{"", "", false},
		{"26-04-2024", "", false},
	}

	for _, tt := range tests {
		got, ok := parseCrashDate(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.expected, got, tt.raw)
	}
}
