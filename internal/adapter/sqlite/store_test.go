package sqlite

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoopdata/nyc-collision-etl/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCollisions() []domain.CollisionRecord {
	return []domain.CollisionRecord{
		{
			Borough: "Brooklyn", OnStreetName: "ATLANTIC AVENUE",
			CrashDate: "2024-04-26", CrashTime: "15:10",
			VehicleType: "Sedan", TotalFatalities: 1, TotalInjuries: 3,
		},
		{
			Borough: "Unknown", CrashDate: "2024-04-27",
			TotalFatalities: 0, TotalInjuries: 0,
		},
	}
}

// dumpTable renders every row of a table as pipe-joined text, in rowid order.
func dumpTable(t *testing.T, dbPath, table string) string {
	t.Helper()

	conn, err := sqlite.OpenConn(dbPath, 0)
	require.NoError(t, err)
	defer conn.Close()

	var b strings.Builder
	err = sqlitex.ExecTransient(conn, "SELECT * FROM "+table+" ORDER BY rowid", func(stmt *sqlite.Stmt) error {
		for i := 0; i < stmt.ColumnCount(); i++ {
			if i > 0 {
				b.WriteByte('|')
			}
			b.WriteString(stmt.ColumnText(i))
		}
		b.WriteByte('\n')
		return nil
	})
	require.NoError(t, err)
	return b.String()
}

func TestReplaceCollisions_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, discardLogger())

	require.NoError(t, store.ReplaceCollisions(context.Background(), testCollisions()))

	dump := dumpTable(t, filepath.Join(dir, CollisionsDB), CollisionsTable)
	assert.Equal(t,
		"Brooklyn|ATLANTIC AVENUE|||2024-04-26|15:10|Sedan|1|3\n"+
			"Unknown||||2024-04-27|||0|0\n",
		dump)
}

func TestReplace_IsReplaceNotAppend(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, discardLogger())
	ctx := context.Background()

	require.NoError(t, store.ReplacePopulation(ctx, []domain.PopulationRecord{
		{Borough: "Queens", TotalPopulation: 111},
		{Borough: "Unknown", TotalPopulation: 0},
	}))
	require.NoError(t, store.ReplacePopulation(ctx, []domain.PopulationRecord{
		{Borough: "Queens", TotalPopulation: 222},
		{Borough: "Unknown", TotalPopulation: 0},
	}))

	dump := dumpTable(t, filepath.Join(dir, PopulationDB), PopulationTable)
	assert.Equal(t, "Queens|222\nUnknown|0\n", dump)
}

func TestReplace_RerunIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, discardLogger())
	ctx := context.Background()

	records := testCollisions()
	require.NoError(t, store.ReplaceCollisions(ctx, records))
	first := dumpTable(t, filepath.Join(dir, CollisionsDB), CollisionsTable)

	require.NoError(t, store.ReplaceCollisions(ctx, records))
	second := dumpTable(t, filepath.Join(dir, CollisionsDB), CollisionsTable)

	if first != second {
		edits := myers.ComputeEdits(span.URIFromPath("collisions"), first, second)
		t.Fatalf("rerun produced different table contents:\n%s",
			fmt.Sprint(gotextdiff.ToUnified("first", "second", first, edits)))
	}
}

func TestReplaceSummary(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, discardLogger())

	summaries := []domain.CombinedSummary{
		{
			Borough: "Brooklyn", TotalPopulation: 2500000,
			TotalIncidents: 300, TotalFatalities: 12, TotalInjuries: 90,
			AverageFatalities: 0.04, FatalityRiskPct: 4, InjuryRiskPct: 30,
			FatalitiesPer100K: 0.48,
		},
		{Borough: "Staten Island", TotalPopulation: 470000},
	}
	require.NoError(t, store.ReplaceSummary(context.Background(), summaries))

	dump := dumpTable(t, filepath.Join(dir, CombinedDB), SummaryTable)
	lines := strings.Split(strings.TrimSuffix(dump, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Brooklyn|2500000|300|12|90|"))
	assert.True(t, strings.HasPrefix(lines[1], "Staten Island|470000|0|0|0|"))

	// Zero-incident borough persists 0 ratios, never NaN.
	assert.Contains(t, lines[1], "|0.0|0.0|0.0")
}

func TestReplace_SeparateDatabaseFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, discardLogger())
	ctx := context.Background()

	require.NoError(t, store.ReplaceCollisions(ctx, testCollisions()))
	require.NoError(t, store.ReplacePopulation(ctx, []domain.PopulationRecord{{Borough: "Bronx", TotalPopulation: 1}}))
	require.NoError(t, store.ReplaceSummary(ctx, []domain.CombinedSummary{{Borough: "Bronx"}}))

	for _, db := range []string{CollisionsDB, PopulationDB, CombinedDB} {
		assert.FileExists(t, filepath.Join(dir, db))
	}
}
