// Package sqlite persists the normalized tables. Each logical dataset gets
// its own database file under the data directory; every write replaces the
// table wholesale so reruns are idempotent.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"

	"github.com/stoopdata/nyc-collision-etl/internal/domain"
)

// Database file and table names, one store per logical dataset.
const (
	CollisionsDB    = "collisions.db"
	PopulationDB    = "population.db"
	CombinedDB      = "combined.db"
	CollisionsTable = "collisions"
	PopulationTable = "population"
	SummaryTable    = "borough_summary"
)

// Store writes normalized tables to SQLite. One connection is opened and
// closed around each table write; no transaction spans multiple tables.
type Store struct {
	dataDir string
	logger  *slog.Logger
}

// NewStore creates a store rooted at dataDir.
func NewStore(dataDir string, logger *slog.Logger) *Store {
	return &Store{dataDir: dataDir, logger: logger}
}

// ReplaceCollisions rewrites the collisions table.
func (s *Store) ReplaceCollisions(ctx context.Context, records []domain.CollisionRecord) error {
	schema := `CREATE TABLE ` + CollisionsTable + ` (
		borough TEXT NOT NULL,
		on_street_name TEXT,
		off_street_name TEXT,
		cross_street_name TEXT,
		crash_date TEXT NOT NULL,
		crash_time TEXT,
		vehicle_type TEXT,
		total_fatalities INTEGER NOT NULL,
		total_injuries INTEGER NOT NULL
	)`
	insert := `INSERT INTO ` + CollisionsTable + ` VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return s.replaceTable(ctx, CollisionsDB, CollisionsTable, schema, insert, len(records),
		func(stmt *sqlite.Stmt, i int) {
			r := &records[i]
			stmt.BindText(1, r.Borough)
			stmt.BindText(2, r.OnStreetName)
			stmt.BindText(3, r.OffStreetName)
			stmt.BindText(4, r.CrossStreetName)
			stmt.BindText(5, r.CrashDate)
			stmt.BindText(6, r.CrashTime)
			stmt.BindText(7, r.VehicleType)
			stmt.BindInt64(8, int64(r.TotalFatalities))
			stmt.BindInt64(9, int64(r.TotalInjuries))
		})
}

// ReplacePopulation rewrites the population table.
func (s *Store) ReplacePopulation(ctx context.Context, records []domain.PopulationRecord) error {
	schema := `CREATE TABLE ` + PopulationTable + ` (
		borough TEXT NOT NULL,
		total_population INTEGER NOT NULL
	)`
	insert := `INSERT INTO ` + PopulationTable + ` VALUES (?, ?)`

	return s.replaceTable(ctx, PopulationDB, PopulationTable, schema, insert, len(records),
		func(stmt *sqlite.Stmt, i int) {
			stmt.BindText(1, records[i].Borough)
			stmt.BindInt64(2, records[i].TotalPopulation)
		})
}

// ReplaceSummary rewrites the combined borough summary table.
func (s *Store) ReplaceSummary(ctx context.Context, summaries []domain.CombinedSummary) error {
	schema := `CREATE TABLE ` + SummaryTable + ` (
		borough TEXT NOT NULL,
		total_population INTEGER NOT NULL,
		total_incidents INTEGER NOT NULL,
		total_fatalities INTEGER NOT NULL,
		total_injuries INTEGER NOT NULL,
		average_fatalities REAL NOT NULL,
		fatality_risk_percentage REAL NOT NULL,
		injury_risk_percentage REAL NOT NULL,
		fatalities_per_100k REAL NOT NULL
	)`
	insert := `INSERT INTO ` + SummaryTable + ` VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return s.replaceTable(ctx, CombinedDB, SummaryTable, schema, insert, len(summaries),
		func(stmt *sqlite.Stmt, i int) {
			c := &summaries[i]
			stmt.BindText(1, c.Borough)
			stmt.BindInt64(2, c.TotalPopulation)
			stmt.BindInt64(3, int64(c.TotalIncidents))
			stmt.BindInt64(4, int64(c.TotalFatalities))
			stmt.BindInt64(5, int64(c.TotalInjuries))
			stmt.BindFloat(6, c.AverageFatalities)
			stmt.BindFloat(7, c.FatalityRiskPct)
			stmt.BindFloat(8, c.InjuryRiskPct)
			stmt.BindFloat(9, c.FatalitiesPer100K)
		})
}

// replaceTable opens the database, drops and recreates the table, and inserts
// all rows inside a single transaction.
func (s *Store) replaceTable(ctx context.Context, dbFile, table, schema, insert string, n int, bind func(*sqlite.Stmt, int)) error {
	path := filepath.Join(s.dataDir, dbFile)

	conn, err := sqlite.OpenConn(path, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer conn.Close()
	conn.SetInterrupt(ctx.Done())

	if err := sqlitex.ExecTransient(conn, "BEGIN", nil); err != nil {
		return fmt.Errorf("begin %s: %w", table, err)
	}

	err = func() error {
		if err := sqlitex.ExecTransient(conn, "DROP TABLE IF EXISTS "+table, nil); err != nil {
			return err
		}
		if err := sqlitex.ExecTransient(conn, schema, nil); err != nil {
			return err
		}

		stmt, err := conn.Prepare(insert)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := stmt.Reset(); err != nil {
				return err
			}
			bind(stmt, i)
			if _, err := stmt.Step(); err != nil {
				return err
			}
		}
		return stmt.Finalize()
	}()
	if err != nil {
		_ = sqlitex.ExecTransient(conn, "ROLLBACK", nil)
		return fmt.Errorf("replace %s: %w", table, err)
	}

	if err := sqlitex.ExecTransient(conn, "COMMIT", nil); err != nil {
		return fmt.Errorf("commit %s: %w", table, err)
	}

	s.logger.Info("replaced table", "db", dbFile, "table", table, "rows", n)
	return nil
}
