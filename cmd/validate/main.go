// Command validate performs data integrity checks across the SQLite databases
// produced by an ETL run: the collision records, the borough population table,
// and the combined borough summary. It verifies value domains, cross-database
// consistency, and that the derived ratios match a recomputation from the
// stored rows.
//
// Usage:
//
//	go run ./cmd/validate -data-dir data
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"

	sqliteadapter "github.com/stoopdata/nyc-collision-etl/internal/adapter/sqlite"
	"github.com/stoopdata/nyc-collision-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "data", "directory containing the produced SQLite databases")
	flag.Parse()

	if code := run(*dataDir); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir string) int {
	fmt.Println("=== Collision Data Integrity Validation ===")
	fmt.Println()

	collisions, err := loadCollisions(filepath.Join(dataDir, sqliteadapter.CollisionsDB))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load collisions: %v\n", err)
		return 1
	}
	population, err := loadPopulation(filepath.Join(dataDir, sqliteadapter.PopulationDB))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load population: %v\n", err)
		return 1
	}
	summaries, err := loadSummaries(filepath.Join(dataDir, sqliteadapter.CombinedDB))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load summaries: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateCollisions(collisions),
		validatePopulation(population),
		validateSummaryConsistency(summaries, collisions, population),
		validateSummaryOrdering(summaries),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-48s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d collisions, %d population, %d summary\n",
		len(collisions), len(population), len(summaries))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadCollisions(path string) ([]domain.CollisionRecord, error) {
	var records []domain.CollisionRecord
	err := queryAll(path, "SELECT borough, on_street_name, off_street_name, cross_street_name, crash_date, crash_time, vehicle_type, total_fatalities, total_injuries FROM "+sqliteadapter.CollisionsTable,
		func(stmt *sqlite.Stmt) error {
			records = append(records, domain.CollisionRecord{
				Borough:         stmt.ColumnText(0),
				OnStreetName:    stmt.ColumnText(1),
				OffStreetName:   stmt.ColumnText(2),
				CrossStreetName: stmt.ColumnText(3),
				CrashDate:       stmt.ColumnText(4),
				CrashTime:       stmt.ColumnText(5),
				VehicleType:     stmt.ColumnText(6),
				TotalFatalities: int(stmt.ColumnInt64(7)),
				TotalInjuries:   int(stmt.ColumnInt64(8)),
			})
			return nil
		})
	return records, err
}

func loadPopulation(path string) ([]domain.PopulationRecord, error) {
	var records []domain.PopulationRecord
	err := queryAll(path, "SELECT borough, total_population FROM "+sqliteadapter.PopulationTable,
		func(stmt *sqlite.Stmt) error {
			records = append(records, domain.PopulationRecord{
				Borough:         stmt.ColumnText(0),
				TotalPopulation: stmt.ColumnInt64(1),
			})
			return nil
		})
	return records, err
}

func loadSummaries(path string) ([]domain.CombinedSummary, error) {
	var summaries []domain.CombinedSummary
	err := queryAll(path, "SELECT borough, total_population, total_incidents, total_fatalities, total_injuries, average_fatalities, fatality_risk_percentage, injury_risk_percentage, fatalities_per_100k FROM "+sqliteadapter.SummaryTable+" ORDER BY rowid",
		func(stmt *sqlite.Stmt) error {
			summaries = append(summaries, domain.CombinedSummary{
				Borough:           stmt.ColumnText(0),
				TotalPopulation:   stmt.ColumnInt64(1),
				TotalIncidents:    int(stmt.ColumnInt64(2)),
				TotalFatalities:   int(stmt.ColumnInt64(3)),
				TotalInjuries:     int(stmt.ColumnInt64(4)),
				AverageFatalities: stmt.ColumnFloat(5),
				FatalityRiskPct:   stmt.ColumnFloat(6),
				InjuryRiskPct:     stmt.ColumnFloat(7),
				FatalitiesPer100K: stmt.ColumnFloat(8),
			})
			return nil
		})
	return summaries, err
}

func queryAll(path, query string, fn func(*sqlite.Stmt) error) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	conn, err := sqlite.OpenConn(path, sqlite.SQLITE_OPEN_READONLY)
	if err != nil {
		return err
	}
	defer conn.Close()
	return sqlitex.ExecTransient(conn, query, fn)
}

// ── Phase 1: Collision value domains ──

func validateCollisions(records []domain.CollisionRecord) *phase {
	p := &phase{name: "Phase 1: Collision value domains"}

	valid := map[string]bool{domain.BoroughUnknown: true}
	for _, b := range domain.CanonicalBoroughs {
		valid[b] = true
	}

	for i, rec := range records {
		if !valid[rec.Borough] {
			p.errorf("row %d: borough %q outside the known set", i, rec.Borough)
		}
		if rec.CrashDate == "" {
			p.errorf("row %d: empty crash_date", i)
		}
		if rec.TotalFatalities < 0 {
			p.errorf("row %d: negative total_fatalities %d", i, rec.TotalFatalities)
		}
		if rec.TotalInjuries < 0 {
			p.errorf("row %d: negative total_injuries %d", i, rec.TotalInjuries)
		}
	}
	return p
}

// ── Phase 2: Population completeness ──

func validatePopulation(records []domain.PopulationRecord) *phase {
	p := &phase{name: "Phase 2: Population completeness"}

	byBorough := map[string]int64{}
	for i, rec := range records {
		if _, dup := byBorough[rec.Borough]; dup {
			p.errorf("row %d: duplicate borough %q", i, rec.Borough)
		}
		byBorough[rec.Borough] = rec.TotalPopulation
		if rec.TotalPopulation < 0 {
			p.errorf("row %d: negative population for %q", i, rec.Borough)
		}
	}

	for _, b := range domain.CanonicalBoroughs {
		if _, ok := byBorough[b]; !ok {
			p.errorf("missing borough %q", b)
		}
	}
	if pop, ok := byBorough[domain.BoroughUnknown]; !ok {
		p.errorf("missing the %s placeholder row", domain.BoroughUnknown)
	} else if pop != 0 {
		p.errorf("%s placeholder has population %d, expected 0", domain.BoroughUnknown, pop)
	}
	if len(records) != len(domain.CanonicalBoroughs)+1 {
		p.errorf("expected %d rows, got %d", len(domain.CanonicalBoroughs)+1, len(records))
	}
	return p
}

// ── Phase 3: Summary consistency ──
// Recomputes the combined summary from the collision and population tables and
// compares it with what was persisted.

func validateSummaryConsistency(summaries []domain.CombinedSummary, collisions []domain.CollisionRecord, population []domain.PopulationRecord) *phase {
	p := &phase{name: "Phase 3: Summary consistency (recomputed)"}

	expected := domain.Combine(population, domain.SummarizeCollisions(collisions))
	expectedByBorough := map[string]domain.CombinedSummary{}
	for _, s := range expected {
		expectedByBorough[s.Borough] = s
	}

	for _, got := range summaries {
		want, ok := expectedByBorough[got.Borough]
		if !ok {
			p.errorf("summary borough %q not derivable from the source tables", got.Borough)
			continue
		}
		delete(expectedByBorough, got.Borough)

		if got.TotalIncidents != want.TotalIncidents {
			p.errorf("%s: total_incidents %d, recomputed %d", got.Borough, got.TotalIncidents, want.TotalIncidents)
		}
		if got.TotalFatalities != want.TotalFatalities {
			p.errorf("%s: total_fatalities %d, recomputed %d", got.Borough, got.TotalFatalities, want.TotalFatalities)
		}
		if got.TotalInjuries != want.TotalInjuries {
			p.errorf("%s: total_injuries %d, recomputed %d", got.Borough, got.TotalInjuries, want.TotalInjuries)
		}
		if got.TotalPopulation != want.TotalPopulation {
			p.errorf("%s: total_population %d, recomputed %d", got.Borough, got.TotalPopulation, want.TotalPopulation)
		}
		if !floatEq(got.AverageFatalities, want.AverageFatalities) {
			p.errorf("%s: average_fatalities %g, recomputed %g", got.Borough, got.AverageFatalities, want.AverageFatalities)
		}
		if !floatEq(got.FatalityRiskPct, want.FatalityRiskPct) {
			p.errorf("%s: fatality_risk_percentage %g, recomputed %g", got.Borough, got.FatalityRiskPct, want.FatalityRiskPct)
		}
		if !floatEq(got.InjuryRiskPct, want.InjuryRiskPct) {
			p.errorf("%s: injury_risk_percentage %g, recomputed %g", got.Borough, got.InjuryRiskPct, want.InjuryRiskPct)
		}
		if !floatEq(got.FatalitiesPer100K, want.FatalitiesPer100K) {
			p.errorf("%s: fatalities_per_100k %g, recomputed %g", got.Borough, got.FatalitiesPer100K, want.FatalitiesPer100K)
		}

		if got.TotalIncidents == 0 && (got.FatalityRiskPct != 0 || got.InjuryRiskPct != 0) {
			p.errorf("%s: zero incidents but nonzero risk ratios", got.Borough)
		}
	}

	for borough := range expectedByBorough {
		p.errorf("borough %q missing from the summary table", borough)
	}
	return p
}

// ── Phase 4: Summary ordering ──

func validateSummaryOrdering(summaries []domain.CombinedSummary) *phase {
	p := &phase{name: "Phase 4: Summary ordering"}

	sorted := sort.SliceIsSorted(summaries, func(i, j int) bool {
		if summaries[i].TotalFatalities != summaries[j].TotalFatalities {
			return summaries[i].TotalFatalities > summaries[j].TotalFatalities
		}
		return summaries[i].Borough < summaries[j].Borough
	})
	if !sorted {
		p.errorf("summary rows are not ordered by total fatalities descending, borough ascending")
	}
	return p
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
