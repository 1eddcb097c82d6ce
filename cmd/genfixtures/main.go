// Command genfixtures writes deterministic source fixtures for offline runs
// and integration tests: a collisions CSV, a district-level population CSV,
// and a zipped street-name dictionary. Because the acquisition layer prefers
// cached files, pointing DATA_DIR at the output directory lets the whole
// pipeline run without network access.
//
// Usage:
//
//	go run ./cmd/genfixtures -out data
package main

import (
	"archive/zip"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/stoopdata/nyc-collision-etl/internal/domain"
)

// Fixed seed keeps fixture output byte-identical across runs.
const fixtureSeed = 20240426

var collisionsHeader = []string{
	"crash_date", "crash_time", "borough",
	"on_street_name", "off_street_name", "cross_street_name",
	"number_of_persons_killed", "number_of_pedestrians_killed",
	"number_of_cyclist_killed", "number_of_motorist_killed",
	"number_of_persons_injured", "number_of_pedestrians_injured",
	"number_of_cyclist_injured", "number_of_motorist_injured",
	"vehicle_type_code1",
}

// streetsByBorough pairs each borough code with street names that appear in
// the generated collision rows, so borough resolution has something to find.
var streetsByBorough = map[string][]string{
	"1": {"BROADWAY", "CANAL STREET", "WEST 42 STREET"},
	"2": {"GRAND CONCOURSE", "EAST TREMONT AVENUE"},
	"3": {"ATLANTIC AVENUE", "FLATBUSH AVENUE", "BEDFORD AVENUE"},
	"4": {"QUEENS BOULEVARD", "NORTHERN BOULEVARD", "MAIN STREET"},
	"5": {"HYLAN BOULEVARD", "VICTORY BOULEVARD"},
}

var vehicleTypes = []string{"Sedan", "Taxi", "Bus", "Bike", "Station Wagon/Sport Utility Vehicle", ""}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "data", "output directory for the fixture files")
	rows := flag.Int("rows", 200, "number of collision rows to generate")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	// Fix the clock so generated crash dates never drift between runs.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewSource(fixtureSeed))

	if err := writeCollisions(filepath.Join(*outDir, "collisions.csv"), rng, *rows); err != nil {
		return fmt.Errorf("writing collisions fixture: %w", err)
	}
	log.Printf("wrote collisions fixture: %d rows", *rows)

	if err := writePopulation(filepath.Join(*outDir, "population.csv")); err != nil {
		return fmt.Errorf("writing population fixture: %w", err)
	}
	log.Printf("wrote population fixture")

	if err := writeStreets(filepath.Join(*outDir, "streets.zip")); err != nil {
		return fmt.Errorf("writing streets fixture: %w", err)
	}
	log.Printf("wrote streets fixture")

	return nil
}

func writeCollisions(path string, rng *rand.Rand, n int) error {
	records := [][]string{collisionsHeader}
	base := domain.Now().AddDate(0, -6, 0)

	codes := []string{"1", "2", "3", "4", "5"}
	boroughNames := map[string]string{
		"1": "MANHATTAN", "2": "BRONX", "3": "BROOKLYN", "4": "QUEENS", "5": "STATEN ISLAND",
	}

	for i := 0; i < n; i++ {
		code := codes[rng.Intn(len(codes))]
		streets := streetsByBorough[code]
		on := streets[rng.Intn(len(streets))]

		// Roughly a third of the rows lose their borough so the resolution
		// pass has work to do.
		borough := boroughNames[code]
		if rng.Intn(3) == 0 {
			borough = ""
		}

		date := base.AddDate(0, 0, rng.Intn(180)).Format("2006-01-02")
		crashTime := fmt.Sprintf("%02d:%02d", rng.Intn(24), rng.Intn(60))

		killed := rng.Intn(3)
		injured := rng.Intn(5)

		records = append(records, []string{
			date, crashTime, borough,
			on, "", "",
			strconv.Itoa(killed), "0", "0", "0",
			strconv.Itoa(injured), "0", "0", "0",
			vehicleTypes[rng.Intn(len(vehicleTypes))],
		})
	}

	// A duplicate and an unparseable date, so the cleaning drops are visible
	// in the run logs.
	records = append(records, records[1])
	records = append(records, []string{
		"not-a-date", "12:00", "BROOKLYN", "ATLANTIC AVENUE", "", "",
		"0", "0", "0", "0", "0", "0", "0", "0", "Sedan",
	})

	return writeCSV(path, records)
}

func writePopulation(path string) error {
	// District-level rows: several per borough, aggregated by the pipeline.
	records := [][]string{
		{"borough", "cd_number", "_2010_population"},
		{"Manhattan", "1", "60,978"},
		{"Manhattan", "2", "90,016"},
		{"Manhattan", "3", "163,277"},
		{"Bronx", "1", "91,497"},
		{"Bronx", "2", "52,246"},
		{"Brooklyn", "1", "160,338"},
		{"Brooklyn", "2", "99,617"},
		{"Brooklyn", "3", "152,985"},
		{"Queens", "1", "191,105"},
		{"Queens", "2", "109,931"},
		{"Staten Island", "1", "175,756"},
		{"Staten Island", "2", "132,003"},
	}
	return writeCSV(path, records)
}

func writeStreets(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	member, err := zw.Create("street_name_dictionary.csv")
	if err != nil {
		return err
	}

	w := csv.NewWriter(member)
	if err := w.Write([]string{"street_name", "borough_code"}); err != nil {
		return err
	}
	for _, code := range []string{"1", "2", "3", "4", "5"} {
		for _, street := range streetsByBorough[code] {
			if err := w.Write([]string{street, code}); err != nil {
				return err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return err
	}
	return f.Close()
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return f.Close()
}
