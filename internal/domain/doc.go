// Package domain models NYC open-data collision, population, and street
// reference records and implements the cleaning, borough-resolution, and
// aggregation rules of the pipeline.
//
// # Data Sources
//
// Motor Vehicle Collisions (h9gi-nx95): one row per reported crash with
// borough, street names, crash date/time, and per-category killed/injured
// counts. Population by Community District (xi7c-iiu2): one row per district
// with a _2010_population column. Street Name Dictionary: one row per street
// name with its borough code.
//
// # Borough Conventions
//
// Borough codes follow the citywide convention:
//
//	1 Manhattan, 2 Bronx, 3 Brooklyn, 4 Queens, 5 Staten Island
//
// Every borough value emitted by this package is one of the five canonical
// title-case names or the sentinel "Unknown". Source spellings vary
// (upper-case, "THE BRONX"); anything that does not normalize to a canonical
// borough becomes Unknown. Unknown is a terminal, accepted state in the final
// collisions table: unresolved rows are counted and logged, never rejected.
//
// # Cleaning Policies
//
// Collision rows: exact duplicates removed; rows whose crash date fails every
// accepted layout are dropped; an unparseable crash time keeps the row with
// an empty time field. Count columns come from an explicit configured list
// rather than name sniffing; a fully absent group is a fatal schema error
// that enumerates the missing names, a partial gap is a logged warning with
// the values defaulted to 0.
//
// Population rows: values that fail numeric coercion are dropped before
// aggregation, not defaulted to 0. Rows with an unrecognized borough are
// dropped. The output always carries an explicit Unknown row with
// total_population 0 so downstream joins never miss a key.
//
// # Street Name Normalization
//
// Street names in both the reference dataset and collision rows are trimmed,
// upper-cased, and inner whitespace is collapsed before comparison, e.g.
// " east  161 street " → "EAST 161 STREET". A reference name that maps to
// more than one borough is ambiguous and never matches.
//
// # Borough Resolution
//
// Direct lookup checks on_street_name, then off_street_name, then
// cross_street_name; the first reference hit wins and the order is
// significant. Rows still unresolved are handed to a union-find pass over
// street names: every row unions its street fields into one component,
// resolved rows vote their borough into their component, and an unresolved
// row adopts its component's borough only when exactly one candidate exists.
package domain
