package domain

// StreetIndex maps normalized street names to their borough. Built once per
// run from the street reference dataset; read-only afterwards.
type StreetIndex struct {
	boroughs  map[string]string
	ambiguous map[string]struct{}
}

// BuildStreetIndex constructs the reference mapping from the raw street
// dataset. nameColumn holds the street name, boroughColumn a borough code
// (1-5) or borough name. Both columns are required. A street name that maps
// to more than one borough is marked ambiguous and never matches.
func BuildStreetIndex(table *RawTable, nameColumn, boroughColumn string) (*StreetIndex, error) {
	idx := table.ColumnIndex()

	var missing []string
	if _, ok := idx[nameColumn]; !ok {
		missing = append(missing, nameColumn)
	}
	if _, ok := idx[boroughColumn]; !ok {
		missing = append(missing, boroughColumn)
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Dataset: "streets", Missing: missing}
	}

	s := &StreetIndex{
		boroughs:  make(map[string]string, len(table.Rows)),
		ambiguous: make(map[string]struct{}),
	}

	for _, row := range table.Rows {
		name := NormalizeStreetName(Field(row, idx, nameColumn))
		if name == "" {
			continue
		}
		borough := boroughFromReference(Field(row, idx, boroughColumn))
		if borough == BoroughUnknown {
			continue
		}
		if existing, ok := s.boroughs[name]; ok {
			if existing != borough {
				s.ambiguous[name] = struct{}{}
			}
			continue
		}
		s.boroughs[name] = borough
	}

	return s, nil
}

// boroughFromReference accepts either a numeric borough code or a spelled-out
// borough name.
func boroughFromReference(raw string) string {
	if b := BoroughFromCode(raw); b != BoroughUnknown {
		return b
	}
	return CanonicalBorough(raw)
}

// Len reports the number of unambiguous street entries.
func (s *StreetIndex) Len() int {
	return len(s.boroughs) - len(s.ambiguous)
}

// Lookup returns the borough for a normalized street name. Ambiguous names
// never match.
func (s *StreetIndex) Lookup(name string) (string, bool) {
	if _, amb := s.ambiguous[name]; amb {
		return "", false
	}
	b, ok := s.boroughs[name]
	return b, ok
}

// ResolveStats counts resolution outcomes per method.
type ResolveStats struct {
	Source     int // borough already present in the source row
	Direct     int // resolved by street reference lookup
	Inferred   int // resolved by the union-find inference pass
	Unresolved int // still Unknown after both passes
}

// ResolveBoroughs fills in Unknown boroughs on collision records in place.
//
// Pass 1 is the direct reference lookup with on > off > cross priority.
// Pass 2 unions each record's street names into a component, lets resolved
// records vote their borough into their component, and assigns a component's
// borough to its unresolved members only when exactly one candidate exists.
func ResolveBoroughs(records []CollisionRecord, index *StreetIndex) ResolveStats {
	var stats ResolveStats

	uf := newUnionFind()

	for i := range records {
		rec := &records[i]
		streets := normalizedStreets(rec)
		uf.unionAll(streets)

		if rec.Borough != BoroughUnknown {
			stats.Source++
			continue
		}

		// Priority order is significant: on > off > cross.
		for _, street := range streets {
			if b, ok := index.Lookup(street); ok {
				rec.Borough = b
				stats.Direct++
				break
			}
		}
	}

	// Collect candidate boroughs per component from resolved records.
	candidates := make(map[string]string) // component root -> borough, "" = conflicting
	for i := range records {
		rec := &records[i]
		if rec.Borough == BoroughUnknown {
			continue
		}
		for _, street := range normalizedStreets(rec) {
			root := uf.find(street)
			if existing, ok := candidates[root]; ok {
				if existing != rec.Borough {
					candidates[root] = ""
				}
			} else {
				candidates[root] = rec.Borough
			}
			// All streets of one record share a root, one vote is enough.
			break
		}
	}

	for i := range records {
		rec := &records[i]
		if rec.Borough != BoroughUnknown {
			continue
		}
		streets := normalizedStreets(rec)
		if len(streets) > 0 {
			if b, ok := candidates[uf.find(streets[0])]; ok && b != "" {
				rec.Borough = b
				stats.Inferred++
				continue
			}
		}
		stats.Unresolved++
	}

	return stats
}

func normalizedStreets(rec *CollisionRecord) []string {
	var out []string
	for _, raw := range []string{rec.OnStreetName, rec.OffStreetName, rec.CrossStreetName} {
		if s := NormalizeStreetName(raw); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// unionFind is a path-compressing disjoint-set over street names.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) find(x string) string {
	p, ok := u.parent[x]
	if !ok {
		u.parent[x] = x
		return x
	}
	if p == x {
		return x
	}
	root := u.find(p)
	u.parent[x] = root
	return root
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

func (u *unionFind) unionAll(names []string) {
	for i := 1; i < len(names); i++ {
		u.union(names[0], names[i])
	}
}
