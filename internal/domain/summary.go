package domain

import (
	"math"
	"sort"
)

// SummarizeCollisions groups collision records by borough and totals
// incidents, fatalities, and injuries. Output is ordered by total fatalities
// descending with borough name as tie-break, so reruns over the same input
// produce identical tables.
func SummarizeCollisions(records []CollisionRecord) []BoroughSummary {
	byBorough := make(map[string]*BoroughSummary)
	for i := range records {
		rec := &records[i]
		s, ok := byBorough[rec.Borough]
		if !ok {
			s = &BoroughSummary{Borough: rec.Borough}
			byBorough[rec.Borough] = s
		}
		s.TotalIncidents++
		s.TotalFatalities += rec.TotalFatalities
		s.TotalInjuries += rec.TotalInjuries
	}

	summaries := make([]BoroughSummary, 0, len(byBorough))
	for _, s := range byBorough {
		if s.TotalIncidents > 0 {
			s.AverageFatalities = round4(float64(s.TotalFatalities) / float64(s.TotalIncidents))
		}
		summaries = append(summaries, *s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].TotalFatalities != summaries[j].TotalFatalities {
			return summaries[i].TotalFatalities > summaries[j].TotalFatalities
		}
		return summaries[i].Borough < summaries[j].Borough
	})
	return summaries
}

// Combine outer-joins population and collision aggregates on borough, filling
// missing numeric fields with 0, and computes the derived risk ratios. Ratios
// are exactly 0 for boroughs without incidents (or without population for the
// per-100k rate); division by zero never propagates.
func Combine(population []PopulationRecord, summaries []BoroughSummary) []CombinedSummary {
	byBorough := make(map[string]*CombinedSummary)

	get := func(borough string) *CombinedSummary {
		c, ok := byBorough[borough]
		if !ok {
			c = &CombinedSummary{Borough: borough}
			byBorough[borough] = c
		}
		return c
	}

	for _, p := range population {
		get(p.Borough).TotalPopulation = p.TotalPopulation
	}
	for _, s := range summaries {
		c := get(s.Borough)
		c.TotalIncidents = s.TotalIncidents
		c.TotalFatalities = s.TotalFatalities
		c.TotalInjuries = s.TotalInjuries
		c.AverageFatalities = s.AverageFatalities
	}

	combined := make([]CombinedSummary, 0, len(byBorough))
	for _, c := range byBorough {
		if c.TotalIncidents > 0 {
			c.FatalityRiskPct = round2(float64(c.TotalFatalities) / float64(c.TotalIncidents) * 100)
			c.InjuryRiskPct = round2(float64(c.TotalInjuries) / float64(c.TotalIncidents) * 100)
		}
		if c.TotalPopulation > 0 {
			c.FatalitiesPer100K = round2(float64(c.TotalFatalities) / float64(c.TotalPopulation) * 100000)
		}
		combined = append(combined, *c)
	}

	sort.Slice(combined, func(i, j int) bool {
		if combined[i].TotalFatalities != combined[j].TotalFatalities {
			return combined[i].TotalFatalities > combined[j].TotalFatalities
		}
		return combined[i].Borough < combined[j].Borough
	})
	return combined
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
